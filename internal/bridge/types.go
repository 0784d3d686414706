package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// CommandType identifies a typed command variant after decoding from MQTT.
type CommandType string

const (
	// CommandOn switches an output on.
	CommandOn CommandType = "on"

	// CommandOff switches an output off.
	CommandOff CommandType = "off"

	// CommandIncrease steps a dimmer level up.
	CommandIncrease CommandType = "increase"

	// CommandDecrease steps a dimmer level down.
	CommandDecrease CommandType = "decrease"

	// CommandPercent sets an absolute level or position (0-100).
	CommandPercent CommandType = "percent"

	// CommandUp moves a shutter towards open.
	CommandUp CommandType = "up"

	// CommandDown moves a shutter towards closed.
	CommandDown CommandType = "down"

	// CommandStop halts shutter travel.
	CommandStop CommandType = "stop"

	// CommandRefresh re-publishes the current state without touching
	// the controller.
	CommandRefresh CommandType = "refresh"
)

// Command is a typed command for one endpoint channel.
type Command struct {
	// Type is the command variant.
	Type CommandType

	// Percent carries the target value for CommandPercent (0-100).
	// Ignored for all other types.
	Percent int
}

// Channel identifies the functional channel a command or state value
// belongs to.
type Channel string

const (
	// ChannelButton is the momentary trigger channel.
	ChannelButton Channel = "button"

	// ChannelSwitch is the on/off relay channel.
	ChannelSwitch Channel = "switch"

	// ChannelBrightness is the dimmer level channel.
	ChannelBrightness Channel = "brightness"

	// ChannelRollershutter is the shutter position channel.
	ChannelRollershutter Channel = "rollershutter"
)

// ChannelValue is a typed state value for one channel.
//
// On is meaningful for button and switch channels; Percent for brightness
// and rollershutter channels.
type ChannelValue struct {
	Channel Channel
	On      bool
	Percent int
}

// StatePayload returns the MQTT state message payload for this value.
func (v ChannelValue) StatePayload() map[string]any {
	switch v.Channel {
	case ChannelButton, ChannelSwitch:
		return map[string]any{"on": v.On}
	case ChannelBrightness:
		return map[string]any{"level": v.Percent}
	case ChannelRollershutter:
		return map[string]any{"position": v.Percent}
	default:
		return map[string]any{}
	}
}

// EndpointState is the coarse availability state of an endpoint.
type EndpointState string

const (
	// StateUnknown means the endpoint has not completed initialization.
	StateUnknown EndpointState = "unknown"

	// StateOnline means the endpoint is reachable and operational.
	StateOnline EndpointState = "online"

	// StateOffline means the endpoint cannot currently be controlled.
	StateOffline EndpointState = "offline"
)

// StatusDetail qualifies an offline state with its failure category.
type StatusDetail string

const (
	// DetailNone means no further qualification.
	DetailNone StatusDetail = ""

	// DetailConfigurationError marks wrong endpoint configuration or a
	// remote action that is missing, removed, or of an unsupported kind.
	// Never retried automatically.
	DetailConfigurationError StatusDetail = "configuration_error"

	// DetailCommunicationError marks a dead controller session or a
	// failed command. Retried opportunistically on the next command or
	// bridge-online event.
	DetailCommunicationError StatusDetail = "communication_error"

	// DetailBridgeOffline marks the controller connection as down.
	// Endpoints recover when the bridge comes back online.
	DetailBridgeOffline StatusDetail = "bridge_offline"
)

// EndpointStatus is a point-in-time availability report for one endpoint.
type EndpointStatus struct {
	State     EndpointState
	Detail    StatusDetail
	Message   string
	Timestamp time.Time
}

// StatusOnline returns an online status stamped with the current time.
func StatusOnline() EndpointStatus {
	return EndpointStatus{State: StateOnline, Timestamp: time.Now().UTC()}
}

// StatusUnknown returns an unknown status with an explanatory message.
func StatusUnknown(message string) EndpointStatus {
	return EndpointStatus{State: StateUnknown, Message: message, Timestamp: time.Now().UTC()}
}

// StatusOffline returns an offline status with a failure detail and message.
func StatusOffline(detail StatusDetail, message string) EndpointStatus {
	return EndpointStatus{State: StateOffline, Detail: detail, Message: message, Timestamp: time.Now().UTC()}
}

// sameStatus reports whether two statuses are equal ignoring timestamps.
// Used for publish deduplication.
func sameStatus(a, b EndpointStatus) bool {
	return a.State == b.State && a.Detail == b.Detail && a.Message == b.Message
}

// Entity is the controller action surface used by handlers.
// Satisfied by *nhc.Action; mocked in tests.
type Entity interface {
	// Kind returns the action classification.
	Kind() nhc.ActionKind

	// State returns the last known raw state (0-100).
	State() int

	// Name returns the action name configured on the controller.
	Name() string

	// Location returns the controller location name, or "".
	Location() string

	// OpenTime returns the shutter opening travel time in seconds.
	OpenTime() int

	// CloseTime returns the shutter closing travel time in seconds.
	CloseTime() int

	// Model returns the device model where the controller reports one.
	Model() string

	// Technology returns the device technology where reported.
	Technology() string

	// Execute sends a protocol primitive to the controller.
	Execute(primitive string) error

	// SetEventHandler registers the observer, replacing any previous one.
	SetEventHandler(h nhc.ActionEventHandler)

	// UnsetEventHandler removes the observer registration.
	UnsetEventHandler()
}

// Communicator is the controller session surface used by handlers.
//
// Restart may block while a reconnection attempt runs; it fails silently
// and its outcome is observed through Active. Concurrent callers share a
// single in-flight attempt.
type Communicator interface {
	Active() bool
	Restart()
	Action(id string) (Entity, bool)
	Actions() map[string]Entity
}

// Host is the bridge-side collaborator interface handlers talk to.
// Implemented by *Bridge; mocked in tests.
type Host interface {
	// Communication returns the controller session, or nil before the
	// first connection is established.
	Communication() Communicator

	// BridgeOnline reports a recovered controller session so the bridge
	// can republish health and bring sibling endpoints online.
	BridgeOnline()

	// Submit schedules a task on the bridge worker pool. Returns false
	// when the queue is full and the task was not scheduled.
	Submit(task func()) bool

	// UpdateState publishes a new typed state value for an endpoint.
	UpdateState(endpointID string, value ChannelValue)

	// UpdateStatus publishes a new availability status for an endpoint.
	UpdateStatus(endpointID string, status EndpointStatus)

	// SetProperties records descriptive endpoint properties.
	SetProperties(endpointID string, props map[string]string)
}

// Logger is the interface for bridge logging.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
