package bridge

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// MQTT message types for communication between Gray Logic Core and the
// NHC bridge. Topic layout mirrors the other Gray Logic bridges:
// graylogic/{category}/nhc/{endpoint}.

// CommandMessage is sent from Core to Bridge to execute an endpoint command.
// Topic: graylogic/command/nhc/{endpoint}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EndpointID is the target endpoint identifier.
	EndpointID string `json:"endpoint_id"`

	// Channel optionally names the target channel (button, switch,
	// brightness, rollershutter). When empty it is derived from the
	// command name.
	Channel string `json:"channel,omitempty"`

	// Command is the command name (e.g., "on", "off", "increase",
	// "set_level", "up", "down", "stop", "set_position", "refresh").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for set_level
	//   {"position": 75} for set_position
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source,omitempty"`
}

// Decode maps the wire command onto a channel and a typed command.
//
// Returns:
//   - Channel: the target channel, derived from the command name when the
//     message does not name one
//   - Command: the typed command
//   - error: ErrInvalidCommand (wrapped) for unknown names, bad channels,
//     or out-of-range parameter values
func (m CommandMessage) Decode() (Channel, Command, error) {
	var channel Channel
	var cmd Command

	switch m.Command {
	case "press":
		channel, cmd = ChannelButton, Command{Type: CommandOn}
	case "release":
		channel, cmd = ChannelButton, Command{Type: CommandOff}
	case "on":
		channel, cmd = ChannelSwitch, Command{Type: CommandOn}
	case "off":
		channel, cmd = ChannelSwitch, Command{Type: CommandOff}
	case "increase":
		channel, cmd = ChannelBrightness, Command{Type: CommandIncrease}
	case "decrease":
		channel, cmd = ChannelBrightness, Command{Type: CommandDecrease}
	case "set_level":
		level, err := m.percentParam("level")
		if err != nil {
			return "", Command{}, err
		}
		channel, cmd = ChannelBrightness, Command{Type: CommandPercent, Percent: level}
	case "up":
		channel, cmd = ChannelRollershutter, Command{Type: CommandUp}
	case "down":
		channel, cmd = ChannelRollershutter, Command{Type: CommandDown}
	case "stop":
		channel, cmd = ChannelRollershutter, Command{Type: CommandStop}
	case "set_position":
		position, err := m.percentParam("position")
		if err != nil {
			return "", Command{}, err
		}
		channel, cmd = ChannelRollershutter, Command{Type: CommandPercent, Percent: position}
	case "refresh":
		channel, cmd = ChannelSwitch, Command{Type: CommandRefresh}
	default:
		return "", Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, m.Command)
	}

	if m.Channel != "" {
		explicit := Channel(m.Channel)
		switch explicit {
		case ChannelButton, ChannelSwitch, ChannelBrightness, ChannelRollershutter:
			channel = explicit
		default:
			return "", Command{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidCommand, m.Channel)
		}
	}

	return channel, cmd, nil
}

// percentParam extracts a 0-100 integer parameter.
func (m CommandMessage) percentParam(key string) (int, error) {
	raw, ok := m.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q parameter", ErrInvalidCommand, key)
	}
	value, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidCommand, key)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("%w: %q must be 0-100, got %v", ErrInvalidCommand, key, value)
	}
	return int(value), nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and scheduled.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/nhc/{endpoint}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EndpointID is the target endpoint identifier.
	EndpointID string `json:"endpoint_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("nhc").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "UNKNOWN_ENDPOINT", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeUnknownEndpoint       = "UNKNOWN_ENDPOINT"
	ErrCodeInvalidCommand        = "INVALID_COMMAND"
	ErrCodeInvalidParameters     = "INVALID_PARAMETERS"
	ErrCodeQueueOverflow         = "QUEUE_OVERFLOW"
	ErrCodeControllerUnreachable = "CONTROLLER_UNREACHABLE"
	ErrCodeBridgeError           = "BRIDGE_ERROR"
)

// NewAckMessage creates a successful acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID:  cmd.ID,
		Timestamp:  time.Now().UTC(),
		EndpointID: cmd.EndpointID,
		Status:     status,
		Protocol:   "nhc",
	}
}

// NewAckError creates a failed acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	ack := NewAckMessage(cmd, AckFailed)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// StateMessage is sent from Bridge to Core when endpoint state changes.
// Topic: graylogic/state/nhc/{endpoint}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// EndpointID is the endpoint identifier.
	EndpointID string `json:"endpoint_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Channel is the channel the state belongs to.
	Channel string `json:"channel"`

	// State contains the typed state value:
	//   button/switch: {"on": true}
	//   brightness:    {"level": 50}
	//   rollershutter: {"position": 75}
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("nhc").
	Protocol string `json:"protocol"`
}

// NewStateMessage creates a state message from a channel value.
func NewStateMessage(endpointID string, value ChannelValue) StateMessage {
	return StateMessage{
		EndpointID: endpointID,
		Timestamp:  time.Now().UTC(),
		Channel:    string(value.Channel),
		State:      value.StatePayload(),
		Protocol:   "nhc",
	}
}

// StatusMessage is sent from Bridge to Core when endpoint availability
// changes.
// Topic: graylogic/status/nhc/{endpoint}
// QoS: 1, Retained: Yes
type StatusMessage struct {
	// EndpointID is the endpoint identifier.
	EndpointID string `json:"endpoint_id"`

	// Timestamp is when the status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State is the availability state (unknown, online, offline).
	State EndpointState `json:"state"`

	// Detail qualifies offline states (configuration_error,
	// communication_error, bridge_offline).
	Detail StatusDetail `json:"detail,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message,omitempty"`
}

// NewStatusMessage creates a status message from an endpoint status.
func NewStatusMessage(endpointID string, status EndpointStatus) StatusMessage {
	ts := status.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return StatusMessage{
		EndpointID: endpointID,
		Timestamp:  ts,
		State:      status.State,
		Detail:     status.Detail,
		Message:    status.Message,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: graylogic/health/nhc
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains controller session details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// EndpointsManaged is the number of configured endpoints.
	EndpointsManaged int `json:"endpoints_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the controller session state.
type ConnectionStatus struct {
	// Status is the session status ("connected", "disconnected").
	Status string `json:"status"`

	// Address is the controller address.
	Address string `json:"address"`

	// SoftwareVersion is the controller software version from the
	// systeminfo handshake.
	SoftwareVersion string `json:"software_version,omitempty"`

	// ConnectedSince is when the session was established.
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// EventsReceived is the total number of controller events received.
	EventsReceived uint64 `json:"events_received"`

	// CommandsSent is the total number of commands sent to the controller.
	CommandsSent uint64 `json:"commands_sent"`

	// Reconnects is the number of session re-establishments.
	Reconnects uint64 `json:"reconnects"`
}

// NewHealthMessage creates a health message from session statistics.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats nhc.ClientStats, endpointCount int, startTime time.Time) HealthMessage {
	connStatus := "disconnected"
	if stats.Connected {
		connStatus = "connected"
	}

	conn := &ConnectionStatus{
		Status:          connStatus,
		SoftwareVersion: stats.ControllerSW,
	}
	if !stats.LastConnect.IsZero() {
		since := stats.LastConnect
		conn.ConnectedSince = &since
	}

	return HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Connection:    conn,
		Statistics: &BridgeStatistics{
			EventsReceived: stats.EventsRx,
			CommandsSent:   stats.CommandsTx,
			Reconnects:     stats.Reconnects,
		},
		EndpointsManaged: endpointCount,
	}
}

// NewLWTMessage creates the Last Will and Testament payload published by
// the broker when the bridge connection drops uncleanly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "connection lost (LWT)",
	}
}

// RequestMessage is sent from Core to Bridge for request/response
// operations.
// Topic: graylogic/request/nhc/{request_id}
type RequestMessage struct {
	// RequestID uniquely identifies this request for correlation.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	// Values: "list", "refresh", "restart"
	Action string `json:"action"`
}

// ResponseMessage is sent from Bridge to Core in response to a request.
// Topic: graylogic/response/nhc/{request_id}
type ResponseMessage struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the request succeeded.
	Success bool `json:"success"`

	// Data contains the response payload (if successful).
	Data map[string]any `json:"data,omitempty"`

	// Error contains error details (if failed).
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	// Code is the error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Topic helpers

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// CommandTopic returns the MQTT topic for commands to an endpoint.
// Example: graylogic/command/nhc/living-room-light
func CommandTopic(endpointID string) string {
	return fmt.Sprintf("%s/command/nhc/%s", TopicPrefix, endpointID)
}

// AckTopic returns the MQTT topic for command acknowledgments.
func AckTopic(endpointID string) string {
	return fmt.Sprintf("%s/ack/nhc/%s", TopicPrefix, endpointID)
}

// StateTopic returns the MQTT topic for endpoint state updates.
func StateTopic(endpointID string) string {
	return fmt.Sprintf("%s/state/nhc/%s", TopicPrefix, endpointID)
}

// StatusTopic returns the MQTT topic for endpoint availability updates.
func StatusTopic(endpointID string) string {
	return fmt.Sprintf("%s/status/nhc/%s", TopicPrefix, endpointID)
}

// HealthTopic returns the MQTT topic for bridge health status.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/nhc", TopicPrefix)
}

// RequestTopic returns the MQTT topic for requests.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/nhc/%s", TopicPrefix, requestID)
}

// ResponseTopic returns the MQTT topic for responses.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/nhc/%s", TopicPrefix, requestID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
// Example: graylogic/command/nhc/#
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/nhc/#", TopicPrefix)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/nhc/#", TopicPrefix)
}
