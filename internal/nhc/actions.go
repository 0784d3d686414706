package nhc

import (
	"strconv"
	"sync"
)

// ActionEventHandler receives notifications about one controller action.
//
// Handlers are registered with Action.SetEventHandler. Each action holds at
// most one handler; registering a new one replaces the previous registration.
// Callbacks are delivered from the client's event workers and must not block
// for extended periods.
type ActionEventHandler interface {
	// ActionStateChanged reports a new raw state (0-100) for the action.
	ActionStateChanged(state int)

	// ActionInitialized reports that the action was listed again by the
	// controller, typically after a session restart.
	ActionInitialized()

	// ActionRemoved reports that the controller no longer lists the action.
	// The Action object is unusable afterwards.
	ActionRemoved()
}

// Action represents a single controllable output on the controller: a relay,
// a dimmer, a shutter motor, or a momentary trigger.
//
// Actions are created and owned by the Client; callers obtain them with
// Client.Action or Client.Actions and interact through the methods below.
//
// Thread Safety: all methods are safe for concurrent use.
type Action struct {
	client *Client
	wireID int

	mu         sync.RWMutex
	name       string
	kind       ActionKind
	location   string
	state      int
	openTime   int
	closeTime  int
	model      string
	technology string
	handler    ActionEventHandler
}

// newAction builds an Action from a listactions entry.
func newAction(c *Client, data actionData, location string) *Action {
	a := &Action{
		client: c,
		wireID: data.ID,
	}
	a.applyData(data, location)
	return a
}

// applyData refreshes the action's metadata and state from a listactions
// entry. Travel times are only meaningful for rollershutters.
func (a *Action) applyData(data actionData, location string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.name = data.Name
	a.kind = kindFromType(data.Type)
	a.location = location
	a.state = data.Value1
	a.model = data.Model
	a.technology = data.Technology
	if a.kind == KindRollershutter {
		a.openTime = data.Value2
		a.closeTime = data.Value3
	}
}

// ID returns the action identifier as used in bridge configuration and MQTT
// topics (the controller's numeric id in decimal form).
func (a *Action) ID() string {
	return strconv.Itoa(a.wireID)
}

// Name returns the action name configured on the controller.
func (a *Action) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// Kind returns the action classification.
func (a *Action) Kind() ActionKind {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.kind
}

// Location returns the controller location name the action belongs to,
// or an empty string when the controller did not assign one.
func (a *Action) Location() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.location
}

// State returns the last known raw state (0-100).
func (a *Action) State() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// OpenTime returns the shutter opening travel time in seconds, or zero when
// unknown or not applicable.
func (a *Action) OpenTime() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.openTime
}

// CloseTime returns the shutter closing travel time in seconds, or zero when
// unknown or not applicable.
func (a *Action) CloseTime() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closeTime
}

// Model returns the device model where the controller reports one.
func (a *Action) Model() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Technology returns the device technology where the controller reports one.
func (a *Action) Technology() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.technology
}

// SetEventHandler registers the handler receiving this action's events,
// replacing any previous registration.
func (a *Action) SetEventHandler(h ActionEventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// UnsetEventHandler removes the current handler registration.
func (a *Action) UnsetEventHandler() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = nil
}

// eventHandler returns the current handler registration.
func (a *Action) eventHandler() ActionEventHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handler
}

// setState records a new raw state and returns the previously known one.
func (a *Action) setState(state int) (previous int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	previous = a.state
	a.state = state
	return previous
}

// Execute sends a protocol primitive to the controller for this action.
//
// The primitive must be one of the Primitive constants or a numeric
// primitive ("0" through "100"). The call returns once the command has been
// written to the session; controller-side rejections are reported
// asynchronously through the session log.
//
// Returns:
//   - error: ErrInvalidPrimitive for unknown primitives, ErrNotConnected when
//     the session is down, or a wrapped write error.
func (a *Action) Execute(primitive string) error {
	return a.client.executeAction(a, primitive)
}
