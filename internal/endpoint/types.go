package endpoint

import "time"

// Endpoint is one bridged controller action as the rest of Gray Logic
// sees it: an addressable entity with a typed state, an availability
// status, and descriptive properties learned from the controller.
// Matches the database schema in migrations/20260120_100000_endpoint_schema.up.sql.
type Endpoint struct {
	// Identity. ID is the endpoint identifier used in MQTT topics;
	// seeded from the bridge configuration.
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Room is the room assignment, if any.
	Room *string `json:"room,omitempty"`

	// Controller mapping
	ActionID string `json:"action_id"`
	Step     int    `json:"step"`
	Invert   bool   `json:"invert"`

	// Current state
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Availability
	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	// Properties learned from the controller (kind, model, technology,
	// location, shutter travel times).
	Properties Properties `json:"properties,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Endpoint.
// Map fields are cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation.
func (e *Endpoint) DeepCopy() *Endpoint {
	if e == nil {
		return nil
	}

	cpy := *e

	cpy.State = deepCopyMap(e.State)
	if e.Properties != nil {
		cpy.Properties = make(Properties, len(e.Properties))
		for k, v := range e.Properties {
			cpy.Properties[k] = v
		}
	}

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// Kind returns the controller action kind recorded in properties, or
// "unknown" before the endpoint first binds.
func (e *Endpoint) Kind() string {
	if kind, ok := e.Properties["kind"]; ok {
		return kind
	}
	return "unknown"
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the current endpoint state as a JSON map.
//
// Examples:
//   - switch/button: {"on": true}
//   - brightness:    {"level": 75}
//   - rollershutter: {"position": 50}
type State map[string]any

// Properties holds descriptive string properties learned from the
// controller.
//
// Example:
//
//	{"kind": "rollershutter", "open_time": "25", "close_time": "22",
//	 "location": "Kitchen", "technology": "nikohomecontrol"}
type Properties map[string]string

// HealthStatus represents the endpoint availability state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline  HealthStatus = "online"
	HealthStatusOffline HealthStatus = "offline"
	HealthStatusUnknown HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusOnline, HealthStatusOffline, HealthStatusUnknown,
	}
}
