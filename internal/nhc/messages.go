package nhc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Protocol primitives accepted by Action.Execute.
//
// These are the only non-numeric command tokens the controller session
// understands. Numeric primitives are the decimal string of an integer in the
// range 0-100 and are produced with NumericPrimitive.
const (
	PrimitiveOn   = "On"
	PrimitiveOff  = "Off"
	PrimitiveUp   = "Up"
	PrimitiveDown = "Down"
	PrimitiveStop = "Stop"
)

// Controller wire values for the non-numeric primitives.
//
// Relays and dimmers use 0-100 directly; shutters use the reserved values
// above 100 for motion commands.
const (
	wireValueOff  = 0
	wireValueOn   = 100
	wireValueStop = 253
	wireValueDown = 254
	wireValueUp   = 255
)

// maxNumericPrimitive is the largest value a numeric primitive may carry.
const maxNumericPrimitive = 100

// NumericPrimitive returns the numeric primitive for a 0-100 value.
func NumericPrimitive(value int) string {
	return strconv.Itoa(value)
}

// primitiveWireValue translates a primitive into the integer the controller
// expects in an executeactions request.
func primitiveWireValue(primitive string) (int, error) {
	switch primitive {
	case PrimitiveOn:
		return wireValueOn, nil
	case PrimitiveOff:
		return wireValueOff, nil
	case PrimitiveUp:
		return wireValueUp, nil
	case PrimitiveDown:
		return wireValueDown, nil
	case PrimitiveStop:
		return wireValueStop, nil
	}

	v, err := strconv.Atoi(primitive)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrimitive, primitive)
	}
	if v < 0 || v > maxNumericPrimitive {
		return 0, fmt.Errorf("%w: %d out of range 0-%d", ErrInvalidPrimitive, v, maxNumericPrimitive)
	}
	return v, nil
}

// Controller commands. Each request is a single JSON object terminated by a
// newline; the controller answers with a JSON object carrying the same "cmd"
// value, or pushes unsolicited objects carrying an "event" value once
// startevents has been acknowledged.
const (
	cmdSystemInfo     = "systeminfo"
	cmdListLocations  = "listlocations"
	cmdListActions    = "listactions"
	cmdStartEvents    = "startevents"
	cmdExecuteActions = "executeactions"
)

// simpleRequest is a parameterless controller command.
type simpleRequest struct {
	Cmd string `json:"cmd"`
}

// executeRequest commands a single action to a new value.
// Value1 must always be serialised, including zero (relay off).
type executeRequest struct {
	Cmd    string `json:"cmd"`
	ID     int    `json:"id"`
	Value1 int    `json:"value1"`
}

// serverMessage is the envelope of every object the controller sends.
// Exactly one of Cmd or Event is set.
type serverMessage struct {
	Cmd   string          `json:"cmd"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ackData is the payload of command acknowledgements (startevents,
// executeactions). A non-zero Error is a controller-side rejection.
type ackData struct {
	Error int `json:"error"`
}

// SystemInfo describes the controller as reported by the systeminfo command.
type SystemInfo struct {
	SWVersion  string `json:"swversion"`
	API        string `json:"api"`
	Time       string `json:"time"`
	Language   string `json:"language"`
	LastConfig string `json:"lastconfig"`
}

// locationData is one entry of the listlocations payload.
type locationData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// actionData is one entry of the listactions payload. Value1 is the current
// raw state (0-100). Value2 and Value3 carry shutter travel times in seconds
// where the controller provides them. Model and Technology appear only in
// richer controller payloads and default to empty.
type actionData struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Type       int    `json:"type"`
	Location   int    `json:"location"`
	Value1     int    `json:"value1"`
	Value2     int    `json:"value2"`
	Value3     int    `json:"value3"`
	Model      string `json:"model,omitempty"`
	Technology string `json:"technology,omitempty"`
}

// eventData is one entry of a listactions event payload.
type eventData struct {
	ID     int `json:"id"`
	Value1 int `json:"value1"`
}

// ActionKind classifies a controller action.
type ActionKind int

// Action kinds mapped from the controller's numeric action types.
const (
	KindUnknown ActionKind = iota
	KindTrigger
	KindRelay
	KindDimmer
	KindRollershutter
)

// Controller action type codes as found in listactions payloads.
const (
	actionTypeTrigger       = 0
	actionTypeRelay         = 1
	actionTypeDimmer        = 2
	actionTypeShutterUpDown = 4
	actionTypeShutterTilt   = 5
)

// kindFromType maps a controller action type code to an ActionKind.
func kindFromType(t int) ActionKind {
	switch t {
	case actionTypeTrigger:
		return KindTrigger
	case actionTypeRelay:
		return KindRelay
	case actionTypeDimmer:
		return KindDimmer
	case actionTypeShutterUpDown, actionTypeShutterTilt:
		return KindRollershutter
	default:
		return KindUnknown
	}
}

// String returns the lowercase name of the kind, suitable for registry
// records and MQTT payloads.
func (k ActionKind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindRelay:
		return "relay"
	case KindDimmer:
		return "dimmer"
	case KindRollershutter:
		return "rollershutter"
	default:
		return "unknown"
	}
}

// decodeServerMessage parses one line from the controller.
func decodeServerMessage(line []byte) (serverMessage, error) {
	var msg serverMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return serverMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Cmd == "" && msg.Event == "" {
		return serverMessage{}, fmt.Errorf("%w: neither cmd nor event present", ErrInvalidMessage)
	}
	return msg, nil
}

// decodeAck parses an acknowledgement payload and converts a non-zero error
// code into an error.
func decodeAck(cmd string, data json.RawMessage) error {
	var ack ackData
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrInvalidMessage, cmd, err)
	}
	if ack.Error != 0 {
		return fmt.Errorf("%w: %s rejected with code %d", ErrControllerRejected, cmd, ack.Error)
	}
	return nil
}
