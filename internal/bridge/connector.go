package bridge

import "github.com/nerrad567/gray-logic-nhc/internal/nhc"

// ClientConnector adapts *nhc.Client to the Connector interface, lifting
// concrete *nhc.Action values to the Entity interface the handlers use.
type ClientConnector struct {
	Client *nhc.Client
}

// Active reports whether the controller session is established.
func (c ClientConnector) Active() bool {
	return c.Client.Active()
}

// Restart attempts to re-establish the controller session. May block;
// single-flight across concurrent callers.
func (c ClientConnector) Restart() {
	c.Client.Restart()
}

// Action looks up a controller action by id.
func (c ClientConnector) Action(id string) (Entity, bool) {
	a, ok := c.Client.Action(id)
	if !ok {
		return nil, false
	}
	return a, true
}

// Actions returns a snapshot of all controller actions.
func (c ClientConnector) Actions() map[string]Entity {
	src := c.Client.Actions()
	out := make(map[string]Entity, len(src))
	for id, a := range src {
		out[id] = a
	}
	return out
}

// Stats returns a snapshot of session counters.
func (c ClientConnector) Stats() nhc.ClientStats {
	return c.Client.Stats()
}

// SetOnConnectionLost registers the connection-loss callback.
func (c ClientConnector) SetOnConnectionLost(fn func(error)) {
	c.Client.SetOnConnectionLost(fn)
}
