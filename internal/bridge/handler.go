package bridge

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// ActionHandler links one configured endpoint to one controller action.
//
// Lifecycle: Uninitialized → AwaitingBridge → Bound → Disposed. A handler
// is never re-initialized; configuration reloads build fresh handlers.
//
// Concurrency: bind runs single-flight under bindMu; the entity reference
// is read through an atomic snapshot and never re-read after a nil check;
// command work runs on the bridge worker pool, never on the controller
// read loop.
//
// Thread Safety: all methods are safe for concurrent use.
type ActionHandler struct {
	cfg  EndpointConfig
	host Host

	action   atomic.Pointer[Entity]
	bound    atomic.Bool
	disposed atomic.Bool
	bindMu   sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewActionHandler creates a handler for one endpoint.
// Call Initialize to begin operation.
func NewActionHandler(cfg EndpointConfig, host Host) *ActionHandler {
	return &ActionHandler{
		cfg:    cfg,
		host:   host,
		logger: noopLogger{},
	}
}

// EndpointID returns the endpoint identifier this handler serves.
func (h *ActionHandler) EndpointID() string {
	return h.cfg.EndpointID
}

// ActionID returns the controller action id this handler is configured for.
func (h *ActionHandler) ActionID() string {
	return h.cfg.ActionID
}

// Bound reports whether the handler has bound to its controller action.
func (h *ActionHandler) Bound() bool {
	return h.bound.Load()
}

// Initialize validates the endpoint configuration and, when the controller
// session is already active, schedules the bind on the worker pool. With
// no session yet the handler stays awaiting; a later bridge-online event
// triggers the bind. Never binds on the calling goroutine.
func (h *ActionHandler) Initialize() {
	h.bound.Store(false)

	if h.cfg.EndpointID == "" || h.cfg.ActionID == "" {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailConfigurationError, "endpoint id and action id are required"))
		return
	}

	h.host.UpdateStatus(h.cfg.EndpointID, StatusUnknown("initializing"))

	conn := h.host.Communication()
	if conn == nil || !conn.Active() {
		return
	}

	if !h.host.Submit(h.bind) {
		h.logWarn("bind not scheduled, worker queue full", "endpoint", h.cfg.EndpointID)
	}
}

// bind resolves the controller action, registers the handler as its
// observer, seeds properties and state, and marks the endpoint online.
// Single-flight: concurrent binds serialize on bindMu and must not
// double-register observers.
func (h *ActionHandler) bind() {
	h.bindMu.Lock()
	defer h.bindMu.Unlock()

	if h.disposed.Load() {
		return
	}

	conn := h.host.Communication()
	if conn == nil {
		return
	}
	if !conn.Active() {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailCommunicationError, "controller session inactive"))
		return
	}

	action, ok := conn.Action(h.cfg.ActionID)
	if !ok {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailConfigurationError, "action "+h.cfg.ActionID+" not found on controller"))
		return
	}

	// Replaces any previous registration on the action.
	action.SetEventHandler(h)
	h.action.Store(&action)

	h.host.SetProperties(h.cfg.EndpointID, h.entityProperties(action))

	if conn.Active() {
		h.host.UpdateStatus(h.cfg.EndpointID, StatusOnline())
	} else {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailBridgeOffline, "controller connection lost"))
	}

	h.projectCurrent(action)
	h.bound.Store(true)

	h.logDebug("endpoint bound",
		"endpoint", h.cfg.EndpointID,
		"action", h.cfg.ActionID,
		"kind", action.Kind().String())
}

// entityProperties collects descriptive properties from the controller
// action. The configured room wins over the controller location.
func (h *ActionHandler) entityProperties(action Entity) map[string]string {
	props := map[string]string{
		"kind": action.Kind().String(),
	}
	if action.Kind() == nhc.KindRollershutter {
		if t := action.OpenTime(); t > 0 {
			props["open_time"] = strconv.Itoa(t)
		}
		if t := action.CloseTime(); t > 0 {
			props["close_time"] = strconv.Itoa(t)
		}
	}
	if m := action.Model(); m != "" {
		props["model"] = m
	}
	if t := action.Technology(); t != "" {
		props["technology"] = t
	}
	if h.cfg.Room == "" {
		if loc := action.Location(); loc != "" {
			props["location"] = loc
		}
	}
	return props
}

// HandleCommand schedules a command for one of the handler's channels.
//
// The controller connection is snapshot up front; with none established
// the command is dropped. The remainder runs on the worker pool: an
// inactive session first gets one opportunistic restart, then the command
// is dispatched if the session is active.
//
// Returns:
//   - error: ErrNoConnection when no session exists, ErrQueueFull when
//     the worker queue rejected the task, nil once scheduled.
func (h *ActionHandler) HandleCommand(channel Channel, cmd Command) error {
	conn := h.host.Communication()
	if conn == nil {
		h.logDebug("command dropped, no controller connection",
			"endpoint", h.cfg.EndpointID, "command", string(cmd.Type))
		return ErrNoConnection
	}

	scheduled := h.host.Submit(func() {
		if !conn.Active() {
			if !h.restartCommunication(conn) {
				return
			}
		}
		h.handleCommandSelection(channel, cmd)
	})
	if !scheduled {
		h.logWarn("command dropped, worker queue full",
			"endpoint", h.cfg.EndpointID, "command", string(cmd.Type))
		return ErrQueueFull
	}
	return nil
}

// handleCommandSelection translates and executes a command against the
// bound action. Runs on a worker goroutine.
func (h *ActionHandler) handleCommandSelection(channel Channel, cmd Command) {
	ptr := h.action.Load()
	if ptr == nil {
		h.logDebug("command ignored, endpoint not bound",
			"endpoint", h.cfg.EndpointID, "command", string(cmd.Type))
		return
	}
	action := *ptr

	if cmd.Type == CommandRefresh {
		h.projectCurrent(action)
		return
	}

	var primitive string
	var ok bool

	switch channel {
	case ChannelButton, ChannelSwitch:
		primitive, ok = TranslateSwitch(cmd)
	case ChannelBrightness:
		primitive, ok = TranslateBrightness(cmd, action.State(), h.cfg.Step)
	case ChannelRollershutter:
		primitive, ok = TranslateRollershutter(cmd, h.cfg.Invert)
	default:
		h.logDebug("command for unknown channel",
			"endpoint", h.cfg.EndpointID, "channel", string(channel))
		return
	}

	if ok {
		if err := action.Execute(primitive); err != nil {
			h.host.UpdateStatus(h.cfg.EndpointID,
				StatusOffline(DetailCommunicationError, "command failed: "+err.Error()))
			return
		}
	}

	h.host.UpdateStatus(h.cfg.EndpointID, StatusOnline())
}

// restartCommunication attempts one controller session restart. Restart
// may block and is single-flight inside the session; rapid repetition
// collapses into one attempt. Reports whether the session is active
// afterwards, notifying the host on recovery.
func (h *ActionHandler) restartCommunication(conn Communicator) bool {
	conn.Restart()

	if !conn.Active() {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailCommunicationError, "controller session restart failed"))
		return false
	}

	h.host.BridgeOnline()
	return true
}

// Refresh re-publishes the current entity state without contacting the
// controller. No-op while unbound.
func (h *ActionHandler) Refresh() {
	ptr := h.action.Load()
	if ptr == nil {
		return
	}
	h.projectCurrent(*ptr)
}

// BridgeStatusChanged reacts to controller session availability changes.
func (h *ActionHandler) BridgeStatusChanged(online bool) {
	if h.disposed.Load() {
		return
	}

	switch {
	case online && !h.bound.Load():
		if !h.host.Submit(h.bind) {
			h.logWarn("bind not scheduled, worker queue full", "endpoint", h.cfg.EndpointID)
		}
	case online:
		h.host.UpdateStatus(h.cfg.EndpointID, StatusOnline())
	default:
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailBridgeOffline, "controller connection lost"))
	}
}

// ActionStateChanged implements nhc.ActionEventHandler. Delivered from the
// session's event workers.
func (h *ActionHandler) ActionStateChanged(raw int) {
	ptr := h.action.Load()
	if ptr == nil {
		h.logDebug("state event before bind", "endpoint", h.cfg.EndpointID, "state", raw)
		return
	}
	action := *ptr

	value, err := ProjectState(action.Kind(), raw, h.cfg.Invert)
	if err != nil {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailConfigurationError, err.Error()))
		return
	}

	h.host.UpdateState(h.cfg.EndpointID, value)
	h.host.UpdateStatus(h.cfg.EndpointID, StatusOnline())
}

// ActionInitialized implements nhc.ActionEventHandler. The controller
// listed the action again, typically after a session restart.
func (h *ActionHandler) ActionInitialized() {
	conn := h.host.Communication()
	if conn != nil && conn.Active() {
		h.host.UpdateStatus(h.cfg.EndpointID, StatusOnline())
	}
}

// ActionRemoved implements nhc.ActionEventHandler. The controller no
// longer lists the action.
func (h *ActionHandler) ActionRemoved() {
	h.host.UpdateStatus(h.cfg.EndpointID,
		StatusOffline(DetailConfigurationError, "action removed from controller"))
}

// Dispose releases the handler. Idempotent; safe to call on a handler
// that never initialized.
func (h *ActionHandler) Dispose() {
	if !h.disposed.CompareAndSwap(false, true) {
		return
	}

	if conn := h.host.Communication(); conn != nil {
		if action, ok := conn.Action(h.cfg.ActionID); ok {
			action.UnsetEventHandler()
		}
	}

	h.action.Store(nil)
	h.bound.Store(false)
}

// projectCurrent pushes the entity's current raw state through the
// projector and publishes the result.
func (h *ActionHandler) projectCurrent(action Entity) {
	value, err := ProjectState(action.Kind(), action.State(), h.cfg.Invert)
	if err != nil {
		h.host.UpdateStatus(h.cfg.EndpointID,
			StatusOffline(DetailConfigurationError, err.Error()))
		return
	}
	h.host.UpdateState(h.cfg.EndpointID, value)
}

// SetLogger sets the logger for this handler.
func (h *ActionHandler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *ActionHandler) logDebug(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	logger.Debug(msg, keysAndValues...)
}

func (h *ActionHandler) logWarn(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	logger.Warn(msg, keysAndValues...)
}
