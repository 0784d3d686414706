package nhc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Default connection parameters, applied when Config leaves them zero.
const (
	// DefaultPort is the controller's TCP listening port.
	DefaultPort = 8000

	// defaultConnectTimeout bounds the TCP dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultReadTimeout bounds each handshake response read. The event
	// stream itself has no read deadline; dead peers are detected through
	// TCP keepalive.
	defaultReadTimeout = 10 * time.Second

	// defaultWriteTimeout bounds each command write.
	defaultWriteTimeout = 5 * time.Second

	// defaultKeepAlive is the TCP keepalive probe interval.
	defaultKeepAlive = 30 * time.Second

	// defaultEventQueueSize is the buffered event notification queue length.
	defaultEventQueueSize = 256

	// defaultEventWorkers is the number of goroutines delivering event
	// notifications to action handlers.
	defaultEventWorkers = 2

	// restartPollInterval is how often concurrent Restart callers poll for
	// the in-flight attempt to finish.
	restartPollInterval = 100 * time.Millisecond
)

// Config holds controller connection settings.
type Config struct {
	// Host is the controller address (IP or hostname). Required.
	Host string

	// Port is the controller's TCP port. Default: 8000.
	Port int

	// ConnectTimeout is the maximum time for establishing the TCP
	// connection. Default: 10s.
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for each handshake response.
	// Default: 10s.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time for writing a command. Default: 5s.
	WriteTimeout time.Duration

	// KeepAlive is the TCP keepalive probe interval used to detect dead
	// peers on the otherwise idle event stream. Default: 30s.
	KeepAlive time.Duration

	// EventQueueSize is the capacity of the event notification queue.
	// When full, further notifications are dropped with a warning.
	// Default: 256.
	EventQueueSize int

	// EventWorkers is the number of notification delivery goroutines.
	// Default: 2.
	EventWorkers int
}

// withDefaults returns a copy of the config with zero values replaced.
func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.EventQueueSize == 0 {
		cfg.EventQueueSize = defaultEventQueueSize
	}
	if cfg.EventWorkers == 0 {
		cfg.EventWorkers = defaultEventWorkers
	}
	return cfg
}

// ClientStats is a snapshot of session counters.
type ClientStats struct {
	Connected    bool
	Actions      int
	EventsRx     uint64
	CommandsTx   uint64
	Reconnects   uint64
	LastConnect  time.Time
	LastEvent    time.Time
	ControllerSW string
}

// Logger is the interface for session logging.
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

// closeOnce wraps a channel that must only be closed once.
type closeOnce struct {
	C    chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{C: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.C) })
}

// Client maintains the session to a Niko Home Control controller.
//
// The session is a single TCP connection carrying newline-delimited JSON.
// Connect dials the controller and runs the handshake (systeminfo,
// listlocations, listactions, startevents); afterwards a read loop consumes
// the event stream and fans state changes out to registered action handlers
// through a bounded worker pool.
//
// The client does not reconnect on its own. When the connection drops, the
// session becomes inactive (observable via Active) and the configured
// connection-lost callback fires; recovery happens through Restart, which is
// single-flight: concurrent callers wait for the in-flight attempt instead
// of racing it.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Client struct {
	cfg Config

	conn   net.Conn
	reader *bufio.Reader
	connMu sync.Mutex

	writeMu sync.Mutex

	active     atomic.Bool
	restarting atomic.Bool
	closed     atomic.Bool

	actions   map[string]*Action
	locations map[int]string
	actionsMu sync.RWMutex

	sysInfo SystemInfo
	sysMu   sync.RWMutex

	eventsRx   atomic.Uint64
	commandsTx atomic.Uint64
	reconnects atomic.Uint64

	lastConnect time.Time
	lastEvent   time.Time
	statsMu     sync.RWMutex

	onConnectionLost func(error)
	callbackMu       sync.RWMutex

	eventQueue chan func()
	done       *closeOnce
	wg         sync.WaitGroup
	stopOnce   sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect dials the controller and establishes a full session.
//
// Parameters:
//   - ctx: Context bounding the initial connection attempt
//   - cfg: Connection settings (zero values replaced with defaults)
//
// Returns:
//   - *Client: Active session ready for commands and events
//   - error: If dialing or the handshake fails
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrConnectionFailed)
	}

	c := &Client{
		cfg:        cfg,
		actions:    make(map[string]*Action),
		locations:  make(map[int]string),
		eventQueue: make(chan func(), cfg.EventQueueSize),
		done:       newCloseOnce(),
		logger:     noopLogger{},
	}
	c.startEventWorkers()

	if err := c.establish(ctx); err != nil {
		c.done.Close()
		c.wg.Wait()
		return nil, err
	}
	return c, nil
}

// establish dials, runs the handshake, and starts the read loop.
func (c *Client) establish(ctx context.Context) error {
	dialer := net.Dialer{
		Timeout:   c.cfg.ConnectTimeout,
		KeepAlive: c.cfg.KeepAlive,
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %w", ErrConnectionFailed, addr, err)
	}

	reader := bufio.NewReader(conn)
	if err := c.handshake(conn, reader); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return err
	}

	// The event stream blocks indefinitely; dead peers surface through
	// TCP keepalive, intentional teardown through conn.Close().
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.reader = reader
	c.connMu.Unlock()

	c.active.Store(true)
	c.statsMu.Lock()
	c.lastConnect = time.Now()
	c.statsMu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn, reader)

	return nil
}

// handshake runs the session setup sequence on a fresh connection.
func (c *Client) handshake(conn net.Conn, reader *bufio.Reader) error {
	// System information: records the controller software version for
	// health reporting and diagnostics.
	if err := c.writeTo(conn, simpleRequest{Cmd: cmdSystemInfo}); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	data, err := c.readResponse(conn, reader, cmdSystemInfo)
	if err != nil {
		return err
	}
	var info SystemInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("%w: systeminfo payload: %w", ErrHandshakeFailed, err)
	}
	c.sysMu.Lock()
	c.sysInfo = info
	c.sysMu.Unlock()

	// Location table: resolves the numeric location references in the
	// action list to names.
	if err := c.writeTo(conn, simpleRequest{Cmd: cmdListLocations}); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	data, err = c.readResponse(conn, reader, cmdListLocations)
	if err != nil {
		return err
	}
	var locs []locationData
	if err := json.Unmarshal(data, &locs); err != nil {
		return fmt.Errorf("%w: listlocations payload: %w", ErrHandshakeFailed, err)
	}
	names := make(map[int]string, len(locs))
	for _, loc := range locs {
		names[loc.ID] = loc.Name
	}
	c.actionsMu.Lock()
	c.locations = names
	c.actionsMu.Unlock()

	// Action list: builds or refreshes the action registry. On a restart
	// this fires re-registration callbacks for surviving actions and
	// removal callbacks for vanished ones.
	if err := c.writeTo(conn, simpleRequest{Cmd: cmdListActions}); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	data, err = c.readResponse(conn, reader, cmdListActions)
	if err != nil {
		return err
	}
	var list []actionData
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: listactions payload: %w", ErrHandshakeFailed, err)
	}
	c.mergeActions(list)

	// Event subscription: from here on the controller pushes state changes.
	if err := c.writeTo(conn, simpleRequest{Cmd: cmdStartEvents}); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	data, err = c.readResponse(conn, reader, cmdStartEvents)
	if err != nil {
		return err
	}
	if err := decodeAck(cmdStartEvents, data); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	c.logInfo("controller session established",
		"host", c.cfg.Host,
		"sw_version", info.SWVersion,
		"actions", len(list),
	)
	return nil
}

// readResponse reads frames until one matches the expected command.
// Only used during the handshake; each read is bounded by ReadTimeout.
func (c *Client) readResponse(conn net.Conn, reader *bufio.Reader, wantCmd string) (json.RawMessage, error) {
	deadline := time.Now().Add(c.cfg.ReadTimeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s response: %w", ErrHandshakeFailed, wantCmd, err)
		}
		msg, err := decodeServerMessage(bytes.TrimSpace(line))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		if msg.Cmd == wantCmd {
			return msg.Data, nil
		}
		c.logDebug("skipping frame during handshake", "cmd", msg.Cmd, "event", msg.Event)
	}
}

// mergeActions reconciles the action registry with a fresh controller list.
//
// Existing actions are updated in place so handler registrations survive a
// session restart. Handlers are notified outside the registry lock: a state
// change first (when the value moved while the session was down), then
// re-registration; actions missing from the new list get a removal
// notification and are dropped.
func (c *Client) mergeActions(list []actionData) {
	var notifications []func()

	c.actionsMu.Lock()
	seen := make(map[string]struct{}, len(list))
	for _, data := range list {
		id := strconv.Itoa(data.ID)
		seen[id] = struct{}{}
		location := c.locations[data.Location]

		existing, ok := c.actions[id]
		if !ok {
			c.actions[id] = newAction(c, data, location)
			continue
		}

		previous := existing.State()
		existing.applyData(data, location)
		handler := existing.eventHandler()
		if handler == nil {
			continue
		}
		if state := data.Value1; state != previous {
			notifications = append(notifications, func() { handler.ActionStateChanged(state) })
		}
		notifications = append(notifications, func() { handler.ActionInitialized() })
	}
	for id, action := range c.actions {
		if _, ok := seen[id]; ok {
			continue
		}
		if handler := action.eventHandler(); handler != nil {
			notifications = append(notifications, func() { handler.ActionRemoved() })
		}
		delete(c.actions, id)
	}
	c.actionsMu.Unlock()

	for _, fire := range notifications {
		c.dispatchEvent(fire)
	}
}

// readLoop consumes the event stream until the connection fails or is
// intentionally closed.
func (c *Client) readLoop(conn net.Conn, reader *bufio.Reader) {
	defer c.wg.Done()
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.handleConnectionLost(conn, err)
			return
		}
		c.handleLine(line)
	}
}

// handleConnectionLost marks the session inactive and fires the loss
// callback, unless the connection was replaced or the client closed.
func (c *Client) handleConnectionLost(conn net.Conn, err error) {
	c.connMu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.reader = nil
	}
	c.connMu.Unlock()

	if !current || c.closed.Load() {
		return
	}

	c.active.Store(false)
	c.logWarn("controller connection lost", "error", err)

	c.callbackMu.RLock()
	cb := c.onConnectionLost
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// handleLine processes one frame from the event stream.
func (c *Client) handleLine(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return
	}

	msg, err := decodeServerMessage(trimmed)
	if err != nil {
		c.logWarn("dropping malformed controller frame", "error", err)
		return
	}

	switch {
	case msg.Event == cmdListActions:
		c.handleActionEvents(msg.Data)
	case msg.Event != "":
		c.logDebug("ignoring controller event", "event", msg.Event)
	case msg.Cmd == cmdExecuteActions:
		if err := decodeAck(msg.Cmd, msg.Data); err != nil {
			c.logError("controller rejected action command", "error", err)
		}
	default:
		c.logDebug("ignoring controller frame", "cmd", msg.Cmd)
	}
}

// handleActionEvents applies a batch of state changes and notifies handlers.
func (c *Client) handleActionEvents(data json.RawMessage) {
	var events []eventData
	if err := json.Unmarshal(data, &events); err != nil {
		c.logWarn("dropping malformed state event", "error", err)
		return
	}

	c.eventsRx.Add(uint64(len(events)))
	c.statsMu.Lock()
	c.lastEvent = time.Now()
	c.statsMu.Unlock()

	for _, ev := range events {
		id := strconv.Itoa(ev.ID)

		c.actionsMu.RLock()
		action := c.actions[id]
		c.actionsMu.RUnlock()

		if action == nil {
			c.logDebug("state event for unknown action", "action_id", id)
			continue
		}

		action.setState(ev.Value1)
		handler := action.eventHandler()
		if handler == nil {
			continue
		}
		state := ev.Value1
		c.dispatchEvent(func() { handler.ActionStateChanged(state) })
	}
}

// dispatchEvent queues a handler notification on the worker pool.
// Notifications are dropped with a warning when the queue is full, so a slow
// handler cannot stall the read loop.
func (c *Client) dispatchEvent(fn func()) {
	select {
	case c.eventQueue <- fn:
	default:
		c.logWarn("event queue full, dropping notification", "queue_size", cap(c.eventQueue))
	}
}

// startEventWorkers launches the notification delivery goroutines.
func (c *Client) startEventWorkers() {
	for i := 0; i < c.cfg.EventWorkers; i++ {
		c.wg.Add(1)
		go c.eventWorker()
	}
}

// eventWorker delivers queued notifications until the client closes.
func (c *Client) eventWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done.C:
			return
		case fn := <-c.eventQueue:
			c.runCallback(fn)
		}
	}
}

// runCallback invokes a handler notification, recovering panics so a broken
// handler cannot kill the worker.
func (c *Client) runCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("panic in action event handler", "panic", r)
		}
	}()
	fn()
}

// executeAction sends a primitive for an action over the session.
func (c *Client) executeAction(a *Action, primitive string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	value, err := primitiveWireValue(primitive)
	if err != nil {
		return err
	}
	if !c.active.Load() {
		return ErrNotConnected
	}

	req := executeRequest{Cmd: cmdExecuteActions, ID: a.wireID, Value1: value}
	if err := c.send(req); err != nil {
		return err
	}

	c.commandsTx.Add(1)
	c.logDebug("action command sent",
		"action_id", a.ID(),
		"primitive", primitive,
		"wire_value", value,
	)
	return nil
}

// send writes a request on the current connection.
func (c *Client) send(v any) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return c.writeTo(conn, v)
}

// writeTo marshals and writes one newline-terminated frame.
// A write failure closes the connection so the read loop notices the loss.
func (c *Client) writeTo(conn net.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	payload = append(payload, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if _, err := conn.Write(payload); err != nil {
		conn.Close() //nolint:errcheck // Unblocks the read loop for loss handling
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Restart tears down the current session and attempts to establish a new
// one. It blocks until the attempt finishes; failures are logged, not
// returned, and leave the session inactive (observable via Active).
//
// Restart is single-flight: when an attempt is already running, additional
// callers wait for it to finish instead of starting their own.
func (c *Client) Restart() {
	if c.closed.Load() {
		return
	}
	if !c.restarting.CompareAndSwap(false, true) {
		c.waitForRestart()
		return
	}
	defer c.restarting.Store(false)

	c.teardownSession()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout+c.cfg.ReadTimeout)
	defer cancel()

	if err := c.establish(ctx); err != nil {
		c.logWarn("controller session restart failed", "error", err)
		return
	}

	c.reconnects.Add(1)
	c.logInfo("controller session restored", "host", c.cfg.Host)
}

// waitForRestart polls until the in-flight restart attempt finishes.
func (c *Client) waitForRestart() {
	deadline := time.Now().Add(c.cfg.ConnectTimeout + c.cfg.ReadTimeout)
	ticker := time.NewTicker(restartPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if !c.restarting.Load() {
			return
		}
		<-ticker.C
	}
}

// teardownSession closes the current connection and marks the session
// inactive. The read loop sees a stale connection and exits silently.
func (c *Client) teardownSession() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck // Connection is being discarded
		c.conn = nil
		c.reader = nil
	}
	c.connMu.Unlock()
	c.active.Store(false)
}

// Close shuts the client down permanently: the connection is closed, the
// workers drained, and further commands rejected with ErrClosed.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		c.active.Store(false)
		c.done.Close()

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck // Shutting down
			c.conn = nil
			c.reader = nil
		}
		c.connMu.Unlock()

		c.wg.Wait()
		c.logInfo("controller client closed")
	})
	return nil
}

// Active reports whether the controller session is currently live.
func (c *Client) Active() bool {
	return c.active.Load()
}

// Action returns the action with the given identifier.
func (c *Client) Action(id string) (*Action, bool) {
	c.actionsMu.RLock()
	defer c.actionsMu.RUnlock()
	a, ok := c.actions[id]
	return a, ok
}

// Actions returns a snapshot of the action registry keyed by identifier.
func (c *Client) Actions() map[string]*Action {
	c.actionsMu.RLock()
	defer c.actionsMu.RUnlock()

	snapshot := make(map[string]*Action, len(c.actions))
	for id, a := range c.actions {
		snapshot[id] = a
	}
	return snapshot
}

// SystemInfo returns the controller description from the last handshake.
func (c *Client) SystemInfo() SystemInfo {
	c.sysMu.RLock()
	defer c.sysMu.RUnlock()
	return c.sysInfo
}

// Stats returns a snapshot of session counters.
func (c *Client) Stats() ClientStats {
	c.actionsMu.RLock()
	actionCount := len(c.actions)
	c.actionsMu.RUnlock()

	c.statsMu.RLock()
	lastConnect := c.lastConnect
	lastEvent := c.lastEvent
	c.statsMu.RUnlock()

	return ClientStats{
		Connected:    c.active.Load(),
		Actions:      actionCount,
		EventsRx:     c.eventsRx.Load(),
		CommandsTx:   c.commandsTx.Load(),
		Reconnects:   c.reconnects.Load(),
		LastConnect:  lastConnect,
		LastEvent:    lastEvent,
		ControllerSW: c.SystemInfo().SWVersion,
	}
}

// SetOnConnectionLost registers a callback fired when the session drops
// unexpectedly. The callback runs on the read loop goroutine as it exits
// and must not block.
func (c *Client) SetOnConnectionLost(fn func(error)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onConnectionLost = fn
}

// SetLogger sets the logger for session messages.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	defer c.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	c.logger.Debug(msg, keysAndValues...)
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	c.logger.Info(msg, keysAndValues...)
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	c.logger.Warn(msg, keysAndValues...)
}

func (c *Client) logError(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	c.logger.Error(msg, keysAndValues...)
}
