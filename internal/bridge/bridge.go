package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// minTopicParts is the minimum number of parts in a valid MQTT topic.
const minTopicParts = 3

// Bridge orchestrates bidirectional translation between a Niko Home
// Control controller and MQTT. It handles:
//   - Receiving commands from Core via MQTT and dispatching them to the
//     per-endpoint handlers
//   - Publishing typed state and availability updates from controller
//     events
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *Config
	mqtt    MQTTClient
	health  *HealthReporter
	version string

	// Controller session (nil until SetConnection)
	conn   Connector
	connMu sync.RWMutex

	// Per-endpoint handlers, keyed by endpoint id
	handlers   map[string]*ActionHandler
	handlersMu sync.RWMutex

	// Optional endpoint registry for state/health persistence
	registry EndpointRegistry

	// Worker pool for command and bind tasks
	tasks chan func()

	// Publish caches for change detection
	stateCache   map[string]ChannelValue
	statusCache  map[string]EndpointStatus
	stateCacheMu sync.Mutex

	// Optional event callbacks (diagnostics API fan-out)
	onState  func(endpointID string, value ChannelValue)
	onStatus func(endpointID string, status EndpointStatus)
	eventMu  sync.RWMutex

	// Background reconnect single-flight
	reconnecting atomic.Bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// Connector is the full controller session surface the bridge needs.
// Satisfied by ClientConnector wrapping *nhc.Client.
type Connector interface {
	Communicator

	// Stats returns a snapshot of session counters.
	Stats() nhc.ClientStats

	// SetOnConnectionLost registers the connection-loss callback.
	SetOnConnectionLost(fn func(error))
}

// EndpointRegistry provides endpoint state and health persistence.
// This interface is satisfied by *endpoint.Registry (via adapter in main).
// It is optional - if nil, the bridge operates without registry integration.
type EndpointRegistry interface {
	// CreateEndpointIfNotExists seeds an endpoint record from bridge config.
	// No-op if the endpoint already exists (preserves user modifications).
	CreateEndpointIfNotExists(ctx context.Context, seed EndpointSeed) error

	// SetEndpointState updates the current state of an endpoint.
	SetEndpointState(ctx context.Context, id string, state map[string]any) error

	// SetEndpointHealth updates the availability of an endpoint.
	SetEndpointHealth(ctx context.Context, id string, status string) error

	// SetEndpointProperties merges descriptive endpoint properties.
	SetEndpointProperties(ctx context.Context, id string, props map[string]string) error
}

// EndpointSeed holds endpoint fields derivable from bridge config.
// Used to auto-populate the endpoint registry on startup.
type EndpointSeed struct {
	ID       string
	Name     string
	Room     string
	ActionID string
	Step     int
	Invert   bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Version is the bridge software version for health reporting.
	Version string

	// Logger is optional structured logger.
	Logger Logger

	// Registry is optional endpoint registry for persistence.
	// If nil, the bridge operates without registry integration.
	Registry EndpointRegistry
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation and SetConnection() once a controller
// session exists.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:         opts.Config,
		mqtt:        opts.MQTTClient,
		version:     opts.Version,
		registry:    opts.Registry,
		handlers:    make(map[string]*ActionHandler),
		tasks:       make(chan func(), opts.Config.Bridge.QueueSize),
		stateCache:  make(map[string]ChannelValue),
		statusCache: make(map[string]EndpointStatus),
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		logger:      noopLogger{},
	}
	if opts.Logger != nil {
		b.logger = opts.Logger
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Address:   fmt.Sprintf("%s:%d", opts.Config.Controller.Host, opts.Config.Controller.Port),
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
	})
	b.health.SetEndpointCount(len(opts.Config.Endpoints))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Health returns the bridge's health reporter, for LWT and telemetry
// wiring in main.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// Start begins bridge operation: seeds the registry, subscribes to MQTT
// command and request topics, starts the worker pool and health
// reporting, and initializes the per-endpoint handlers.
func (b *Bridge) Start(ctx context.Context) error {
	b.seedRegistry(ctx)

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	for i := 0; i < b.cfg.Bridge.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	b.buildHandlers()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"endpoints", len(b.cfg.Endpoints))

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		b.wg.Wait()

		b.handlersMu.RLock()
		handlers := make([]*ActionHandler, 0, len(b.handlers))
		for _, h := range b.handlers {
			handlers = append(handlers, h)
		}
		b.handlersMu.RUnlock()

		for _, h := range handlers {
			h.Dispose()
		}

		b.logInfo("bridge stopped")
	})
}

// SetConnection installs the controller session. Called from main once
// the session is established; wires the connection-loss callback, updates
// health reporting, and brings awaiting handlers online.
func (b *Bridge) SetConnection(conn Connector) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()

	conn.SetOnConnectionLost(b.onConnectionLost)
	b.health.SetSession(conn)

	if conn.Active() {
		b.BridgeOnline()
	}
}

// seedRegistry creates endpoint records for configured endpoints that do
// not exist yet.
func (b *Bridge) seedRegistry(ctx context.Context) {
	if b.registry == nil {
		return
	}

	for _, ep := range b.cfg.Endpoints {
		seed := EndpointSeed{
			ID:       ep.EndpointID,
			Name:     ep.Name,
			Room:     ep.Room,
			ActionID: ep.ActionID,
			Step:     ep.withStepDefault().Step,
			Invert:   ep.Invert,
		}
		if err := b.registry.CreateEndpointIfNotExists(ctx, seed); err != nil {
			b.logError("failed to seed endpoint record", err)
		}
	}
}

// buildHandlers creates and initializes one handler per configured
// endpoint.
func (b *Bridge) buildHandlers() {
	b.handlersMu.Lock()
	for _, ep := range b.cfg.Endpoints {
		h := NewActionHandler(ep.withStepDefault(), b)
		h.SetLogger(b.getLogger())
		b.handlers[ep.EndpointID] = h
	}
	handlers := make([]*ActionHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.handlersMu.Unlock()

	for _, h := range handlers {
		h.Initialize()
	}
}

// Handler returns the handler for an endpoint id.
func (b *Bridge) Handler(endpointID string) (*ActionHandler, bool) {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()
	h, ok := b.handlers[endpointID]
	return h, ok
}

// Handlers returns a snapshot of all handlers.
func (b *Bridge) Handlers() []*ActionHandler {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()
	out := make([]*ActionHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		out = append(out, h)
	}
	return out
}

// Host interface

// Communication returns the controller session, or nil before the first
// connection is established.
func (b *Bridge) Communication() Communicator {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	if b.conn == nil {
		return nil
	}
	return b.conn
}

// BridgeOnline reports a recovered controller session: health is
// republished and every handler is notified so awaiting endpoints bind
// and bound ones come back online.
func (b *Bridge) BridgeOnline() {
	b.logInfo("controller session online")

	for _, h := range b.Handlers() {
		h.BridgeStatusChanged(true)
	}

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}
}

// bridgeOffline marks every endpoint offline and republishes health.
func (b *Bridge) bridgeOffline() {
	for _, h := range b.Handlers() {
		h.BridgeStatusChanged(false)
	}

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}
}

// Submit schedules a task on the worker pool. Returns false when the
// queue is full.
func (b *Bridge) Submit(task func()) bool {
	select {
	case b.tasks <- task:
		return true
	default:
		return false
	}
}

// worker drains the task queue until shutdown.
func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case task := <-b.tasks:
			b.runTask(task)
		}
	}
}

// runTask executes one task, recovering panics so a broken handler
// cannot kill the pool.
func (b *Bridge) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logError("panic in worker task", fmt.Errorf("%v", r))
		}
	}()
	task()
}

// UpdateState publishes a typed state value for an endpoint, deduplicated
// against the last published value. Retained so late subscribers see the
// current state.
func (b *Bridge) UpdateState(endpointID string, value ChannelValue) {
	b.stateCacheMu.Lock()
	cached, seen := b.stateCache[endpointID]
	if seen && cached == value {
		b.stateCacheMu.Unlock()
		return
	}
	b.stateCache[endpointID] = value
	b.stateCacheMu.Unlock()

	msg := NewStateMessage(endpointID, value)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(endpointID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}

	if b.registry != nil {
		if err := b.registry.SetEndpointState(b.ctx, endpointID, value.StatePayload()); err != nil {
			b.logDebug("registry state update skipped",
				"endpoint", endpointID, "reason", err.Error())
		}
	}

	b.eventMu.RLock()
	onState := b.onState
	b.eventMu.RUnlock()
	if onState != nil {
		onState(endpointID, value)
	}
}

// UpdateStatus publishes an availability status for an endpoint,
// deduplicated ignoring timestamps.
func (b *Bridge) UpdateStatus(endpointID string, status EndpointStatus) {
	b.stateCacheMu.Lock()
	cached, seen := b.statusCache[endpointID]
	if seen && sameStatus(cached, status) {
		b.stateCacheMu.Unlock()
		return
	}
	b.statusCache[endpointID] = status
	b.stateCacheMu.Unlock()

	msg := NewStatusMessage(endpointID, status)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal status", err)
		return
	}

	if err := b.mqtt.Publish(StatusTopic(endpointID), payload, 1, true); err != nil {
		b.logError("failed to publish status", err)
	}

	if b.registry != nil {
		if err := b.registry.SetEndpointHealth(b.ctx, endpointID, string(status.State)); err != nil {
			b.logDebug("registry health update skipped",
				"endpoint", endpointID, "reason", err.Error())
		}
	}

	b.eventMu.RLock()
	onStatus := b.onStatus
	b.eventMu.RUnlock()
	if onStatus != nil {
		onStatus(endpointID, status)
	}
}

// SetProperties records descriptive endpoint properties in the registry.
func (b *Bridge) SetProperties(endpointID string, props map[string]string) {
	if b.registry == nil {
		return
	}
	if err := b.registry.SetEndpointProperties(b.ctx, endpointID, props); err != nil {
		b.logDebug("registry property update skipped",
			"endpoint", endpointID, "reason", err.Error())
	}
}

// Event callbacks

// SetOnState registers a callback invoked after every published state
// change. Used by the diagnostics API to stream events.
func (b *Bridge) SetOnState(fn func(endpointID string, value ChannelValue)) {
	b.eventMu.Lock()
	b.onState = fn
	b.eventMu.Unlock()
}

// SetOnStatus registers a callback invoked after every published status
// change.
func (b *Bridge) SetOnStatus(fn func(endpointID string, status EndpointStatus)) {
	b.eventMu.Lock()
	b.onStatus = fn
	b.eventMu.Unlock()
}

// CachedState returns the last published state for an endpoint.
func (b *Bridge) CachedState(endpointID string) (ChannelValue, bool) {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	value, ok := b.stateCache[endpointID]
	return value, ok
}

// CachedStatus returns the last published status for an endpoint.
func (b *Bridge) CachedStatus(endpointID string) (EndpointStatus, bool) {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	status, ok := b.statusCache[endpointID]
	return status, ok
}

// Connection loss and recovery

// onConnectionLost runs when the controller session drops. Endpoints are
// marked offline immediately; a background loop then retries the session
// until it recovers or the bridge stops. Opportunistic restarts triggered
// by commands share the session's single-flight restart.
func (b *Bridge) onConnectionLost(err error) {
	b.logWarn("controller connection lost", "error", err)
	b.bridgeOffline()

	if !b.reconnecting.CompareAndSwap(false, true) {
		return
	}

	b.wg.Add(1)
	go b.reconnectLoop()
}

// reconnectLoop retries the controller session on a fixed interval.
func (b *Bridge) reconnectLoop() {
	defer b.wg.Done()
	defer b.reconnecting.Store(false)

	ticker := time.NewTicker(b.cfg.GetReconnectInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			conn := b.connector()
			if conn == nil {
				return
			}
			conn.Restart()
			if conn.Active() {
				b.BridgeOnline()
				return
			}
			b.logDebug("controller reconnect attempt failed")
		}
	}
}

func (b *Bridge) connector() Connector {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	return b.conn
}

// MQTT message handling

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[len(parts)-1], payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(topicEndpoint string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.EndpointID == "" {
		cmd.EndpointID = topicEndpoint
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"endpoint", cmd.EndpointID,
		"command", cmd.Command)

	handler, ok := b.Handler(cmd.EndpointID)
	if !ok {
		b.publishAckError(cmd, ErrCodeUnknownEndpoint,
			fmt.Sprintf("endpoint %s not configured", cmd.EndpointID))
		return
	}

	channel, typed, err := cmd.Decode()
	if err != nil {
		b.publishAckError(cmd, ErrCodeInvalidCommand, err.Error())
		return
	}

	switch err := handler.HandleCommand(channel, typed); {
	case err == nil:
		b.publishAck(cmd, AckAccepted)
	case errors.Is(err, ErrQueueFull):
		b.publishAckError(cmd, ErrCodeQueueOverflow, "worker queue full")
	case errors.Is(err, ErrNoConnection):
		b.publishAckError(cmd, ErrCodeControllerUnreachable, "no controller connection")
	default:
		b.publishAckError(cmd, ErrCodeBridgeError, err.Error())
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.EndpointID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.EndpointID), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed", fmt.Errorf("code=%s message=%s", code, message))
}

// handleRequest processes a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage

	switch req.Action {
	case "list":
		resp = b.handleListRequest(req)
	case "refresh":
		resp = b.handleRefreshRequest(req)
	case "restart":
		resp = b.handleRestartRequest(req)
	default:
		resp = ResponseMessage{
			RequestID: req.RequestID,
			Timestamp: time.Now().UTC(),
			Success:   false,
			Error: &ResponseError{
				Code:    ErrCodeInvalidCommand,
				Message: fmt.Sprintf("unknown action: %s", req.Action),
			},
		}
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// handleListRequest returns all configured endpoints with their cached
// states and statuses.
func (b *Bridge) handleListRequest(req RequestMessage) ResponseMessage {
	endpoints := make([]map[string]any, 0, len(b.cfg.Endpoints))

	for _, h := range b.Handlers() {
		entry := map[string]any{
			"endpoint_id": h.EndpointID(),
			"action_id":   h.ActionID(),
			"bound":       h.Bound(),
		}
		if value, ok := b.CachedState(h.EndpointID()); ok {
			entry["channel"] = string(value.Channel)
			entry["state"] = value.StatePayload()
		}
		if status, ok := b.CachedStatus(h.EndpointID()); ok {
			entry["status"] = string(status.State)
		}
		endpoints = append(endpoints, entry)
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"endpoints": endpoints,
		},
	}
}

// handleRefreshRequest re-projects the current state of every bound
// endpoint.
func (b *Bridge) handleRefreshRequest(req RequestMessage) ResponseMessage {
	refreshed := 0
	for _, h := range b.Handlers() {
		handler := h
		if b.Submit(func() { handler.Refresh() }) {
			refreshed++
		}
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"scheduled": refreshed,
		},
	}
}

// handleRestartRequest restarts the controller session. Blocks until the
// attempt completes; the session restart is single-flight so concurrent
// requests collapse into one attempt.
func (b *Bridge) handleRestartRequest(req RequestMessage) ResponseMessage {
	conn := b.connector()
	if conn == nil {
		return ResponseMessage{
			RequestID: req.RequestID,
			Timestamp: time.Now().UTC(),
			Success:   false,
			Error: &ResponseError{
				Code:    ErrCodeControllerUnreachable,
				Message: "no controller connection",
			},
		}
	}

	conn.Restart()
	active := conn.Active()
	if active {
		b.BridgeOnline()
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   active,
		Data: map[string]any{
			"active": active,
		},
	}
}

// Metrics

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Connected        bool
	Status           string
	EventsReceived   uint64
	CommandsSent     uint64
	Reconnects       uint64
	EndpointsManaged int
	EndpointsBound   int
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	bound := 0
	handlers := b.Handlers()
	for _, h := range handlers {
		if h.Bound() {
			bound++
		}
	}

	connected := false
	status := "disconnected"
	var stats nhc.ClientStats

	if conn := b.connector(); conn != nil {
		connected = conn.Active()
		stats = conn.Stats()
		if connected {
			status = "healthy"
		}
	}

	return BridgeMetrics{
		Connected:        connected,
		Status:           status,
		EventsReceived:   stats.EventsRx,
		CommandsSent:     stats.CommandsTx,
		Reconnects:       stats.Reconnects,
		EndpointsManaged: len(handlers),
		EndpointsBound:   bound,
	}
}

// Logging

// SetLogger sets the logger for the bridge and its handlers.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
	for _, h := range b.Handlers() {
		h.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.getLogger().Info(msg, keysAndValues...)
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.getLogger().Warn(msg, keysAndValues...)
}

func (b *Bridge) logError(msg string, err error) {
	b.getLogger().Error(msg, "error", err)
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.getLogger().Debug(msg, keysAndValues...)
}
