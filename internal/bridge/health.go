package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// defaultHealthInterval is used when the reporter config carries none.
const defaultHealthInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID  string
	version   string
	address   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher

	// Controller session (swappable; nil until connected)
	session   SessionStats
	sessionMu sync.RWMutex

	// Endpoint count (updated externally)
	endpointCount   int
	endpointCountMu sync.RWMutex

	// Optional telemetry recorder invoked on every publish
	recorder   TelemetryRecorder
	recorderMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// SessionStats exposes the controller session counters the reporter needs.
// Satisfied by *nhc.Client.
type SessionStats interface {
	Active() bool
	Stats() nhc.ClientStats
}

// TelemetryRecorder receives a copy of every published health snapshot.
// Wired to the InfluxDB writer in main; optional.
type TelemetryRecorder interface {
	RecordBridgeHealth(status string, stats nhc.ClientStats, endpoints int)
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Address is the controller address reported in health messages.
	Address string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Session provides controller session statistics. May be nil until
	// a connection exists; set later with SetSession.
	Session SessionStats
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		address:   cfg.Address,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		session:   cfg.Session,
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
}

// Start begins periodic health reporting.
//
// Parameters:
//   - ctx: Context for cancellation (reporting stops when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort during shutdown
		//nolint:errcheck
		h.publishStatus(HealthStopping, "")
	})
}

// SetSession swaps the controller session the reporter reads stats from.
func (h *HealthReporter) SetSession(session SessionStats) {
	h.sessionMu.Lock()
	h.session = session
	h.sessionMu.Unlock()
}

// SetEndpointCount updates the managed endpoint count.
func (h *HealthReporter) SetEndpointCount(count int) {
	h.endpointCountMu.Lock()
	h.endpointCount = count
	h.endpointCountMu.Unlock()
}

// SetRecorder sets the optional telemetry recorder.
func (h *HealthReporter) SetRecorder(recorder TelemetryRecorder) {
	h.recorderMu.Lock()
	h.recorder = recorder
	h.recorderMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// GetLWTPayload returns the Last Will and Testament message payload.
// Set as the MQTT will message during connection.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	msg := NewLWTMessage(h.bridgeID)
	return json.Marshal(msg)
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return HealthTopic()
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	session := h.getSession()
	if session == nil || !session.Active() {
		return HealthDegraded, "controller disconnected"
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.endpointCountMu.RLock()
	endpointCount := h.endpointCount
	h.endpointCountMu.RUnlock()

	var stats nhc.ClientStats
	if session := h.getSession(); session != nil {
		stats = session.Stats()
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, stats, endpointCount, h.startTime)
	if reason != "" {
		msg.Reason = reason
	}
	if msg.Connection != nil {
		msg.Connection.Address = h.address
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := h.publisher.Publish(HealthTopic(), payload, 1, true); err != nil {
		return err
	}

	h.recorderMu.RLock()
	recorder := h.recorder
	h.recorderMu.RUnlock()
	if recorder != nil {
		recorder.RecordBridgeHealth(string(status), stats, endpointCount)
	}

	return nil
}

func (h *HealthReporter) getSession() SessionStats {
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return h.session
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()
	logger.Error(msg, "error", err)
}
