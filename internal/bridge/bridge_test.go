package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	connected     bool
	published     []PublishedMessage
	subscriptions map[string]func(topic string, payload []byte)
	publishErr    error
}

// PublishedMessage records a published MQTT message.
type PublishedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected:     true,
		subscriptions: make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, PublishedMessage{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// SimulateMessage delivers a message to the matching subscription handler.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(topic string, payload []byte)
	for pattern, h := range m.subscriptions {
		if topicMatches(pattern, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler != nil {
		handler(topic, payload)
	}
}

// topicMatches implements trailing-wildcard matching, enough for the
// bridge's subscription patterns.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "/#") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "#"))
	}
	return false
}

// GetPublished returns a copy of all published messages.
func (m *MockMQTTClient) GetPublished() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// GetPublishedTo returns messages published to a specific topic.
func (m *MockMQTTClient) GetPublishedTo(topic string) []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedMessage
	for _, msg := range m.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// ClearPublished discards recorded messages.
func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// mockConnector implements Connector on top of mockCommunicator.
type mockConnector struct {
	mockCommunicator
	stats  nhc.ClientStats
	onLost func(error)
}

func (c *mockConnector) Stats() nhc.ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *mockConnector) SetOnConnectionLost(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = fn
}

func (c *mockConnector) connectionLost(err error) {
	c.mu.Lock()
	fn := c.onLost
	c.active = false
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func createTestConfig(endpoints ...EndpointConfig) *Config {
	return &Config{
		Bridge: BridgeSettings{
			ID:             "nhc-test",
			HealthInterval: 60,
			Workers:        2,
			QueueSize:      16,
		},
		Controller: ControllerSettings{
			Host:              "192.0.2.10",
			Port:              nhc.DefaultPort,
			ReconnectInterval: 1,
		},
		Endpoints: endpoints,
	}
}

func createTestBridge(t *testing.T, endpoints ...EndpointConfig) (*Bridge, *MockMQTTClient) {
	t.Helper()

	mqtt := NewMockMQTTClient()
	b, err := NewBridge(BridgeOptions{
		Config:     createTestConfig(endpoints...),
		MQTTClient: mqtt,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("NewBridge() error: %v", err)
	}
	return b, mqtt
}

func startTestBridge(t *testing.T, b *Bridge) {
	t.Helper()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(b.Stop)
}

// waitFor polls a condition until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewBridgeValidation(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{MQTTClient: NewMockMQTTClient()}); err == nil {
		t.Error("NewBridge() accepted nil config")
	}
	if _, err := NewBridge(BridgeOptions{Config: createTestConfig()}); err == nil {
		t.Error("NewBridge() accepted nil MQTT client")
	}
}

func TestBridgeStartSubscribes(t *testing.T) {
	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)

	mqtt.mu.Lock()
	_, commands := mqtt.subscriptions[CommandSubscribeTopic()]
	_, requests := mqtt.subscriptions[RequestSubscribeTopic()]
	mqtt.mu.Unlock()

	if !commands {
		t.Error("not subscribed to command topic")
	}
	if !requests {
		t.Error("not subscribed to request topic")
	}

	// Start publishes "starting" followed by a full health report.
	health := mqtt.GetPublishedTo(HealthTopic())
	if len(health) < 2 {
		t.Fatalf("health publishes = %d, want >= 2", len(health))
	}
	var msg HealthMessage
	if err := json.Unmarshal(health[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthStarting {
		t.Errorf("first health status = %s, want %s", msg.Status, HealthStarting)
	}
	if !health[0].Retained {
		t.Error("health message not retained")
	}
}

func TestCommandUnknownEndpoint(t *testing.T) {
	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"id":"cmd-1","endpoint_id":"ghost","command":"on"}`)
	mqtt.SimulateMessage(CommandTopic("ghost"), payload)

	acks := mqtt.GetPublishedTo(AckTopic("ghost"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Status != AckFailed {
		t.Errorf("ack status = %s, want %s", ack.Status, AckFailed)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeUnknownEndpoint {
		t.Errorf("ack error = %+v, want code %s", ack.Error, ErrCodeUnknownEndpoint)
	}
}

func TestCommandInvalidCommand(t *testing.T) {
	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"id":"cmd-2","endpoint_id":"light-living","command":"explode"}`)
	mqtt.SimulateMessage(CommandTopic("light-living"), payload)

	acks := mqtt.GetPublishedTo(AckTopic("light-living"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeInvalidCommand {
		t.Errorf("ack error = %+v, want code %s", ack.Error, ErrCodeInvalidCommand)
	}
}

func TestCommandNoConnection(t *testing.T) {
	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"id":"cmd-3","endpoint_id":"light-living","command":"on"}`)
	mqtt.SimulateMessage(CommandTopic("light-living"), payload)

	acks := mqtt.GetPublishedTo(AckTopic("light-living"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeControllerUnreachable {
		t.Errorf("ack error = %+v, want code %s", ack.Error, ErrCodeControllerUnreachable)
	}
}

func TestCommandAccepted(t *testing.T) {
	entity := &mockEntity{kind: nhc.KindRelay}
	conn := &mockConnector{mockCommunicator: mockCommunicator{
		active:  true,
		actions: map[string]Entity{"1": entity},
	}}

	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	b.SetConnection(conn)

	waitFor(t, time.Second, "endpoint bind", func() bool {
		h, ok := b.Handler("light-living")
		return ok && h.Bound()
	})
	mqtt.ClearPublished()

	payload := []byte(`{"id":"cmd-4","endpoint_id":"light-living","command":"on","source":"core"}`)
	mqtt.SimulateMessage(CommandTopic("light-living"), payload)

	acks := mqtt.GetPublishedTo(AckTopic("light-living"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Status != AckAccepted {
		t.Errorf("ack status = %s, want %s", ack.Status, AckAccepted)
	}
	if ack.CommandID != "cmd-4" {
		t.Errorf("ack command id = %s, want cmd-4", ack.CommandID)
	}

	waitFor(t, time.Second, "primitive execution", func() bool {
		sent := entity.sentPrimitives()
		return len(sent) == 1 && sent[0] == nhc.PrimitiveOn
	})
}

func TestCommandEndpointFromTopic(t *testing.T) {
	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)
	mqtt.ClearPublished()

	// No endpoint_id in the payload; the topic suffix fills it in.
	payload := []byte(`{"id":"cmd-5","command":"on"}`)
	mqtt.SimulateMessage(CommandTopic("from-topic"), payload)

	acks := mqtt.GetPublishedTo(AckTopic("from-topic"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
}

func TestUpdateStateDedupe(t *testing.T) {
	b, mqtt := createTestBridge(t)

	value := ChannelValue{Channel: ChannelBrightness, Percent: 50}
	b.UpdateState("ep", value)
	b.UpdateState("ep", value)
	b.UpdateState("ep", ChannelValue{Channel: ChannelBrightness, Percent: 60})

	published := mqtt.GetPublishedTo(StateTopic("ep"))
	if len(published) != 2 {
		t.Fatalf("state publishes = %d, want 2", len(published))
	}
	if !published[0].Retained {
		t.Error("state message not retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(published[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.EndpointID != "ep" || msg.Channel != string(ChannelBrightness) {
		t.Errorf("state message = %+v", msg)
	}
	if msg.Protocol != "nhc" {
		t.Errorf("protocol = %s, want nhc", msg.Protocol)
	}
}

func TestUpdateStatusDedupe(t *testing.T) {
	b, mqtt := createTestBridge(t)

	// Identical apart from timestamps: deduplicated.
	b.UpdateStatus("ep", StatusOnline())
	time.Sleep(time.Millisecond)
	b.UpdateStatus("ep", StatusOnline())
	b.UpdateStatus("ep", StatusOffline(DetailBridgeOffline, "controller connection lost"))

	published := mqtt.GetPublishedTo(StatusTopic("ep"))
	if len(published) != 2 {
		t.Fatalf("status publishes = %d, want 2", len(published))
	}

	var msg StatusMessage
	if err := json.Unmarshal(published[1].Payload, &msg); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if msg.State != StateOffline || msg.Detail != DetailBridgeOffline {
		t.Errorf("status message = %+v", msg)
	}
}

func TestStateCallback(t *testing.T) {
	b, _ := createTestBridge(t)

	var mu sync.Mutex
	var got []ChannelValue
	b.SetOnState(func(endpointID string, value ChannelValue) {
		mu.Lock()
		got = append(got, value)
		mu.Unlock()
	})

	value := ChannelValue{Channel: ChannelSwitch, On: true}
	b.UpdateState("ep", value)
	b.UpdateState("ep", value)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != value {
		t.Errorf("callback values = %v, want one %+v", got, value)
	}
}

func TestListRequest(t *testing.T) {
	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"request_id":"req-1","action":"list"}`)
	mqtt.SimulateMessage(RequestTopic("req-1"), payload)

	responses := mqtt.GetPublishedTo(ResponseTopic("req-1"))
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(responses[0].Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Errorf("response failed: %+v", resp.Error)
	}
	endpoints, ok := resp.Data["endpoints"].([]any)
	if !ok || len(endpoints) != 1 {
		t.Fatalf("endpoints = %v, want 1 entry", resp.Data["endpoints"])
	}
	entry, ok := endpoints[0].(map[string]any)
	if !ok || entry["endpoint_id"] != "light-living" || entry["action_id"] != "1" {
		t.Errorf("entry = %v", endpoints[0])
	}
}

func TestRefreshRequest(t *testing.T) {
	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"request_id":"req-2","action":"refresh"}`)
	mqtt.SimulateMessage(RequestTopic("req-2"), payload)

	responses := mqtt.GetPublishedTo(ResponseTopic("req-2"))
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(responses[0].Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Errorf("response failed: %+v", resp.Error)
	}
	if scheduled, ok := resp.Data["scheduled"].(float64); !ok || scheduled != 1 {
		t.Errorf("scheduled = %v, want 1", resp.Data["scheduled"])
	}
}

func TestRestartRequestNoConnection(t *testing.T) {
	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"request_id":"req-3","action":"restart"}`)
	mqtt.SimulateMessage(RequestTopic("req-3"), payload)

	responses := mqtt.GetPublishedTo(ResponseTopic("req-3"))
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(responses[0].Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Success {
		t.Error("restart succeeded without a connection")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeControllerUnreachable {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeControllerUnreachable)
	}
}

func TestRestartRequestRecovers(t *testing.T) {
	conn := &mockConnector{mockCommunicator: mockCommunicator{
		actions:          map[string]Entity{},
		restartActivates: true,
	}}

	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)
	b.SetConnection(conn)
	mqtt.ClearPublished()

	payload := []byte(`{"request_id":"req-4","action":"restart"}`)
	mqtt.SimulateMessage(RequestTopic("req-4"), payload)

	responses := mqtt.GetPublishedTo(ResponseTopic("req-4"))
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(responses[0].Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Errorf("restart failed: %+v", resp.Error)
	}
	if conn.restarts() != 1 {
		t.Errorf("restarts = %d, want 1", conn.restarts())
	}
}

func TestUnknownRequestAction(t *testing.T) {
	b, mqtt := createTestBridge(t)
	startTestBridge(t, b)
	mqtt.ClearPublished()

	payload := []byte(`{"request_id":"req-5","action":"teleport"}`)
	mqtt.SimulateMessage(RequestTopic("req-5"), payload)

	responses := mqtt.GetPublishedTo(ResponseTopic("req-5"))
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(responses[0].Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Success || resp.Error == nil {
		t.Errorf("unknown action not rejected: %+v", resp)
	}
}

func TestSetConnectionBindsAwaitingHandlers(t *testing.T) {
	entity := &mockEntity{kind: nhc.KindDimmer, state: 30}
	conn := &mockConnector{mockCommunicator: mockCommunicator{
		active:  true,
		actions: map[string]Entity{"1": entity},
	}}

	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)

	h, ok := b.Handler("light-living")
	if !ok {
		t.Fatal("handler not built")
	}
	if h.Bound() {
		t.Fatal("handler bound before connection")
	}

	b.SetConnection(conn)

	waitFor(t, time.Second, "endpoint bind", func() bool { return h.Bound() })

	waitFor(t, time.Second, "state publish", func() bool {
		return len(mqtt.GetPublishedTo(StateTopic("light-living"))) > 0
	})
	states := mqtt.GetPublishedTo(StateTopic("light-living"))
	var msg StateMessage
	if err := json.Unmarshal(states[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if level, ok := msg.State["level"].(float64); !ok || level != 30 {
		t.Errorf("state = %v, want level 30", msg.State)
	}
}

func TestConnectionLostMarksEndpointsOffline(t *testing.T) {
	entity := &mockEntity{kind: nhc.KindRelay}
	conn := &mockConnector{mockCommunicator: mockCommunicator{
		active:  true,
		actions: map[string]Entity{"1": entity},
	}}

	b, mqtt := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	b.SetConnection(conn)

	waitFor(t, time.Second, "endpoint bind", func() bool {
		h, _ := b.Handler("light-living")
		return h.Bound()
	})
	mqtt.ClearPublished()

	conn.connectionLost(errSentinel)

	waitFor(t, time.Second, "offline status", func() bool {
		for _, msg := range mqtt.GetPublishedTo(StatusTopic("light-living")) {
			var status StatusMessage
			if json.Unmarshal(msg.Payload, &status) == nil &&
				status.State == StateOffline &&
				status.Detail == DetailBridgeOffline {
				return true
			}
		}
		return false
	})
}

var errSentinel = errTest("connection reset")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestGetMetrics(t *testing.T) {
	entity := &mockEntity{kind: nhc.KindRelay}
	conn := &mockConnector{
		mockCommunicator: mockCommunicator{
			active:  true,
			actions: map[string]Entity{"1": entity},
		},
		stats: nhc.ClientStats{EventsRx: 7, CommandsTx: 3, Reconnects: 1},
	}

	b, _ := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)

	metrics := b.GetMetrics()
	if metrics.Connected {
		t.Error("connected without a session")
	}
	if metrics.Status != "disconnected" {
		t.Errorf("status = %s, want disconnected", metrics.Status)
	}
	if metrics.EndpointsManaged != 1 || metrics.EndpointsBound != 0 {
		t.Errorf("endpoints = %d/%d, want 1/0", metrics.EndpointsBound, metrics.EndpointsManaged)
	}

	b.SetConnection(conn)
	waitFor(t, time.Second, "endpoint bind", func() bool {
		h, _ := b.Handler("light-living")
		return h.Bound()
	})

	metrics = b.GetMetrics()
	if !metrics.Connected || metrics.Status != "healthy" {
		t.Errorf("metrics = %+v, want connected/healthy", metrics)
	}
	if metrics.EventsReceived != 7 || metrics.CommandsSent != 3 || metrics.Reconnects != 1 {
		t.Errorf("counters = %+v", metrics)
	}
	if metrics.EndpointsBound != 1 {
		t.Errorf("bound = %d, want 1", metrics.EndpointsBound)
	}
}

func TestStopDisposesHandlers(t *testing.T) {
	entity := &mockEntity{kind: nhc.KindRelay}
	conn := &mockConnector{mockCommunicator: mockCommunicator{
		active:  true,
		actions: map[string]Entity{"1": entity},
	}}

	b, _ := createTestBridge(t, testEndpointConfig())
	startTestBridge(t, b)
	b.SetConnection(conn)

	waitFor(t, time.Second, "endpoint bind", func() bool {
		h, _ := b.Handler("light-living")
		return h.Bound()
	})

	b.Stop()
	b.Stop()

	if entity.currentHandler() != nil {
		t.Error("observer still registered after stop")
	}
}
