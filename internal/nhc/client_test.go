package nhc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// ─── Fake Controller ─────────────────────────────────────────────────────────

// fakeController speaks the controller's newline-JSON protocol on a local
// TCP listener: it answers the handshake commands, records executeactions
// requests, and can push state events onto the stream.
type fakeController struct {
	t        *testing.T
	listener net.Listener

	mu      sync.Mutex
	actions []actionData
	conns   []net.Conn

	executed chan executeRequest
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fc := &fakeController{
		t:        t,
		listener: ln,
		actions:  defaultTestActions(),
		executed: make(chan executeRequest, 16),
	}
	go fc.acceptLoop()
	t.Cleanup(fc.Close)
	return fc
}

func defaultTestActions() []actionData {
	return []actionData{
		{ID: 1, Name: "Doorbell", Type: actionTypeTrigger, Location: 1},
		{ID: 2, Name: "Kitchen Light", Type: actionTypeRelay, Location: 1},
		{ID: 3, Name: "Living Room Dimmer", Type: actionTypeDimmer, Location: 2, Value1: 40},
		{ID: 4, Name: "Kitchen Shutter", Type: actionTypeShutterUpDown, Location: 1, Value1: 100, Value2: 25, Value3: 22},
	}
}

func (fc *fakeController) port() int {
	return fc.listener.Addr().(*net.TCPAddr).Port
}

func (fc *fakeController) acceptLoop() {
	for {
		conn, err := fc.listener.Accept()
		if err != nil {
			return
		}
		fc.mu.Lock()
		fc.conns = append(fc.conns, conn)
		fc.mu.Unlock()
		go fc.serve(conn)
	}
}

func (fc *fakeController) serve(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var req executeRequest
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		switch req.Cmd {
		case cmdSystemInfo:
			fc.writeFrame(conn, map[string]any{
				"cmd":  cmdSystemInfo,
				"data": map[string]any{"swversion": "1.10.0", "api": "2.1"},
			})
		case cmdListLocations:
			fc.writeFrame(conn, map[string]any{
				"cmd": cmdListLocations,
				"data": []map[string]any{
					{"id": 1, "name": "Kitchen"},
					{"id": 2, "name": "Living Room"},
				},
			})
		case cmdListActions:
			fc.mu.Lock()
			list := append([]actionData(nil), fc.actions...)
			fc.mu.Unlock()
			fc.writeFrame(conn, map[string]any{"cmd": cmdListActions, "data": list})
		case cmdStartEvents:
			fc.writeFrame(conn, map[string]any{"cmd": cmdStartEvents, "data": map[string]int{"error": 0}})
		case cmdExecuteActions:
			select {
			case fc.executed <- req:
			default:
			}
			fc.writeFrame(conn, map[string]any{"cmd": cmdExecuteActions, "data": map[string]int{"error": 0}})
		}
	}
}

func (fc *fakeController) writeFrame(conn net.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		fc.t.Errorf("marshal frame: %v", err)
		return
	}
	conn.Write(append(payload, '\n')) //nolint:errcheck // Peer may be gone mid-test
}

// setActions replaces the action list served on the next listactions.
func (fc *fakeController) setActions(list []actionData) {
	fc.mu.Lock()
	fc.actions = list
	fc.mu.Unlock()
}

// pushEvent writes a state event onto the most recent session.
func (fc *fakeController) pushEvent(id, value int) {
	fc.mu.Lock()
	var conn net.Conn
	if len(fc.conns) > 0 {
		conn = fc.conns[len(fc.conns)-1]
	}
	fc.mu.Unlock()

	if conn == nil {
		fc.t.Error("pushEvent: no active connection")
		return
	}
	fc.writeFrame(conn, map[string]any{
		"event": cmdListActions,
		"data":  []map[string]int{{"id": id, "value1": value}},
	})
}

// dropConnections closes all sessions controller-side, keeping the listener
// open so a restart can reconnect.
func (fc *fakeController) dropConnections() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, conn := range fc.conns {
		conn.Close() //nolint:errcheck // Simulating connection loss
	}
	fc.conns = nil
}

func (fc *fakeController) Close() {
	fc.listener.Close() //nolint:errcheck // Test teardown
	fc.dropConnections()
}

// ─── Test Helpers ────────────────────────────────────────────────────────────

func connectClient(t *testing.T, fc *fakeController) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{
		Host:           "127.0.0.1",
		Port:           fc.port(),
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Close always returns nil
	return client
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// chanHandler forwards action notifications onto channels for assertion.
type chanHandler struct {
	states  chan int
	inits   chan struct{}
	removed chan struct{}
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		states:  make(chan int, 8),
		inits:   make(chan struct{}, 8),
		removed: make(chan struct{}, 8),
	}
}

func (h *chanHandler) ActionStateChanged(state int) { h.states <- state }
func (h *chanHandler) ActionInitialized()           { h.inits <- struct{}{} }
func (h *chanHandler) ActionRemoved()               { h.removed <- struct{}{} }

func recvState(t *testing.T, ch chan int, want int) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("state = %d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %d", want)
	}
}

func recvSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// ─── Connect ─────────────────────────────────────────────────────────────────

func TestConnect(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	if !client.Active() {
		t.Error("Active() = false after Connect")
	}

	actions := client.Actions()
	if len(actions) != 4 {
		t.Fatalf("Actions() returned %d actions, want 4", len(actions))
	}

	relay, ok := client.Action("2")
	if !ok {
		t.Fatal("Action(2) not found")
	}
	if got := relay.Kind(); got != KindRelay {
		t.Errorf("Kind() = %v, want KindRelay", got)
	}
	if got := relay.Name(); got != "Kitchen Light" {
		t.Errorf("Name() = %q, want Kitchen Light", got)
	}
	if got := relay.Location(); got != "Kitchen" {
		t.Errorf("Location() = %q, want Kitchen", got)
	}

	dimmer, _ := client.Action("3")
	if got := dimmer.State(); got != 40 {
		t.Errorf("dimmer State() = %d, want 40", got)
	}
	if got := dimmer.Location(); got != "Living Room" {
		t.Errorf("dimmer Location() = %q, want Living Room", got)
	}

	shutter, _ := client.Action("4")
	if got := shutter.OpenTime(); got != 25 {
		t.Errorf("shutter OpenTime() = %d, want 25", got)
	}

	if got := client.SystemInfo().SWVersion; got != "1.10.0" {
		t.Errorf("SystemInfo().SWVersion = %q, want 1.10.0", got)
	}

	stats := client.Stats()
	if !stats.Connected {
		t.Error("Stats().Connected = false")
	}
	if stats.Actions != 4 {
		t.Errorf("Stats().Actions = %d, want 4", stats.Actions)
	}
	if stats.ControllerSW != "1.10.0" {
		t.Errorf("Stats().ControllerSW = %q, want 1.10.0", stats.ControllerSW)
	}
}

func TestConnect_HostRequired(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DialFailure(t *testing.T) {
	// Grab a free port, then close the listener so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() //nolint:errcheck // Intentionally freeing the port

	_, err = Connect(context.Background(), Config{
		Host:           "127.0.0.1",
		Port:           port,
		ConnectTimeout: time.Second,
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// ─── Commands ────────────────────────────────────────────────────────────────

func TestExecute(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	relay, _ := client.Action("2")
	if err := relay.Execute(PrimitiveOn); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	select {
	case req := <-fc.executed:
		if req.ID != 2 {
			t.Errorf("request id = %d, want 2", req.ID)
		}
		if req.Value1 != 100 {
			t.Errorf("request value1 = %d, want 100", req.Value1)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executeactions request")
	}

	if got := client.Stats().CommandsTx; got != 1 {
		t.Errorf("Stats().CommandsTx = %d, want 1", got)
	}
}

func TestExecute_NumericPrimitive(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	dimmer, _ := client.Action("3")
	if err := dimmer.Execute(NumericPrimitive(60)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	select {
	case req := <-fc.executed:
		if req.ID != 3 || req.Value1 != 60 {
			t.Errorf("request = %+v, want id 3 value1 60", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executeactions request")
	}
}

func TestExecute_InvalidPrimitive(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	relay, _ := client.Action("2")
	if err := relay.Execute("Toggle"); !errors.Is(err, ErrInvalidPrimitive) {
		t.Fatalf("Execute() error = %v, want ErrInvalidPrimitive", err)
	}

	select {
	case req := <-fc.executed:
		t.Fatalf("unexpected request sent: %+v", req)
	default:
	}
}

func TestExecute_AfterClose(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	relay, _ := client.Action("2")
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := relay.Execute(PrimitiveOn); !errors.Is(err, ErrClosed) {
		t.Fatalf("Execute() error = %v, want ErrClosed", err)
	}
}

func TestExecute_NotConnected(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	fc.dropConnections()
	waitFor(t, func() bool { return !client.Active() }, "session still active after drop")

	relay, _ := client.Action("2")
	if err := relay.Execute(PrimitiveOn); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Execute() error = %v, want ErrNotConnected", err)
	}
}

// ─── Events ──────────────────────────────────────────────────────────────────

func TestStateEvents(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	dimmer, _ := client.Action("3")
	handler := newChanHandler()
	dimmer.SetEventHandler(handler)

	fc.pushEvent(3, 80)
	recvState(t, handler.states, 80)

	if got := dimmer.State(); got != 80 {
		t.Errorf("State() = %d, want 80", got)
	}
	if got := client.Stats().EventsRx; got == 0 {
		t.Error("Stats().EventsRx = 0, want > 0")
	}
}

func TestStateEvents_UnknownActionIgnored(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	dimmer, _ := client.Action("3")
	handler := newChanHandler()
	dimmer.SetEventHandler(handler)

	// Unknown action first; the following event proves the stream survived.
	fc.pushEvent(99, 50)
	fc.pushEvent(3, 65)
	recvState(t, handler.states, 65)
}

func TestStateEvents_NoHandler(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	relay, _ := client.Action("2")
	fc.pushEvent(2, 100)

	waitFor(t, func() bool { return relay.State() == 100 }, "state not applied")
}

// ─── Connection Loss and Restart ─────────────────────────────────────────────

func TestConnectionLost(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	lost := make(chan error, 1)
	client.SetOnConnectionLost(func(err error) { lost <- err })

	fc.dropConnections()

	select {
	case err := <-lost:
		if err == nil {
			t.Error("connection lost callback fired with nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection lost callback")
	}
	waitFor(t, func() bool { return !client.Active() }, "session still active after loss")
}

func TestRestart(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	fc.dropConnections()
	waitFor(t, func() bool { return !client.Active() }, "session still active after drop")

	client.Restart()

	if !client.Active() {
		t.Fatal("Active() = false after Restart")
	}
	if got := client.Stats().Reconnects; got != 1 {
		t.Errorf("Stats().Reconnects = %d, want 1", got)
	}
}

func TestRestart_MergesActions(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	dimmer, _ := client.Action("3")
	dimmerHandler := newChanHandler()
	dimmer.SetEventHandler(dimmerHandler)

	shutter, _ := client.Action("4")
	shutterHandler := newChanHandler()
	shutter.SetEventHandler(shutterHandler)

	// While the session is down, the dimmer moves and the shutter vanishes
	// from the controller configuration.
	fc.setActions([]actionData{
		{ID: 1, Name: "Doorbell", Type: actionTypeTrigger, Location: 1},
		{ID: 2, Name: "Kitchen Light", Type: actionTypeRelay, Location: 1},
		{ID: 3, Name: "Living Room Dimmer", Type: actionTypeDimmer, Location: 2, Value1: 90},
	})
	fc.dropConnections()
	waitFor(t, func() bool { return !client.Active() }, "session still active after drop")

	client.Restart()
	if !client.Active() {
		t.Fatal("Active() = false after Restart")
	}

	recvState(t, dimmerHandler.states, 90)
	recvSignal(t, dimmerHandler.inits, "dimmer re-registration")
	recvSignal(t, shutterHandler.removed, "shutter removal")

	if _, ok := client.Action("4"); ok {
		t.Error("Action(4) still present after removal")
	}
	if got := dimmer.State(); got != 90 {
		t.Errorf("dimmer State() = %d, want 90", got)
	}
}

func TestRestart_AfterClose(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must return without attempting a connection.
	client.Restart()
	if client.Active() {
		t.Error("Active() = true after Restart on closed client")
	}
}

// ─── Close ───────────────────────────────────────────────────────────────────

func TestClose_Idempotent(t *testing.T) {
	fc := newFakeController(t)
	client := connectClient(t, fc)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if client.Active() {
		t.Error("Active() = true after Close")
	}
}
