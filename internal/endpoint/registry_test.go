package endpoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRepository implements Repository in memory for registry tests.
type mockRepository struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	failWith  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{endpoints: make(map[string]*Endpoint)}
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	ep, ok := m.endpoints[id]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	return ep.DeepCopy(), nil
}

func (m *mockRepository) List(ctx context.Context) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		out = append(out, *ep.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) ListByRoom(ctx context.Context, room string) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Endpoint
	for _, ep := range m.endpoints {
		if ep.Room != nil && *ep.Room == room {
			out = append(out, *ep.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, ep *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.endpoints[ep.ID]; exists {
		return ErrEndpointExists
	}
	m.endpoints[ep.ID] = ep.DeepCopy()
	return nil
}

func (m *mockRepository) Update(ctx context.Context, ep *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.endpoints[ep.ID]; !exists {
		return ErrEndpointNotFound
	}
	m.endpoints[ep.ID] = ep.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.endpoints[id]; !exists {
		return ErrEndpointNotFound
	}
	delete(m.endpoints, id)
	return nil
}

func (m *mockRepository) UpdateState(ctx context.Context, id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return ErrEndpointNotFound
	}
	if ep.State == nil {
		ep.State = make(State, len(state))
	}
	for k, v := range state {
		ep.State[k] = v
	}
	return nil
}

func (m *mockRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return ErrEndpointNotFound
	}
	ep.HealthStatus = status
	ep.HealthLastSeen = &lastSeen
	return nil
}

func (m *mockRepository) UpdateProperties(ctx context.Context, id string, props Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return ErrEndpointNotFound
	}
	if ep.Properties == nil {
		ep.Properties = make(Properties, len(props))
	}
	for k, v := range props {
		ep.Properties[k] = v
	}
	return nil
}

func TestRegistryCreateEndpoint(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	ep := &Endpoint{
		ID:       "light-living",
		Name:     "Living Room Light",
		ActionID: "1",
	}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	// Slug and health status defaulted.
	if ep.Slug != "living-room-light" {
		t.Errorf("Slug = %q, want living-room-light", ep.Slug)
	}
	if ep.HealthStatus != HealthStatusUnknown {
		t.Errorf("HealthStatus = %s, want unknown", ep.HealthStatus)
	}

	got, err := registry.GetEndpoint(ctx, "light-living")
	if err != nil {
		t.Fatalf("GetEndpoint() error = %v", err)
	}
	if got.Name != "Living Room Light" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestRegistryCreateEndpointGeneratesID(t *testing.T) {
	registry := NewRegistry(newMockRepository())

	ep := &Endpoint{Name: "New Endpoint", ActionID: "5"}
	if err := registry.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}
	if ep.ID == "" {
		t.Error("ID not generated")
	}
}

func TestRegistryCreateEndpointValidates(t *testing.T) {
	registry := NewRegistry(newMockRepository())

	err := registry.CreateEndpoint(context.Background(), &Endpoint{
		ID:       "light-living",
		Name:     "Living Room Light",
		ActionID: "abc",
	})
	if !errors.Is(err, ErrInvalidActionID) {
		t.Errorf("CreateEndpoint() error = %v, want ErrInvalidActionID", err)
	}
}

func TestRegistryEnsureEndpoint(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	seed := &Endpoint{ID: "light-living", Name: "Living Room Light", ActionID: "1"}
	if err := registry.EnsureEndpoint(ctx, seed); err != nil {
		t.Fatalf("EnsureEndpoint() error = %v", err)
	}

	// A user rename survives re-seeding.
	got, _ := registry.GetEndpoint(ctx, "light-living")
	got.Name = "Lounge Light"
	if err := registry.UpdateEndpoint(ctx, got); err != nil {
		t.Fatalf("UpdateEndpoint() error = %v", err)
	}

	again := &Endpoint{ID: "light-living", Name: "Living Room Light", ActionID: "1"}
	if err := registry.EnsureEndpoint(ctx, again); err != nil {
		t.Fatalf("second EnsureEndpoint() error = %v", err)
	}

	final, err := registry.GetEndpoint(ctx, "light-living")
	if err != nil {
		t.Fatalf("GetEndpoint() error = %v", err)
	}
	if final.Name != "Lounge Light" {
		t.Errorf("Name = %q, want user rename preserved", final.Name)
	}
}

func TestRegistryCacheIsolation(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{
		ID:       "light-living",
		Name:     "Living Room Light",
		ActionID: "1",
		State:    State{"level": 50},
	}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	// Mutating a returned copy must not leak into the cache.
	got, _ := registry.GetEndpoint(ctx, "light-living")
	got.State["level"] = 99
	got.Name = "Mutated"

	fresh, _ := registry.GetEndpoint(ctx, "light-living")
	if fresh.Name != "Living Room Light" {
		t.Errorf("cache name mutated: %q", fresh.Name)
	}
	if fresh.State["level"] != 50 {
		t.Errorf("cache state mutated: %v", fresh.State["level"])
	}
}

func TestRegistrySetEndpointState(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{
		ID:       "light-living",
		Name:     "Living Room Light",
		ActionID: "1",
		State:    State{"on": true},
	}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	if err := registry.SetEndpointState(ctx, "light-living", State{"level": 75}); err != nil {
		t.Fatalf("SetEndpointState() error = %v", err)
	}

	got, _ := registry.GetEndpoint(ctx, "light-living")
	if got.State["level"] != 75 {
		t.Errorf("level = %v, want 75", got.State["level"])
	}
	if got.State["on"] != true {
		t.Errorf("merged state lost existing key: %v", got.State)
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt not set in cache")
	}
}

func TestRegistrySetEndpointHealth(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{ID: "light-living", Name: "Living Room Light", ActionID: "1"}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	if err := registry.SetEndpointHealth(ctx, "light-living", HealthStatusOnline); err != nil {
		t.Fatalf("SetEndpointHealth() error = %v", err)
	}

	got, _ := registry.GetEndpoint(ctx, "light-living")
	if got.HealthStatus != HealthStatusOnline {
		t.Errorf("HealthStatus = %s, want online", got.HealthStatus)
	}
	if got.HealthLastSeen == nil {
		t.Error("HealthLastSeen not set")
	}
}

func TestRegistrySetEndpointProperties(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{
		ID:         "shutter-kitchen",
		Name:       "Kitchen Shutter",
		ActionID:   "7",
		Properties: Properties{"kind": "rollershutter"},
	}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	if err := registry.SetEndpointProperties(ctx, "shutter-kitchen", Properties{"open_time": "25"}); err != nil {
		t.Fatalf("SetEndpointProperties() error = %v", err)
	}

	got, _ := registry.GetEndpoint(ctx, "shutter-kitchen")
	if got.Properties["kind"] != "rollershutter" || got.Properties["open_time"] != "25" {
		t.Errorf("Properties = %v", got.Properties)
	}
}

func TestRegistryRefreshCache(t *testing.T) {
	repo := newMockRepository()
	repo.endpoints["light-a"] = testEndpoint("light-a", "Light A")
	repo.endpoints["light-b"] = testEndpoint("light-b", "Light B")

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if registry.GetEndpointCount() != 2 {
		t.Errorf("count = %d, want 2", registry.GetEndpointCount())
	}
}

func TestRegistryGetEndpointBySlug(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{ID: "light-living", Name: "Living Room Light", ActionID: "1"}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	got, err := registry.GetEndpointBySlug(ctx, "living-room-light")
	if err != nil {
		t.Fatalf("GetEndpointBySlug() error = %v", err)
	}
	if got.ID != "light-living" {
		t.Errorf("ID = %q", got.ID)
	}

	if _, err := registry.GetEndpointBySlug(ctx, "ghost"); !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("GetEndpointBySlug() error = %v, want ErrEndpointNotFound", err)
	}
}

func TestRegistryDeleteEndpoint(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	ep := &Endpoint{ID: "light-living", Name: "Living Room Light", ActionID: "1"}
	if err := registry.CreateEndpoint(ctx, ep); err != nil {
		t.Fatalf("CreateEndpoint() error = %v", err)
	}

	if err := registry.DeleteEndpoint(ctx, "light-living"); err != nil {
		t.Fatalf("DeleteEndpoint() error = %v", err)
	}
	if registry.GetEndpointCount() != 0 {
		t.Errorf("count = %d after delete, want 0", registry.GetEndpointCount())
	}
}

func TestRegistryGetStats(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	dimmer := &Endpoint{
		ID: "light-living", Name: "Living Room Light", ActionID: "1",
		Properties: Properties{"kind": "dimmer"},
	}
	shutter := &Endpoint{
		ID: "shutter-kitchen", Name: "Kitchen Shutter", ActionID: "7",
		Properties: Properties{"kind": "rollershutter"},
	}
	for _, ep := range []*Endpoint{dimmer, shutter} {
		if err := registry.CreateEndpoint(ctx, ep); err != nil {
			t.Fatalf("CreateEndpoint() error = %v", err)
		}
	}
	if err := registry.SetEndpointHealth(ctx, "light-living", HealthStatusOnline); err != nil {
		t.Fatalf("SetEndpointHealth() error = %v", err)
	}

	stats := registry.GetStats()
	if stats.TotalEndpoints != 2 {
		t.Errorf("total = %d, want 2", stats.TotalEndpoints)
	}
	if stats.ByKind["dimmer"] != 1 || stats.ByKind["rollershutter"] != 1 {
		t.Errorf("by kind = %v", stats.ByKind)
	}
	if stats.ByHealthStatus[HealthStatusOnline] != 1 || stats.ByHealthStatus[HealthStatusUnknown] != 1 {
		t.Errorf("by health = %v", stats.ByHealthStatus)
	}
}
