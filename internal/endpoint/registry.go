package endpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides endpoint management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating write operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Endpoint // Cached endpoints by ID
	cacheMu sync.RWMutex         // Protects cache
	logger  Logger
}

// NewRegistry creates a new endpoint registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Endpoint),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all endpoints from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	endpoints, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading endpoints: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Endpoint, len(endpoints))
	for i := range endpoints {
		e := endpoints[i]
		r.cache[e.ID] = e.DeepCopy()
	}

	r.logger.Info("endpoint cache refreshed", "count", len(endpoints))
	return nil
}

// GetEndpoint retrieves an endpoint by ID.
// Returns ErrEndpointNotFound if the endpoint does not exist.
// The returned endpoint is a deep copy; callers can safely modify it.
func (r *Registry) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new endpoint not yet cached)
	ep, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = ep.DeepCopy()
	r.cacheMu.Unlock()

	return ep, nil
}

// ListEndpoints retrieves all endpoints.
// The returned endpoints are deep copies; callers can safely modify them.
func (r *Registry) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		endpoints := make([]Endpoint, 0, len(r.cache))
		for _, e := range r.cache {
			endpoints = append(endpoints, *e.DeepCopy())
		}
		return endpoints, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// GetEndpointsByRoom retrieves all endpoints assigned to a room.
// The returned endpoints are deep copies; callers can safely modify them.
func (r *Registry) GetEndpointsByRoom(ctx context.Context, room string) ([]Endpoint, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var endpoints []Endpoint
		for _, e := range r.cache {
			if e.Room != nil && *e.Room == room {
				endpoints = append(endpoints, *e.DeepCopy())
			}
		}
		return endpoints, nil
	}

	return r.repo.ListByRoom(ctx, room)
}

// CreateEndpoint creates a new endpoint.
// It validates the endpoint, generates ID and slug if needed, and persists it.
func (r *Registry) CreateEndpoint(ctx context.Context, ep *Endpoint) error {
	// Generate ID if not provided
	if ep.ID == "" {
		ep.ID = GenerateID()
	}

	// Generate slug if not provided
	if ep.Slug == "" {
		ep.Slug = GenerateSlug(ep.Name)
	}

	if ep.HealthStatus == "" {
		ep.HealthStatus = HealthStatusUnknown
	}

	if err := ValidateEndpoint(ep); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, ep); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[ep.ID] = ep.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("endpoint created", "id", ep.ID, "name", ep.Name)
	return nil
}

// EnsureEndpoint creates the endpoint if it does not exist yet. Existing
// records are left untouched so user modifications survive restarts.
func (r *Registry) EnsureEndpoint(ctx context.Context, ep *Endpoint) error {
	if _, err := r.GetEndpoint(ctx, ep.ID); err == nil {
		return nil
	} else if !errors.Is(err, ErrEndpointNotFound) {
		return err
	}

	if err := r.CreateEndpoint(ctx, ep); err != nil {
		// Lost a race against a concurrent create; the record exists.
		if errors.Is(err, ErrEndpointExists) {
			return nil
		}
		return err
	}
	return nil
}

// UpdateEndpoint updates an existing endpoint.
// It validates the endpoint and persists the changes.
func (r *Registry) UpdateEndpoint(ctx context.Context, ep *Endpoint) error {
	// Regenerate slug if name changed and slug wasn't explicitly set
	existing, err := r.GetEndpoint(ctx, ep.ID)
	if err != nil {
		return err
	}
	if ep.Name != existing.Name && ep.Slug == existing.Slug {
		ep.Slug = GenerateSlug(ep.Name)
	}

	if err := ValidateEndpoint(ep); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, ep); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[ep.ID] = ep.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("endpoint updated", "id", ep.ID, "name", ep.Name)
	return nil
}

// DeleteEndpoint removes an endpoint.
func (r *Registry) DeleteEndpoint(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("endpoint deleted", "id", id)
	return nil
}

// SetEndpointState merges state fields into an endpoint's current state.
// This is optimised for frequent updates from the controller session.
func (r *Registry) SetEndpointState(ctx context.Context, id string, state State) error {
	if err := r.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = make(State, len(state))
		}
		for k, v := range state {
			updated.State[k] = deepCopyValue(v)
		}
		now := time.Now().UTC()
		updated.StateUpdatedAt = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("endpoint state updated", "id", id)
	return nil
}

// SetEndpointHealth updates the availability of an endpoint.
func (r *Registry) SetEndpointHealth(ctx context.Context, id string, status HealthStatus) error {
	now := time.Now().UTC()
	if err := r.repo.UpdateHealth(ctx, id, status, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.HealthStatus = status
		updated.HealthLastSeen = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("endpoint health updated", "id", id, "status", status)
	return nil
}

// SetEndpointProperties merges descriptive properties into an endpoint.
func (r *Registry) SetEndpointProperties(ctx context.Context, id string, props Properties) error {
	if err := r.repo.UpdateProperties(ctx, id, props); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		if updated.Properties == nil {
			updated.Properties = make(Properties, len(props))
		}
		for k, v := range props {
			updated.Properties[k] = v
		}
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("endpoint properties updated", "id", id)
	return nil
}

// GetEndpointBySlug retrieves an endpoint by its URL-safe slug.
// The returned endpoint is a deep copy; callers can safely modify it.
func (r *Registry) GetEndpointBySlug(ctx context.Context, slug string) (*Endpoint, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, e := range r.cache {
		if e.Slug == slug {
			return e.DeepCopy(), nil
		}
	}
	return nil, ErrEndpointNotFound
}

// GetEndpointCount returns the number of cached endpoints.
func (r *Registry) GetEndpointCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalEndpoints int
	ByKind         map[string]int
	ByHealthStatus map[HealthStatus]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalEndpoints: len(r.cache),
		ByKind:         make(map[string]int),
		ByHealthStatus: make(map[HealthStatus]int),
	}

	for _, e := range r.cache {
		stats.ByKind[e.Kind()]++
		stats.ByHealthStatus[e.HealthStatus]++
	}

	return stats
}
