package endpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for endpoint persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an endpoint by its unique identifier.
	// Returns ErrEndpointNotFound if the endpoint does not exist.
	GetByID(ctx context.Context, id string) (*Endpoint, error)

	// List retrieves all endpoints.
	List(ctx context.Context) ([]Endpoint, error)

	// ListByRoom retrieves all endpoints in a specific room.
	ListByRoom(ctx context.Context, room string) ([]Endpoint, error)

	// Create inserts a new endpoint.
	// Returns ErrEndpointExists if an endpoint with the same ID already exists.
	Create(ctx context.Context, ep *Endpoint) error

	// Update modifies an existing endpoint.
	// Returns ErrEndpointNotFound if the endpoint does not exist.
	Update(ctx context.Context, ep *Endpoint) error

	// Delete removes an endpoint by ID.
	// Returns ErrEndpointNotFound if the endpoint does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState merges state fields into the endpoint's current state.
	// This is optimised for frequent state changes from the controller.
	UpdateState(ctx context.Context, id string, state State) error

	// UpdateHealth updates the health status and last seen timestamp.
	UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error

	// UpdateProperties merges descriptive properties into the endpoint.
	UpdateProperties(ctx context.Context, id string, props Properties) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const endpointColumns = `id, name, slug, room, action_id, step, invert,
		state, state_updated_at, health_status, health_last_seen,
		properties, created_at, updated_at`

// GetByID retrieves an endpoint by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Endpoint, error) {
	query := `
		SELECT ` + endpointColumns + `
		FROM endpoints
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	ep, err := scanEndpointRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEndpointNotFound
		}
		return nil, fmt.Errorf("querying endpoint by id: %w", err)
	}
	return ep, nil
}

// List retrieves all endpoints.
func (r *SQLiteRepository) List(ctx context.Context) ([]Endpoint, error) {
	query := `
		SELECT ` + endpointColumns + `
		FROM endpoints
		ORDER BY name`

	return r.queryEndpoints(ctx, query)
}

// ListByRoom retrieves all endpoints in a specific room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, room string) ([]Endpoint, error) {
	query := `
		SELECT ` + endpointColumns + `
		FROM endpoints
		WHERE room = ?
		ORDER BY name`

	return r.queryEndpoints(ctx, query, room)
}

// Create inserts a new endpoint.
func (r *SQLiteRepository) Create(ctx context.Context, ep *Endpoint) error {
	stateJSON, err := json.Marshal(ep.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	propsJSON, err := json.Marshal(ep.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now

	query := `
		INSERT INTO endpoints (
			id, name, slug, room, action_id, step, invert,
			state, state_updated_at, health_status, health_last_seen,
			properties, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		ep.ID,
		ep.Name,
		ep.Slug,
		nullableString(ep.Room),
		ep.ActionID,
		ep.Step,
		boolToInt(ep.Invert),
		string(stateJSON),
		nullableTime(ep.StateUpdatedAt),
		string(ep.HealthStatus),
		nullableTime(ep.HealthLastSeen),
		string(propsJSON),
		ep.CreatedAt.Format(time.RFC3339),
		ep.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEndpointExists
		}
		return fmt.Errorf("inserting endpoint: %w", err)
	}

	return nil
}

// Update modifies an existing endpoint.
func (r *SQLiteRepository) Update(ctx context.Context, ep *Endpoint) error {
	stateJSON, err := json.Marshal(ep.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	propsJSON, err := json.Marshal(ep.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	ep.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE endpoints SET
			name = ?, slug = ?, room = ?, action_id = ?, step = ?, invert = ?,
			state = ?, state_updated_at = ?, health_status = ?, health_last_seen = ?,
			properties = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		ep.Name,
		ep.Slug,
		nullableString(ep.Room),
		ep.ActionID,
		ep.Step,
		boolToInt(ep.Invert),
		string(stateJSON),
		nullableTime(ep.StateUpdatedAt),
		string(ep.HealthStatus),
		nullableTime(ep.HealthLastSeen),
		string(propsJSON),
		ep.UpdatedAt.Format(time.RFC3339),
		ep.ID,
	)
	if err != nil {
		return fmt.Errorf("updating endpoint: %w", err)
	}

	return checkAffected(result)
}

// Delete removes an endpoint by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM endpoints WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}

	return checkAffected(result)
}

// UpdateState merges the given state fields into the endpoint's existing
// state. This allows partial updates (e.g., updating "on" without losing
// "level").
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	// json_patch(target, patch) applies patch keys to target, preserving
	// existing keys not present in patch.
	query := `
		UPDATE endpoints
		SET state = json_patch(COALESCE(state, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating endpoint state: %w", err)
	}

	return checkAffected(result)
}

// UpdateHealth updates the health status and last seen timestamp.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE endpoints
		SET health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		lastSeen.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating endpoint health: %w", err)
	}

	return checkAffected(result)
}

// UpdateProperties merges descriptive properties into the endpoint,
// preserving properties not present in the patch.
func (r *SQLiteRepository) UpdateProperties(ctx context.Context, id string, props Properties) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE endpoints
		SET properties = json_patch(COALESCE(properties, '{}'), ?),
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(propsJSON),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating endpoint properties: %w", err)
	}

	return checkAffected(result)
}

// queryEndpoints executes a query and returns a slice of endpoints.
func (r *SQLiteRepository) queryEndpoints(ctx context.Context, query string, args ...any) ([]Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		ep, err := scanEndpointRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating endpoints: %w", err)
	}

	return endpoints, nil
}

// checkAffected maps a zero-row write to ErrEndpointNotFound.
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEndpointRow scans a row or rows result into an Endpoint.
func scanEndpointRow(scanner rowScanner) (*Endpoint, error) {
	var e Endpoint
	var room sql.NullString
	var stateUpdatedAt, healthLastSeen sql.NullString
	var stateJSON, propsJSON string
	var invert int
	var healthStatus string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&e.ID,
		&e.Name,
		&e.Slug,
		&room,
		&e.ActionID,
		&e.Step,
		&invert,
		&stateJSON,
		&stateUpdatedAt,
		&healthStatus,
		&healthLastSeen,
		&propsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Invert = invert != 0
	e.HealthStatus = HealthStatus(healthStatus)

	if room.Valid {
		e.Room = &room.String
	}

	// Parse timestamps
	if stateUpdatedAt.Valid {
		t, err := time.Parse(time.RFC3339, stateUpdatedAt.String)
		if err == nil {
			e.StateUpdatedAt = &t
		}
	}
	if healthLastSeen.Valid {
		t, err := time.Parse(time.RFC3339, healthLastSeen.String)
		if err == nil {
			e.HealthLastSeen = &t
		}
	}

	var parseErr error
	e.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	e.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	// Unmarshal JSON fields
	if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}
	if err := json.Unmarshal([]byte(propsJSON), &e.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling properties: %w", err)
	}

	return &e, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
