package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot kinds. Rows are keyed by (name, kind), so an engine export and an
// inventory export can share a name.
const (
	KindEngine    = "engine"
	KindInventory = "inventory"
)

// ValidKind reports whether kind is a recognised snapshot kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindEngine, KindInventory:
		return true
	}
	return false
}

// ErrSnapshotNotFound is returned when a snapshot lookup yields no results.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrInvalidKind is returned when an unrecognised kind string is supplied.
var ErrInvalidKind = errors.New("invalid snapshot kind")

// Snapshot is a named JSON export of a draw engine or an inventory.
type Snapshot struct {
	Name      string
	Kind      string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRepository provides snapshot persistence operations.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts a snapshot by (name, kind) and returns the stored row.
//
// Precondition: name must be non-empty; data must be a JSON document.
// Postcondition: The stored row reflects data; created_at is preserved
// across upserts.
func (r *SnapshotRepository) Save(ctx context.Context, name, kind string, data []byte) (Snapshot, error) {
	if !ValidKind(kind) {
		return Snapshot{}, ErrInvalidKind
	}

	var snap Snapshot
	err := r.db.QueryRow(ctx,
		`INSERT INTO snapshots (name, kind, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name, kind)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
		 RETURNING name, kind, data, created_at, updated_at`,
		name, kind, data,
	).Scan(&snap.Name, &snap.Kind, &snap.Data, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("upserting snapshot: %w", err)
	}
	return snap, nil
}

// Get retrieves a snapshot by (name, kind).
//
// Postcondition: Returns the Snapshot or ErrSnapshotNotFound.
func (r *SnapshotRepository) Get(ctx context.Context, name, kind string) (Snapshot, error) {
	if !ValidKind(kind) {
		return Snapshot{}, ErrInvalidKind
	}

	var snap Snapshot
	err := r.db.QueryRow(ctx,
		`SELECT name, kind, data, created_at, updated_at
		 FROM snapshots WHERE name = $1 AND kind = $2`,
		name, kind,
	).Scan(&snap.Name, &snap.Kind, &snap.Data, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}
	return snap, nil
}

// List returns all snapshots of the given kind ordered by name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SnapshotRepository) List(ctx context.Context, kind string) ([]Snapshot, error) {
	if !ValidKind(kind) {
		return nil, ErrInvalidKind
	}

	rows, err := r.db.Query(ctx,
		`SELECT name, kind, data, created_at, updated_at
		 FROM snapshots WHERE kind = $1 ORDER BY name ASC`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]Snapshot, 0)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Name, &snap.Kind, &snap.Data, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Delete removes a snapshot by (name, kind).
//
// Postcondition: Returns nil on success, ErrSnapshotNotFound if no row matched.
func (r *SnapshotRepository) Delete(ctx context.Context, name, kind string) error {
	if !ValidKind(kind) {
		return ErrInvalidKind
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM snapshots WHERE name = $1 AND kind = $2`,
		name, kind,
	)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
