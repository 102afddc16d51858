package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/storage/postgres"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/testutil"
)

func TestValidKind(t *testing.T) {
	assert.True(t, postgres.ValidKind(postgres.KindEngine))
	assert.True(t, postgres.ValidKind(postgres.KindInventory))
	assert.False(t, postgres.ValidKind(""))
	assert.False(t, postgres.ValidKind("character"))
}

// Property: ValidKind accepts exactly the two defined kinds.
func TestPropertyValidKind(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "kind")
		got := postgres.ValidKind(kind)
		want := kind == postgres.KindEngine || kind == postgres.KindInventory
		if got != want {
			t.Fatalf("ValidKind(%q) = %v, want %v", kind, got, want)
		}
	})
}

// Kind validation short-circuits before any query, so no pool is needed.
func TestSnapshotRepository_RejectsUnknownKind(t *testing.T) {
	repo := postgres.NewSnapshotRepository(nil)
	ctx := context.Background()

	_, err := repo.Save(ctx, "x", "banana", []byte(`{}`))
	assert.ErrorIs(t, err, postgres.ErrInvalidKind)
	_, err = repo.Get(ctx, "x", "banana")
	assert.ErrorIs(t, err, postgres.ErrInvalidKind)
	_, err = repo.List(ctx, "banana")
	assert.ErrorIs(t, err, postgres.ErrInvalidKind)
	assert.ErrorIs(t, repo.Delete(ctx, "x", "banana"), postgres.ErrInvalidKind)
}

func setupSnapshotRepo(t *testing.T) *postgres.SnapshotRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db := testutil.StartPostgres(t)
	db.MigrateUp(t)
	return postgres.NewSnapshotRepository(db.Raw)
}

func TestSnapshotRepository_SaveAndGet(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, "daily-banner", postgres.KindEngine, []byte(`{"seed": 42}`))
	require.NoError(t, err)
	assert.Equal(t, "daily-banner", saved.Name)
	assert.Equal(t, postgres.KindEngine, saved.Kind)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "daily-banner", postgres.KindEngine)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seed": 42}`, string(got.Data))
}

func TestSnapshotRepository_SaveUpserts(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	first, err := repo.Save(ctx, "daily-banner", postgres.KindEngine, []byte(`{"version": 1}`))
	require.NoError(t, err)
	second, err := repo.Save(ctx, "daily-banner", postgres.KindEngine, []byte(`{"version": 2}`))
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	got, err := repo.Get(ctx, "daily-banner", postgres.KindEngine)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": 2}`, string(got.Data))

	snaps, err := repo.List(ctx, postgres.KindEngine)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "upsert must not create a second row")
}

func TestSnapshotRepository_KindsAreSeparate(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "hero", postgres.KindEngine, []byte(`{"a": 1}`))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "hero", postgres.KindInventory, []byte(`{"b": 2}`))
	require.NoError(t, err)

	eng, err := repo.Get(ctx, "hero", postgres.KindEngine)
	require.NoError(t, err)
	inv, err := repo.Get(ctx, "hero", postgres.KindInventory)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(eng.Data))
	assert.JSONEq(t, `{"b": 2}`, string(inv.Data))
}

func TestSnapshotRepository_GetMissing(t *testing.T) {
	repo := setupSnapshotRepo(t)
	_, err := repo.Get(context.Background(), "nope", postgres.KindEngine)
	assert.ErrorIs(t, err, postgres.ErrSnapshotNotFound)
}

func TestSnapshotRepository_ListOrdersByName(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "midway"} {
		_, err := repo.Save(ctx, name, postgres.KindInventory, []byte(`{}`))
		require.NoError(t, err)
	}
	_, err := repo.Save(ctx, "other-kind", postgres.KindEngine, []byte(`{}`))
	require.NoError(t, err)

	snaps, err := repo.List(ctx, postgres.KindInventory)
	require.NoError(t, err)
	names := make([]string, 0, len(snaps))
	for _, s := range snaps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"alpha", "midway", "zeta"}, names)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "temp", postgres.KindEngine, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "temp", postgres.KindEngine))
	assert.ErrorIs(t, repo.Delete(ctx, "temp", postgres.KindEngine), postgres.ErrSnapshotNotFound)

	_, err = repo.Get(ctx, "temp", postgres.KindEngine)
	assert.ErrorIs(t, err, postgres.ErrSnapshotNotFound)
}

// Property: Save followed by Get returns the stored document.
func TestPropertySnapshotRoundTrip(t *testing.T) {
	repo := setupSnapshotRepo(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[a-z0-9-]{1,24}`).Draw(rt, "name")
		seed := rapid.Int64().Draw(rt, "seed")
		data := fmt.Sprintf(`{"seed": %d}`, seed)

		if _, err := repo.Save(ctx, name, postgres.KindEngine, []byte(data)); err != nil {
			rt.Fatalf("save: %v", err)
		}
		got, err := repo.Get(ctx, name, postgres.KindEngine)
		if err != nil {
			rt.Fatalf("get: %v", err)
		}
		assert.JSONEq(rt, data, string(got.Data))
	})
}
