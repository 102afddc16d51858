// Package testutil boots disposable infrastructure for integration
// tests, currently a PostgreSQL container for snapshot persistence.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/config"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/storage/postgres"
)

const (
	postgresImage = "postgres:16-alpine"
	dbUser        = "draws"
	dbPassword    = "draws"
	dbName        = "draws"
)

// TestDatabase is a disposable PostgreSQL instance with a connected
// pool. The container and the pool are torn down via t.Cleanup.
type TestDatabase struct {
	ctr    testcontainers.Container
	Pool   *postgres.Pool
	Raw    *pgxpool.Pool
	Config config.DatabaseConfig
}

// StartPostgres boots a PostgreSQL container and connects a pool to it.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running database with a verified connection,
// or fails the test.
func StartPostgres(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()
	began := time.Now()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbUser,
				"POSTGRES_PASSWORD": dbPassword,
				"POSTGRES_DB":       dbName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = ctr.Terminate(ctx)
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("resolving container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("resolving mapped port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Enabled:         true,
		Host:            host,
		Port:            port.Int(),
		User:            dbUser,
		Password:        dbPassword,
		Name:            dbName,
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	t.Logf("postgres container ready [%s]", time.Since(began))

	return &TestDatabase{
		ctr:    ctr,
		Pool:   pool,
		Raw:    pool.DB(),
		Config: cfg,
	}
}

// MigrateUp applies every *.up.sql file from the repository's
// migrations directory in lexical order, so the test schema matches
// what the migrate tool would produce.
//
// Postcondition: The snapshots table exists in the test database.
func (db *TestDatabase) MigrateUp(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	dir := migrationsDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading migrations dir: %v", err)
	}

	applied := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		sql, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("reading migration %s: %v", e.Name(), err)
		}
		if _, err := db.Raw.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("applying migration %s: %v", e.Name(), err)
		}
		applied++
	}
	if applied == 0 {
		t.Fatalf("no *.up.sql files in %s", dir)
	}
	t.Logf("applied %d migrations", applied)
}

// DSN returns the connection string for the test database.
func (db *TestDatabase) DSN() string {
	return db.Config.DSN()
}

// migrationsDir locates the migrations directory relative to this
// source file so callers work from any package directory.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("locating testutil source file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
