// Package testutil starts a throwaway PostgreSQL for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "repcoach"
	pgPassword = "repcoach"
	pgDatabase = "repcoach_test"
)

// SetupPostgres starts a PostgreSQL container, applies the migrations and
// returns a connected DB. The container is terminated when the test ends.
// REPCOACH_TEST_PG_IMAGE overrides the image.
func SetupPostgres(t *testing.T) *storage.DB {
	t.Helper()
	ctx := context.Background()

	image := os.Getenv("REPCOACH_TEST_PG_IMAGE")
	if image == "" {
		image = "postgres:16-alpine"
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// Postgres restarts once after init; the second ready line is the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminating postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, host, port.Port(), pgDatabase)

	if err := storage.RunMigrations(dsn, migrationsDir(t)); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	db, err := storage.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// migrationsDir locates the repository's migrations directory from this file.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate testutil source file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
