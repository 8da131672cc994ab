// Package testutil provides shared test infrastructure for integration
// tests that require a Postgres container.
//
// Callers start the container lazily from the tests that need it and skip
// when Docker is unavailable:
//
//	tc, err := testutil.StartPostgres()
//	if err != nil {
//	    t.Skipf("postgres container unavailable: %v", err)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tessera-health/tessera/internal/store"
	"github.com/tessera-health/tessera/migrations"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres starts a Postgres container. The caller owns termination;
// containers leaked on test failure are reaped by testcontainers' ryuk.
func StartPostgres() (*TestContainer, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tessera",
			"POSTGRES_PASSWORD": "tessera",
			"POSTGRES_DB":       "tessera",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("testutil: start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: mapped port: %w", err)
	}

	return &TestContainer{
		Container: container,
		DSN:       fmt.Sprintf("postgres://tessera:tessera@%s:%s/tessera?sslmode=disable", host, port.Port()),
	}, nil
}

// Terminate stops the container, logging any error.
func (tc *TestContainer) Terminate() {
	if err := tc.Container.Terminate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "testutil: terminate container: %v\n", err)
	}
}

// NewTestStore connects a Postgres store against the container and runs the
// embedded migrations.
func (tc *TestContainer) NewTestStore(ctx context.Context, logger *slog.Logger) (*store.Postgres, error) {
	pg, err := store.NewPostgres(ctx, tc.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.RunMigrations(ctx, migrations.FS); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
