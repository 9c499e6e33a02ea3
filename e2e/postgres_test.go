package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPoolOnce sync.Once
	testCleanup  func()
	testDSN      string
	testDBErr    error
)

// getSharedPostgresDatabase returns a DSN for a PostgreSQL container shared by
// all E2E tests. Tests are skipped when no container runtime is available.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testDBErr = err
			return
		}

		testCleanup = func() {
			_ = testcontainers.TerminateContainer(pgContainer)
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			testDBErr = err
			return
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			testDBErr = err
			return
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			testDBErr = err
			return
		}

		testDSN = connectionStr
	})

	if testDBErr != nil {
		t.Skipf("postgres container unavailable: %v", testDBErr)
	}
	return testDSN
}
