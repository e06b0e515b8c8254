package persistence

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

const testSharedSchema = "platform"

var (
	testDBOnce sync.Once
	testDBURL  string
	testDBErr  error
	testSeq    atomic.Int64
)

// testDatabaseURL returns a database with the shared schema bootstrapped. It uses
// TEST_DATABASE_URL when set and otherwise starts one Postgres container for the
// whole package. Tests are skipped in short mode or when no database can be started.
func testDatabaseURL(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	testDBOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		url, ok := os.LookupEnv("TEST_DATABASE_URL")
		if !ok || url == "" {
			container, err := postgres.Run(ctx,
				"postgres:16-alpine",
				postgres.WithDatabase("schoolspace"),
				postgres.WithUsername("postgres"),
				postgres.WithPassword("postgres"),
				testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
			)
			if err != nil {
				testDBErr = fmt.Errorf("start postgres container: %w", err)
				return
			}
			if url, err = container.ConnectionString(ctx, "sslmode=disable"); err != nil {
				testDBErr = err
				return
			}
		}

		pool, err := NewPool(ctx, PoolConfig{ConnString: url, SharedSchema: testSharedSchema})
		if err != nil {
			testDBErr = err
			return
		}
		defer pool.Close()

		if testDBErr = BootstrapShared(ctx, pool, testSharedSchema); testDBErr != nil {
			return
		}
		testDBURL = url
	})

	if testDBErr != nil {
		t.Skipf("database unavailable: %v", testDBErr)
	}
	return testDBURL
}

// newTestPool opens a pool of maxConns connections against the test database.
func newTestPool(t *testing.T, maxConns int32) *pgxpool.Pool {
	t.Helper()

	pool, err := NewPool(context.Background(), PoolConfig{
		ConnString:     testDatabaseURL(t),
		MaxConns:       maxConns,
		SharedSchema:   testSharedSchema,
		ResetOnRelease: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })
	return pool
}

func newIntegrationExecutor(t *testing.T, pool *pgxpool.Pool, acquireTimeout time.Duration) *ScopedExecutor {
	t.Helper()
	return NewScopedExecutor(ScopedExecutorConfig{
		Pool:           pool,
		SharedSchema:   testSharedSchema,
		AcquireTimeout: acquireTimeout,
		Logger:         zaptest.NewLogger(t),
	})
}

// seedSchool creates an active school with a bootstrapped namespace. Codes get a
// unique suffix so tests can share one database.
func seedSchool(t *testing.T, pool *pgxpool.Pool, dir *DirectoryStore, code string) tenant.School {
	t.Helper()
	ctx := context.Background()

	code = fmt.Sprintf("%s%d", code, testSeq.Add(1))
	namespace, err := tenant.BuildNamespace(code)
	require.NoError(t, err)
	require.NoError(t, BootstrapSchool(ctx, pool, namespace))

	rec, err := dir.Create(ctx, CreateSchoolParams{
		Name:      code + " school",
		Code:      code,
		Subdomain: code,
		Namespace: namespace,
		Status:    tenant.StatusActive,
	})
	require.NoError(t, err)
	return rec.School()
}

func scopedTo(t *testing.T, school tenant.School) context.Context {
	t.Helper()
	scope, err := tenant.ScopeFor(school)
	require.NoError(t, err)
	return tenant.WithScope(context.Background(), scope)
}

func formatInt(v int64) string { return fmt.Sprintf("%d", v) }

func upper(s string) string { return strings.ToUpper(s) }
