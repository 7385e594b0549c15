//go:build integration

package pgsafe_test

import (
	"context"
	"os"
	"testing"

	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rs/zerolog"

	pgsafe "github.com/rickchristie/pgsafe-mcp"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

func acquireTestDB(t *testing.T) string {
	t.Helper()
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Fatalf("Failed to acquire test database: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() pgsafe.Config {
	return pgsafe.Config{
		Pool: pgsafe.PoolConfig{MaxConns: 5},
		Query: pgsafe.QueryConfig{
			DefaultTimeoutSeconds:       30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
			MaxSQLLength:                100000,
			MaxResultLength:             100000,
		},
	}
}

func writableConfig() pgsafe.Config {
	config := defaultConfig()
	config.AllowWriteOperations = true
	return config
}

func newTestInstance(t *testing.T, config pgsafe.Config) (*pgsafe.PgSafe, string) {
	t.Helper()
	connStr := acquireTestDB(t)
	return openInstance(t, connStr, config), connStr
}

func openInstance(t *testing.T, connStr string, config pgsafe.Config) *pgsafe.PgSafe {
	t.Helper()
	ctx := context.Background()
	p, err := pgsafe.New(ctx, connStr, config, testLogger())
	if err != nil {
		t.Fatalf("Failed to create PgSafe: %v", err)
	}
	t.Cleanup(func() { p.Close(ctx) })
	return p
}

func setupTable(t *testing.T, p *pgsafe.PgSafe, sql string) {
	t.Helper()
	output := p.Query(context.Background(), pgsafe.QueryInput{SQL: sql})
	if output.Error != "" {
		t.Fatalf("setup failed: %s", output.Error)
	}
}

// newReadOnlyTestInstance creates a PgSafe instance that rejects writes, with
// tables pre-populated by setupFn through a separate writable instance.
func newReadOnlyTestInstance(t *testing.T, config pgsafe.Config, setupFn func(t *testing.T, p *pgsafe.PgSafe)) *pgsafe.PgSafe {
	t.Helper()
	connStr := acquireTestDB(t)
	ctx := context.Background()

	setupP, err := pgsafe.New(ctx, connStr, writableConfig(), testLogger())
	if err != nil {
		t.Fatalf("failed to create setup instance: %v", err)
	}
	setupFn(t, setupP)
	setupP.Close(ctx)

	config.AllowWriteOperations = false
	return openInstance(t, connStr, config)
}

func usersFixture(t *testing.T, p *pgsafe.PgSafe) {
	setupTable(t, p, "CREATE TABLE users (id serial PRIMARY KEY, name text NOT NULL, email text)")
	setupTable(t, p, "INSERT INTO users (name, email) VALUES ('Alice', 'alice@example.com'), ('Bob', 'bob@example.com')")
}
