package pgsafe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rickchristie/pgsafe-mcp/internal/errprompt"
	"github.com/rickchristie/pgsafe-mcp/internal/guard"
	"github.com/rickchristie/pgsafe-mcp/internal/sanitize"
	"github.com/rickchristie/pgsafe-mcp/internal/timeout"
)

// PgSafe is the engine behind the Query, ListTables, DescribeTable and
// SampleRows tools. All exported methods are safe for concurrent use.
type PgSafe struct {
	config     Config
	pool       *pgxpool.Pool
	semaphore  chan struct{}
	validator  *guard.Validator
	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	timeoutMgr *timeout.Manager
	logger     zerolog.Logger
}

// New creates a new PgSafe instance.
// connString is the PostgreSQL connection string (must include credentials).
// Panics on invalid config. Returns error only for runtime failures (e.g., pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*PgSafe, error) {
	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("pgsafe: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("pgsafe: pool.max_conns must be > 0")
	}
	if config.Pool.MinConns < 0 || config.Pool.MinConns > config.Pool.MaxConns {
		panic("pgsafe: pool.min_conns must be between 0 and pool.max_conns")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("pgsafe: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("pgsafe: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("pgsafe: query.describe_table_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("pgsafe: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("pgsafe: query.max_result_length must be > 0")
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		if r.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pgsafe: timeout_rule with pattern %q has timeout_seconds <= 0", r.Pattern))
		}
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		panic("pgsafe: " + err.Error())
	}

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		panic("pgsafe: " + err.Error())
	}

	promptRules := make([]errprompt.Rule, len(config.ErrorPrompts))
	for i, r := range config.ErrorPrompts {
		promptRules[i] = errprompt.Rule{Pattern: r.Pattern, Message: r.Message}
	}
	prompts, err := errprompt.NewMatcher(promptRules)
	if err != nil {
		panic("pgsafe: " + err.Error())
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if d := parsePoolDuration("pool.max_conn_lifetime", config.Pool.MaxConnLifetime); d > 0 {
		poolConfig.MaxConnLifetime = d
	}
	if d := parsePoolDuration("pool.max_conn_idle_time", config.Pool.MaxConnIdleTime); d > 0 {
		poolConfig.MaxConnIdleTime = d
	}
	if d := parsePoolDuration("pool.health_check_period", config.Pool.HealthCheckPeriod); d > 0 {
		poolConfig.HealthCheckPeriod = d
	}

	// Session-level settings. When writes are disallowed, Query also runs
	// inside a READ ONLY transaction; the session default covers the catalog
	// tools and is restored on every checkout in case a statement changed it.
	readOnly := !config.AllowWriteOperations
	if readOnly || config.Timezone != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if readOnly {
				if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
					return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
				}
			}
			if config.Timezone != "" {
				escaped := strings.ReplaceAll(config.Timezone, "'", "''")
				if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
					return fmt.Errorf("failed to SET timezone: %w", err)
				}
			}
			return nil
		}
	}

	if readOnly {
		poolConfig.PrepareConn = func(ctx context.Context, conn *pgx.Conn) (bool, error) {
			if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
				return false, fmt.Errorf("failed to restore default_transaction_read_only: %w", err)
			}
			return true, nil
		}
	}

	// --- Create pool ---

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &PgSafe{
		config:     config,
		pool:       pool,
		semaphore:  make(chan struct{}, config.Pool.MaxConns),
		validator:  guard.New(guard.Config{AllowWriteOperations: config.AllowWriteOperations}, logger),
		sanitizer:  san,
		errPrompts: prompts,
		timeoutMgr: tmgr,
		logger:     logger,
	}, nil
}

// Ping checks that a connection can be acquired and the server responds.
func (p *PgSafe) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool. ctx is unused; pgxpool.Pool.Close() has
// no context-aware shutdown.
func (p *PgSafe) Close(ctx context.Context) {
	p.pool.Close()
}

// acquireSlot blocks until a query slot is free or ctx is done.
func (p *PgSafe) acquireSlot(ctx context.Context, op string) error {
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", op, cap(p.semaphore), ctx.Err())
	}
}

func (p *PgSafe) releaseSlot() {
	<-p.semaphore
}

func parsePoolDuration(field, value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("pgsafe: invalid %s %q: %v", field, value, err))
	}
	return d
}

// mapSanitizationRules converts pgsafe SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Column:      r.Column,
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}
