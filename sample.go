package pgsafe

import (
	"context"
	"fmt"
	"time"

	"github.com/rickchristie/pgsafe-mcp/internal/ident"
)

const sampleRowsLimit = 50

// sampleRowsSQL builds the sample query. The quoted identifiers are the only
// text substituted into it.
func sampleRowsSQL(schema, table string) (string, error) {
	qualified, err := ident.Qualified(schema, table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, sampleRowsLimit), nil
}

// SampleRows returns up to 50 rows of a table. Schema defaults to "public".
// Results go through the same sanitization and truncation as Query.
func (p *PgSafe) SampleRows(ctx context.Context, input SampleRowsInput) (*SampleRowsOutput, error) {
	startTime := time.Now()

	if input.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	schema := input.Schema
	if schema == "" {
		schema = defaultSchema
	}
	sql, err := sampleRowsSQL(schema, input.Table)
	if err != nil {
		return nil, err
	}

	if err := p.acquireSlot(ctx, "SampleRows"); err != nil {
		return nil, err
	}
	defer p.releaseSlot()

	timeout, _ := p.timeoutMgr.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, sql)
	if err != nil {
		return nil, fmt.Errorf("SampleRows query failed: %w", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("SampleRows read failed: %w", err)
	}

	result.Rows = p.sanitizer.SanitizeRows(result.Rows)
	truncateIfNeeded(result, p.config.Query.MaxResultLength)

	p.logger.Info().
		Str("sql", sql).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Rows)).
		Msg("SampleRows executed")

	return &SampleRowsOutput{
		Schema:  schema,
		Name:    input.Table,
		Columns: result.Columns,
		Rows:    result.Rows,
		Error:   result.Error,
	}, nil
}
