package pgsafe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickchristie/pgsafe-mcp/internal/ident"
)

const defaultSchema = "public"

// Both queries take the quoted, schema-qualified name built by ident.Qualified.
const relkindSQL = `
SELECT c.relkind::text
FROM pg_catalog.pg_class c
WHERE c.oid = pg_catalog.to_regclass($1);
`

const columnsSQL = `
SELECT
    a.attname AS name,
    pg_catalog.format_type(a.atttypid, a.atttypmod) AS type,
    NOT a.attnotnull AS nullable,
    COALESCE(pg_catalog.pg_get_expr(d.adbin, d.adrelid), '') AS default_val,
    EXISTS (
        SELECT 1 FROM pg_catalog.pg_index i
        WHERE i.indrelid = a.attrelid AND i.indisprimary AND a.attnum = ANY(i.indkey)
    ) AS is_primary_key
FROM pg_catalog.pg_attribute a
LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE a.attrelid = pg_catalog.to_regclass($1)
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum;
`

// DescribeTable returns the columns of a table, view, materialized view,
// foreign table or partitioned table. Schema defaults to "public".
func (p *PgSafe) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()

	if input.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	schema := input.Schema
	if schema == "" {
		schema = defaultSchema
	}
	qualified, err := ident.Qualified(schema, input.Table)
	if err != nil {
		return nil, err
	}

	if err := p.acquireSlot(ctx, "DescribeTable"); err != nil {
		return nil, err
	}
	defer p.releaseSlot()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.DescribeTableTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var relkind string
	if err := conn.QueryRow(queryCtx, relkindSQL, qualified).Scan(&relkind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table %s not found", qualified)
		}
		return nil, fmt.Errorf("DescribeTable type lookup failed: %w", err)
	}

	rows, err := conn.Query(queryCtx, columnsSQL, qualified)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable columns query failed: %w", err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("DescribeTable scan failed: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DescribeTable rows error: %w", err)
	}

	p.logger.Info().
		Str("table", qualified).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(columns)).
		Msg("DescribeTable executed")

	return &DescribeTableOutput{
		Schema:  schema,
		Name:    input.Table,
		Type:    relkindType(relkind),
		Columns: columns,
	}, nil
}

func relkindType(relkind string) string {
	switch relkind {
	case "r":
		return "table"
	case "v":
		return "view"
	case "m":
		return "materialized_view"
	case "f":
		return "foreign_table"
	case "p":
		return "partitioned_table"
	}
	return "unknown"
}
