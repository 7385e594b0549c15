package pgsafe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickchristie/pgsafe-mcp/internal/ident"
)

// Relations visible to the session: ordinary, partitioned, foreign tables,
// views and materialized views outside the system schemas that the current
// role may SELECT from.
const listTablesSQL = `
SELECT n.nspname                               AS schema,
       c.relname                               AS name,
       c.relkind::text                         AS relkind,
       pg_catalog.pg_get_userbyid(c.relowner)  AS owner,
       NOT has_schema_privilege(n.oid, 'USAGE') AS schema_access_limited
  FROM pg_catalog.pg_class c
  JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
 WHERE c.relkind IN ('r', 'p', 'f', 'v', 'm')
   AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
   AND n.nspname NOT LIKE 'pg_temp_%'
   AND has_table_privilege(c.oid, 'SELECT')
 ORDER BY 1, 2`

type relationRow struct {
	Schema              string `db:"schema"`
	Name                string `db:"name"`
	Relkind             string `db:"relkind"`
	Owner               string `db:"owner"`
	SchemaAccessLimited bool   `db:"schema_access_limited"`
}

// ListTables returns the relations the current user can read. Each entry
// carries its quoted, schema-qualified name so agents can paste it into a
// query as is. The catalog query is fixed and bypasses statement validation.
func (p *PgSafe) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	startTime := time.Now()

	if err := p.acquireSlot(ctx, "ListTables"); err != nil {
		return nil, err
	}
	defer p.releaseSlot()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("ListTables query failed: %w", err)
	}
	relations, err := pgx.CollectRows(rows, pgx.RowToStructByName[relationRow])
	if err != nil {
		return nil, fmt.Errorf("ListTables scan failed: %w", err)
	}

	tables := make([]TableEntry, 0, len(relations))
	for _, r := range relations {
		qualified, err := ident.Qualified(r.Schema, r.Name)
		if err != nil {
			return nil, fmt.Errorf("ListTables: %w", err)
		}
		tables = append(tables, TableEntry{
			Schema:              r.Schema,
			Name:                r.Name,
			Qualified:           qualified,
			Type:                relkindType(r.Relkind),
			Owner:               r.Owner,
			SchemaAccessLimited: r.SchemaAccessLimited,
		})
	}

	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")

	return &ListTablesOutput{Tables: tables}, nil
}
