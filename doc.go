// Package pgsafe exposes a PostgreSQL database to AI agents through the
// Model Context Protocol (MCP), behind a statement classifier that keeps
// write operations out unless they are explicitly allowed.
//
// It provides four tools (query, list_tables, describe_table, sample_rows)
// and three resources (pgsafe://tables plus per-table sample and schema
// templates).
//
// Every Query call is split into top-level statements with a quote- and
// comment-aware scanner. When AllowWriteOperations is false, the first
// statement whose leading keyword is not a known read keyword rejects the
// whole query. Accepted statements then run one by one inside a READ ONLY
// transaction that is always rolled back, so a command hidden from the
// scanner still cannot write. A fixed list of injection fingerprints is
// logged as warnings but never blocks. Statement text is never rewritten.
//
// # Library Usage
//
//	p, err := pgsafe.New(ctx, connString, pgsafe.Config{
//		Pool: pgsafe.PoolConfig{MaxConns: 10},
//		Query: pgsafe.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	output := p.Query(ctx, pgsafe.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register on an MCP server
//	pgsafe.RegisterMCPTools(mcpServer, p)
//	pgsafe.RegisterMCPResources(mcpServer, p)
package pgsafe
