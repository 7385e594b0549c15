package pgsafe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	tablesResourceURI      = "pgsafe://tables"
	tableResourcePrefix    = tablesResourceURI + "/"
	sampleResourceTemplate = tableResourcePrefix + "{schema}/{table}/sample"
	schemaResourceTemplate = tableResourcePrefix + "{schema}/{table}/schema"
)

// RegisterMCPTools registers the query, list_tables, describe_table and
// sample_rows tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, pg *PgSafe) {
	queryDescription := "Execute SQL against the PostgreSQL database. Returns the last result set as JSON."
	if !pg.validator.AllowsWrites() {
		queryDescription += " Write statements (INSERT, UPDATE, DELETE, DDL, ...) are rejected."
	}
	queryTool := mcp.NewTool("query",
		mcp.WithDescription(queryDescription),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL to execute. Multiple statements may be separated by semicolons."),
		),
		mcp.WithReadOnlyHintAnnotation(!pg.validator.AllowsWrites()),
	)

	mcpServer.AddTool(queryTool, pg.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		output := pg.Query(ctx, QueryInput{SQL: sql})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		return jsonResult(output, "query")
	}))

	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List all tables, views, materialized views, and foreign tables in the database that are accessible to the current user."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, pg.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := pg.ListTables(ctx, ListTablesInput{})
		if err != nil {
			return mcp.NewToolResultError(pg.errPrompts.Annotate(err.Error())), nil
		}
		return jsonResult(output, "list tables")
	}))

	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe the columns of a table, including types, nullability, defaults and primary key membership."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithString("schema",
			mcp.Description("The schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(describeTableTool, pg.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		output, err := pg.DescribeTable(ctx, DescribeTableInput{Table: table, Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(pg.errPrompts.Annotate(err.Error())), nil
		}
		return jsonResult(output, "describe table")
	}))

	sampleRowsTool := mcp.NewTool("sample_rows",
		mcp.WithDescription(fmt.Sprintf("Return up to %d rows from a table.", sampleRowsLimit)),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to sample"),
		),
		mcp.WithString("schema",
			mcp.Description("The schema name (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(sampleRowsTool, pg.loggedToolHandler("sample_rows", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		output, err := pg.SampleRows(ctx, SampleRowsInput{Table: table, Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(pg.errPrompts.Annotate(err.Error())), nil
		}
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		return jsonResult(output, "sample rows")
	}))
}

// RegisterMCPResources registers the table list resource and the per-table
// sample and schema resource templates.
func RegisterMCPResources(mcpServer *server.MCPServer, pg *PgSafe) {
	tablesResource := mcp.NewResource(tablesResourceURI, "tables",
		mcp.WithResourceDescription("Tables and views accessible to the current user"),
		mcp.WithMIMEType("application/json"),
	)
	mcpServer.AddResource(tablesResource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		output, err := pg.ListTables(ctx, ListTablesInput{})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, output)
	})

	sampleTemplate := mcp.NewResourceTemplate(sampleResourceTemplate, "table_sample",
		mcp.WithTemplateDescription(fmt.Sprintf("Up to %d rows from a table", sampleRowsLimit)),
		mcp.WithTemplateMIMEType("application/json"),
	)
	mcpServer.AddResourceTemplate(sampleTemplate, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		schema, table, err := parseTableURI(req.Params.URI, "sample")
		if err != nil {
			return nil, err
		}
		output, err := pg.SampleRows(ctx, SampleRowsInput{Schema: schema, Table: table})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, output)
	})

	schemaTemplate := mcp.NewResourceTemplate(schemaResourceTemplate, "table_schema",
		mcp.WithTemplateDescription("Column definitions of a table"),
		mcp.WithTemplateMIMEType("application/json"),
	)
	mcpServer.AddResourceTemplate(schemaTemplate, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		schema, table, err := parseTableURI(req.Params.URI, "schema")
		if err != nil {
			return nil, err
		}
		output, err := pg.DescribeTable(ctx, DescribeTableInput{Schema: schema, Table: table})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, output)
	})
}

// parseTableURI extracts schema and table from pgsafe://tables/{schema}/{table}/{kind}.
// Path segments are percent-decoded, so names may contain '/' when escaped.
func parseTableURI(uri, kind string) (schema, table string, err error) {
	rest, ok := strings.CutPrefix(uri, tableResourcePrefix)
	if !ok {
		return "", "", fmt.Errorf("unsupported resource URI %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != kind {
		return "", "", fmt.Errorf("resource URI %q must look like %s{schema}/{table}/%s", uri, tableResourcePrefix, kind)
	}
	if schema, err = url.PathUnescape(parts[0]); err != nil {
		return "", "", fmt.Errorf("invalid schema in resource URI: %w", err)
	}
	if table, err = url.PathUnescape(parts[1]); err != nil {
		return "", "", fmt.Errorf("invalid table in resource URI: %w", err)
	}
	if schema == "" || table == "" {
		return "", "", fmt.Errorf("resource URI %q has an empty schema or table", uri)
	}
	return schema, table, nil
}

func jsonResult(v interface{}, what string) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s result", what)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *PgSafe) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
