package pgsafe

// QueryInput is the input for the Query tool.
type QueryInput struct {
	SQL string `json:"sql"`
}

// QueryOutput is the output of the Query tool. For multi-statement queries it
// holds the last result set that returned rows, or the last command result if
// none did. Every failure, including validation rejections, lands in Error.
type QueryOutput struct {
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	RowsAffected int64                    `json:"rows_affected"`
	Statements   int                      `json:"statements,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// ListTablesInput is the input for the ListTables tool.
type ListTablesInput struct{}

// TableEntry represents a single table/view in the ListTables output.
// Qualified is the quoted "schema"."name" form.
type TableEntry struct {
	Schema              string `json:"schema"`
	Name                string `json:"name"`
	Qualified           string `json:"qualified"`
	Type                string `json:"type"` // "table", "view", "materialized_view", "foreign_table", "partitioned_table"
	Owner               string `json:"owner"`
	SchemaAccessLimited bool   `json:"schema_access_limited,omitempty"`
}

// ListTablesOutput is the output of the ListTables tool.
type ListTablesOutput struct {
	Tables []TableEntry `json:"tables"`
	Error  string       `json:"error,omitempty"`
}

// DescribeTableInput is the input for the DescribeTable tool.
type DescribeTableInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// DescribeTableOutput is the output of the DescribeTable tool.
type DescribeTableOutput struct {
	Schema  string       `json:"schema"`
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Columns []ColumnInfo `json:"columns"`
	Error   string       `json:"error,omitempty"`
}

// SampleRowsInput is the input for the SampleRows tool.
type SampleRowsInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// SampleRowsOutput holds up to sampleRowsLimit rows of a table.
type SampleRowsOutput struct {
	Schema  string                   `json:"schema"`
	Name    string                   `json:"name"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Error   string                   `json:"error,omitempty"`
}
