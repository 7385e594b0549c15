package pgsafe

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool"`
	Query        QueryConfig        `json:"query"`
	Sanitization []SanitizationRule `json:"sanitization"`
	ErrorPrompts []ErrorPromptRule  `json:"error_prompts"`

	// AllowWriteOperations disables statement classification entirely. When
	// false, any query containing a write statement is rejected and pooled
	// sessions are opened with default_transaction_read_only.
	AllowWriteOperations bool   `json:"allow_write_operations"`
	Timezone             string `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds MCP transport settings for CLI mode.
type ServerSettings struct {
	Transport          string `json:"transport"` // stdio, http
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule appends Message to tool errors matching Pattern. Configured
// rules run after the built-in ones.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule masks values matching Pattern. Column optionally limits the
// rule to columns whose name matches that regex.
type SanitizationRule struct {
	Column      string `json:"column"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
