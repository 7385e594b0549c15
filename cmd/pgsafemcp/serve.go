package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	pgsafe "github.com/rickchristie/pgsafe-mcp"
	"github.com/rickchristie/pgsafe-mcp/internal/meta"
)

const (
	envConfigPath  = "PGSAFEMCP_CONFIG_PATH"
	envConnString  = "PGSAFEMCP_PG_CONNSTRING"
	envAllowWrites = "PGSAFEMCP_ALLOW_WRITE_OPERATIONS"
	envTransport   = "PGSAFEMCP_TRANSPORT"
	envPort        = "PGSAFEMCP_PORT"

	defaultConfigPath = ".pgsafemcp/config.json"

	transportStdio = "stdio"
	transportHTTP  = "http"
)

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig (file + environment overrides)
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := validateServerSettings(serverConfig.Server); err != nil {
		return err
	}

	// 2. Setup logger. Stdio transport owns stdout.
	if serverConfig.Server.Transport == transportStdio && serverConfig.Logging.Output == "stdout" {
		serverConfig.Logging.Output = "stderr"
	}
	logger := setupLogger(serverConfig.Logging)

	// 3. Resolve connection string. Prompting is only possible when stdin is
	// not the protocol stream.
	connString := os.Getenv(envConnString)
	if connString == "" {
		var username, password string
		if serverConfig.Server.Transport == transportHTTP && isTTY(os.Stdin.Fd()) {
			username = promptInput("Username: ")
			password = promptPassword("Password: ")
		}
		connString = buildConnString(serverConfig.Connection, username, password)
	}

	// 4. Create PgSafe instance
	pg, err := pgsafe.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create PgSafe: %w", err)
	}
	defer pg.Close(ctx)

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := pg.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().
		Bool("allow_write_operations", serverConfig.AllowWriteOperations).
		Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer(meta.Name, meta.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
		server.WithHooks(hooks),
	)
	pgsafe.RegisterMCPTools(mcpServer, pg)
	pgsafe.RegisterMCPResources(mcpServer, pg)

	if serverConfig.Server.Transport == transportStdio {
		logger.Info().Msg("starting pgsafemcp on stdio")
		return server.ServeStdio(mcpServer)
	}
	return serveHTTP(mcpServer, serverConfig.Server, logger)
}

func serveHTTP(mcpServer *server.MCPServer, settings pgsafe.ServerSettings, logger zerolog.Logger) error {
	addr := fmt.Sprintf(":%d", settings.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if settings.HealthCheckEnabled {
		mux.HandleFunc(settings.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Start() does not register the handler when a custom *http.Server is
	// provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", settings.Port).Msg("starting pgsafemcp server")
	return streamableServer.Start(addr)
}

// loadServerConfig reads the JSON config file and applies environment
// overrides. A missing file is fine when the path was not set explicitly.
func loadServerConfig() (*pgsafe.ServerConfig, error) {
	configPath, explicit := os.LookupEnv(envConfigPath)
	if !explicit || configPath == "" {
		configPath = defaultConfigPath
		explicit = false
	}

	config := pgsafe.ServerConfig{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	applyDefaults(&config)
	if err := applyEnvOverrides(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills zero values a bare environment-only setup would leave empty.
func applyDefaults(config *pgsafe.ServerConfig) {
	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = 5
	}
	if config.Query.DefaultTimeoutSeconds == 0 {
		config.Query.DefaultTimeoutSeconds = 30
	}
	if config.Query.ListTablesTimeoutSeconds == 0 {
		config.Query.ListTablesTimeoutSeconds = 10
	}
	if config.Query.DescribeTableTimeoutSeconds == 0 {
		config.Query.DescribeTableTimeoutSeconds = 10
	}
	if config.Server.Transport == "" {
		config.Server.Transport = transportStdio
	}
}

func applyEnvOverrides(config *pgsafe.ServerConfig) error {
	if v := strings.TrimSpace(os.Getenv(envAllowWrites)); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envAllowWrites, err)
		}
		config.AllowWriteOperations = allow
	}
	if v := strings.TrimSpace(os.Getenv(envTransport)); v != "" {
		config.Server.Transport = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(envPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envPort, err)
		}
		config.Server.Port = port
	}
	return nil
}

func validateServerSettings(s pgsafe.ServerSettings) error {
	switch s.Transport {
	case transportStdio:
		return nil
	case transportHTTP:
		if s.Port <= 0 {
			return fmt.Errorf("server.port must be > 0 for http transport")
		}
		if s.HealthCheckEnabled && s.HealthCheckPath == "" {
			return fmt.Errorf("server.health_check_path must be set when health_check_enabled is true")
		}
		return nil
	}
	return fmt.Errorf("server.transport must be %q or %q, got %q", transportStdio, transportHTTP, s.Transport)
}

func buildConnString(conn pgsafe.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", conn.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config pgsafe.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
