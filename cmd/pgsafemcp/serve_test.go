package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgsafe "github.com/rickchristie/pgsafe-mcp"
)

// validServerConfig returns a minimal valid ServerConfig for testing.
func validServerConfig() pgsafe.ServerConfig {
	return pgsafe.ServerConfig{
		Config: pgsafe.Config{
			Pool: pgsafe.PoolConfig{MaxConns: 5},
			Query: pgsafe.QueryConfig{
				DefaultTimeoutSeconds:       30,
				ListTablesTimeoutSeconds:    10,
				DescribeTableTimeoutSeconds: 10,
			},
		},
		Server: pgsafe.ServerSettings{
			Transport: "http",
			Port:      8080,
		},
		Connection: pgsafe.ConnectionConfig{
			Host:   "localhost",
			Port:   5432,
			DBName: "testdb",
		},
	}
}

func writeConfigFile(t *testing.T, dir string, config pgsafe.ServerConfig) string {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// clearServeEnv blanks every override so the host environment cannot leak in.
func clearServeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envConfigPath, envConnString, envAllowWrites, envTransport, envPort} {
		t.Setenv(key, "")
	}
}

// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.

func TestLoadConfigValid(t *testing.T) {
	clearServeEnv(t)
	path := writeConfigFile(t, t.TempDir(), validServerConfig())
	t.Setenv(envConfigPath, path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", loaded.Server.Port)
	}
	if loaded.Server.Transport != "http" {
		t.Fatalf("expected transport http, got %q", loaded.Server.Transport)
	}
	if loaded.Pool.MaxConns != 5 {
		t.Fatalf("expected max_conns 5, got %d", loaded.Pool.MaxConns)
	}
	if loaded.Connection.DBName != "testdb" {
		t.Fatalf("expected dbname 'testdb', got %q", loaded.Connection.DBName)
	}
	if loaded.AllowWriteOperations {
		t.Fatal("expected write operations to be disallowed by default")
	}
}

func TestLoadConfigMissingExplicitPath(t *testing.T) {
	clearServeEnv(t)
	t.Setenv(envConfigPath, "/nonexistent/path/config.json")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/config.json") {
		t.Fatalf("expected error to contain config path, got %q", err.Error())
	}
}

func TestLoadConfigMissingDefaultPathUsesDefaults(t *testing.T) {
	clearServeEnv(t)
	t.Chdir(t.TempDir())

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Transport != transportStdio {
		t.Fatalf("expected stdio transport by default, got %q", loaded.Server.Transport)
	}
	if loaded.Pool.MaxConns != 5 {
		t.Fatalf("expected default max_conns 5, got %d", loaded.Pool.MaxConns)
	}
	if loaded.Query.DefaultTimeoutSeconds != 30 || loaded.Query.ListTablesTimeoutSeconds != 10 || loaded.Query.DescribeTableTimeoutSeconds != 10 {
		t.Fatalf("unexpected default timeouts: %+v", loaded.Query)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	clearServeEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	t.Setenv(envConfigPath, path)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %q", err.Error())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearServeEnv(t)
	path := writeConfigFile(t, t.TempDir(), validServerConfig())
	t.Setenv(envConfigPath, path)
	t.Setenv(envAllowWrites, "true")
	t.Setenv(envTransport, "STDIO")
	t.Setenv(envPort, "9999")

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded.AllowWriteOperations {
		t.Fatal("expected env to enable write operations")
	}
	if loaded.Server.Transport != transportStdio {
		t.Fatalf("expected transport stdio, got %q", loaded.Server.Transport)
	}
	if loaded.Server.Port != 9999 {
		t.Fatalf("expected port 9999, got %d", loaded.Server.Port)
	}
}

func TestLoadConfigInvalidEnvOverrides(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{envAllowWrites, "sometimes"},
		{envPort, "eighty"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearServeEnv(t)
			t.Setenv(envConfigPath, writeConfigFile(t, t.TempDir(), validServerConfig()))
			t.Setenv(tt.key, tt.value)

			_, err := loadServerConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Fatalf("expected error to name %s, got %q", tt.key, err.Error())
			}
		})
	}
}

func TestValidateServerSettings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		s       pgsafe.ServerSettings
		wantErr string
	}{
		{"stdio", pgsafe.ServerSettings{Transport: "stdio"}, ""},
		{"http", pgsafe.ServerSettings{Transport: "http", Port: 8080}, ""},
		{"http without port", pgsafe.ServerSettings{Transport: "http"}, "server.port"},
		{"health check without path", pgsafe.ServerSettings{Transport: "http", Port: 8080, HealthCheckEnabled: true}, "health_check_path"},
		{"health check disabled", pgsafe.ServerSettings{Transport: "http", Port: 8080}, ""},
		{"unknown transport", pgsafe.ServerSettings{Transport: "grpc"}, "server.transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateServerSettings(tt.s)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildConnString(t *testing.T) {
	t.Parallel()
	conn := pgsafe.ConnectionConfig{Host: "db", Port: 5433, DBName: "app", SSLMode: "disable"}

	got := buildConnString(conn, "alice", "s3cret")
	want := "host=db port=5433 dbname=app user=alice password=s3cret sslmode=disable"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = buildConnString(conn, "", "")
	if strings.Contains(got, "user=") || strings.Contains(got, "password=") {
		t.Fatalf("expected no credentials in %q", got)
	}
}
