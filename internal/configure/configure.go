// Package configure implements the interactive wizard behind
// `pgsafemcp configure`.
package configure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	pgsafe "github.com/rickchristie/pgsafe-mcp"
)

var (
	transports = []string{"stdio", "http"}
	sslModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Run reads the config at configPath (if any), prompts for every field on
// stdin and writes the result back.
func Run(configPath string) error {
	return run(configPath, os.Stdin, os.Stderr)
}

func run(configPath string, input io.Reader, output io.Writer) error {
	cfg, isNew := loadExisting(configPath)
	if isNew {
		applyDefaults(cfg)
	}
	p := &prompter{scanner: bufio.NewScanner(input), output: output, isNew: isNew}

	fmt.Fprintf(output, "pgsafemcp configuration wizard\n")
	fmt.Fprintf(output, "Config file: %s\n", configPath)

	p.section("Connection")
	cfg.Connection.Host = p.promptString("connection.host", cfg.Connection.Host, "")
	cfg.Connection.Port = p.promptInt("connection.port", cfg.Connection.Port, 1)
	cfg.Connection.DBName = p.promptString("connection.dbname", cfg.Connection.DBName, "required")
	cfg.Connection.SSLMode = p.promptEnum("connection.sslmode", cfg.Connection.SSLMode, sslModes)

	p.section("Server")
	cfg.Server.Transport = p.promptEnum("server.transport", cfg.Server.Transport, transports)
	if cfg.Server.Transport == "http" {
		cfg.Server.Port = p.promptInt("server.port", cfg.Server.Port, 1)
		cfg.Server.HealthCheckEnabled = p.promptBool("server.health_check_enabled", cfg.Server.HealthCheckEnabled)
		if cfg.Server.HealthCheckEnabled {
			cfg.Server.HealthCheckPath = p.promptString("server.health_check_path", cfg.Server.HealthCheckPath, "e.g. /healthz")
		}
	}

	p.section("Logging")
	cfg.Logging.Level = p.promptEnum("logging.level", cfg.Logging.Level, logLevels)
	cfg.Logging.Format = p.promptEnum("logging.format", cfg.Logging.Format, logFormats)
	cfg.Logging.Output = p.promptString("logging.output", cfg.Logging.Output, "stderr, stdout, or file path")

	p.section("Pool")
	cfg.Pool.MaxConns = p.promptInt("pool.max_conns", cfg.Pool.MaxConns, 1)
	cfg.Pool.MinConns = p.promptInt("pool.min_conns", cfg.Pool.MinConns, 0)
	cfg.Pool.MaxConnLifetime = p.promptDuration("pool.max_conn_lifetime", cfg.Pool.MaxConnLifetime)
	cfg.Pool.MaxConnIdleTime = p.promptDuration("pool.max_conn_idle_time", cfg.Pool.MaxConnIdleTime)
	cfg.Pool.HealthCheckPeriod = p.promptDuration("pool.health_check_period", cfg.Pool.HealthCheckPeriod)

	p.section("Query")
	cfg.Query.DefaultTimeoutSeconds = p.promptInt("query.default_timeout_seconds", cfg.Query.DefaultTimeoutSeconds, 1)
	cfg.Query.ListTablesTimeoutSeconds = p.promptInt("query.list_tables_timeout_seconds", cfg.Query.ListTablesTimeoutSeconds, 1)
	cfg.Query.DescribeTableTimeoutSeconds = p.promptInt("query.describe_table_timeout_seconds", cfg.Query.DescribeTableTimeoutSeconds, 1)
	cfg.Query.MaxSQLLength = p.promptInt("query.max_sql_length", cfg.Query.MaxSQLLength, 1)
	cfg.Query.MaxResultLength = p.promptInt("query.max_result_length", cfg.Query.MaxResultLength, 1)

	p.section("Safety")
	cfg.AllowWriteOperations = p.promptBool("allow_write_operations", cfg.AllowWriteOperations)
	if cfg.AllowWriteOperations {
		fmt.Fprintf(output, "  WARNING: statements will not be classified; agents may modify data.\n")
	}
	cfg.Timezone = p.promptTimezone(cfg.Timezone)

	p.section("Timeout Rules")
	cfg.Query.TimeoutRules = editList(p, "timeout rule", cfg.Query.TimeoutRules,
		func(r pgsafe.TimeoutRule) string {
			return fmt.Sprintf("pattern=%q timeout_seconds=%d", r.Pattern, r.TimeoutSeconds)
		},
		func() pgsafe.TimeoutRule {
			return pgsafe.TimeoutRule{
				Pattern:        p.promptRegex("pattern", true),
				TimeoutSeconds: p.promptNewInt("timeout_seconds", 1),
			}
		})

	p.section("Error Prompts")
	cfg.ErrorPrompts = editList(p, "error prompt", cfg.ErrorPrompts,
		func(r pgsafe.ErrorPromptRule) string {
			return fmt.Sprintf("pattern=%q message=%q", r.Pattern, r.Message)
		},
		func() pgsafe.ErrorPromptRule {
			return pgsafe.ErrorPromptRule{
				Pattern: p.promptRegex("pattern", true),
				Message: p.promptText("message"),
			}
		})

	p.section("Sanitization Rules")
	cfg.Sanitization = editList(p, "sanitization rule", cfg.Sanitization,
		func(r pgsafe.SanitizationRule) string {
			return fmt.Sprintf("column=%q pattern=%q replacement=%q description=%q", r.Column, r.Pattern, r.Replacement, r.Description)
		},
		func() pgsafe.SanitizationRule {
			return pgsafe.SanitizationRule{
				Column:      p.promptRegex("column (empty = all columns)", false),
				Pattern:     p.promptRegex("pattern", true),
				Replacement: p.promptText("replacement"),
				Description: p.promptText("description"),
			}
		})

	if err := writeConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(output, "\nConfiguration saved to %s\n", configPath)
	return nil
}

func loadExisting(configPath string) (*pgsafe.ServerConfig, bool) {
	cfg := &pgsafe.ServerConfig{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, true
	}
	// Start from whatever was parseable.
	_ = json.Unmarshal(data, cfg)
	return cfg, false
}

// applyDefaults seeds a new configuration.
func applyDefaults(cfg *pgsafe.ServerConfig) {
	cfg.Connection.Host = "localhost"
	cfg.Connection.Port = 5432
	cfg.Connection.SSLMode = "prefer"
	cfg.Server.Transport = "stdio"
	cfg.Server.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Pool.MaxConns = 5
	cfg.Pool.MaxConnLifetime = "1h"
	cfg.Pool.MaxConnIdleTime = "30m"
	cfg.Pool.HealthCheckPeriod = "1m"
	cfg.Query.DefaultTimeoutSeconds = 30
	cfg.Query.ListTablesTimeoutSeconds = 10
	cfg.Query.DescribeTableTimeoutSeconds = 10
	cfg.Query.MaxSQLLength = 100000
	cfg.Query.MaxResultLength = 100000
}

func writeConfig(configPath string, cfg *pgsafe.ServerConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", configPath, err)
	}
	return nil
}

// prompter reads answers line by line. An empty answer keeps the shown value.
type prompter struct {
	scanner *bufio.Scanner
	output  io.Writer
	isNew   bool
}

func (p *prompter) section(title string) {
	fmt.Fprintf(p.output, "\n=== %s ===\n", title)
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	return ""
}

// ask prints "field [hint] (default|current: shown): " and returns the answer.
func (p *prompter) ask(field, hint, shown string) string {
	label := "current"
	if p.isNew {
		label = "default"
	}
	if hint != "" {
		fmt.Fprintf(p.output, "%s [%s] (%s: %s): ", field, hint, label, shown)
	} else {
		fmt.Fprintf(p.output, "%s (%s: %s): ", field, label, shown)
	}
	return p.readLine()
}

// retry re-asks until parse accepts the answer. An empty answer returns current.
func retry[T any](p *prompter, field, hint string, current T, shown string, parse func(string) (T, error)) T {
	for {
		input := p.ask(field, hint, shown)
		if input == "" {
			return current
		}
		v, err := parse(input)
		if err != nil {
			fmt.Fprintf(p.output, "  %v, try again.\n", err)
			continue
		}
		return v
	}
}

func (p *prompter) promptString(field, current, hint string) string {
	return retry(p, field, hint, current, strconv.Quote(current), func(s string) (string, error) { return s, nil })
}

func (p *prompter) promptInt(field string, current, min int) int {
	hint := fmt.Sprintf("must be >= %d", min)
	return retry(p, field, hint, current, strconv.Itoa(current), func(s string) (int, error) {
		return parseMinInt(s, min)
	})
}

func (p *prompter) promptBool(field string, current bool) bool {
	return retry(p, field, "", current, strconv.FormatBool(current), func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid value %q, use true/false/yes/no", s)
	})
}

func (p *prompter) promptDuration(field, current string) string {
	return retry(p, field, "Go duration, e.g. 1h, 30m", current, strconv.Quote(current), func(s string) (string, error) {
		if _, err := time.ParseDuration(s); err != nil {
			return "", fmt.Errorf("invalid Go duration %q", s)
		}
		return s, nil
	})
}

func (p *prompter) promptTimezone(current string) string {
	return retry(p, "timezone", "IANA name, empty = server default", current, strconv.Quote(current), func(s string) (string, error) {
		if _, err := time.LoadLocation(s); err != nil {
			return "", fmt.Errorf("invalid timezone %q", s)
		}
		return s, nil
	})
}

func (p *prompter) promptEnum(field, current string, allowed []string) string {
	return retry(p, field, "options: "+strings.Join(allowed, ", "), current, strconv.Quote(current), func(s string) (string, error) {
		for _, v := range allowed {
			if s == v {
				return s, nil
			}
		}
		return "", fmt.Errorf("invalid value %q, must be one of: %s", s, strings.Join(allowed, ", "))
	})
}

// New-entry prompts used by the list editors; these have no current value.

func (p *prompter) promptText(name string) string {
	fmt.Fprintf(p.output, "  %s: ", name)
	return p.readLine()
}

func (p *prompter) promptRegex(name string, required bool) string {
	for {
		fmt.Fprintf(p.output, "  %s (regex): ", name)
		input := p.readLine()
		if input == "" && !required {
			return ""
		}
		if input == "" {
			fmt.Fprintf(p.output, "  Value is required, try again.\n")
			continue
		}
		if _, err := regexp.Compile(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid regex %q: %v, try again.\n", input, err)
			continue
		}
		return input
	}
}

func (p *prompter) promptNewInt(name string, min int) int {
	for {
		fmt.Fprintf(p.output, "  %s (must be >= %d): ", name, min)
		v, err := parseMinInt(p.readLine(), min)
		if err != nil {
			fmt.Fprintf(p.output, "  %v, try again.\n", err)
			continue
		}
		return v
	}
}

func parseMinInt(s string, min int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if v < min {
		return 0, fmt.Errorf("value must be >= %d", min)
	}
	return v, nil
}

// editList runs the add/remove/continue loop for a list-valued field.
func editList[T any](p *prompter, label string, items []T, describe func(T) string, create func() T) []T {
	for {
		if len(items) == 0 {
			fmt.Fprintf(p.output, "  (no entries)\n")
		}
		for i, item := range items {
			fmt.Fprintf(p.output, "  [%d] %s\n", i, describe(item))
		}
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		switch strings.ToLower(p.readLine()) {
		case "a":
			items = append(items, create())
		case "r":
			items = removeByIndex(p, label, items)
		case "c", "":
			return items
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func removeByIndex[T any](p *prompter, label string, items []T) []T {
	if len(items) == 0 {
		fmt.Fprintf(p.output, "  No %s entries to remove.\n", label)
		return items
	}
	fmt.Fprintf(p.output, "  Index to remove: ")
	idx, err := strconv.Atoi(p.readLine())
	if err != nil || idx < 0 || idx >= len(items) {
		fmt.Fprintf(p.output, "  Invalid index.\n")
		return items
	}
	return append(items[:idx], items[idx+1:]...)
}
