package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	pgsafe "github.com/rickchristie/pgsafe-mcp"
	"github.com/rickchristie/pgsafe-mcp/internal/meta"
	"github.com/rickchristie/pgsafe-mcp/internal/statement"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "%s %s\n\n", meta.Name, meta.Version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Fix the issues above and run '%s doctor' again.\n", meta.Name)
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pgsafe.ServerConfig, bool) {
	allPassed := true
	check := func(pass bool, msg string) {
		printCheck(w, useColor, pass, msg)
		if !pass {
			allPassed = false
		}
	}

	data, err := os.ReadFile(configPath)
	check(err == nil, fmt.Sprintf("Config file readable (%s)", configPath))
	if err != nil {
		return nil, false
	}

	var config pgsafe.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		check(false, fmt.Sprintf("Config file is valid JSON: %v", err))
		return nil, false
	}
	check(true, "Config file is valid JSON")
	applyDefaults(&config)

	if config.Connection.DBName == "" {
		check(false, "connection.dbname is set")
	} else {
		check(true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	if err := validateServerSettings(config.Server); err != nil {
		check(false, err.Error())
	} else {
		check(true, fmt.Sprintf("server.transport is valid (%s)", config.Server.Transport))
	}

	if config.Pool.MinConns < 0 || config.Pool.MinConns > config.Pool.MaxConns {
		check(false, "pool.min_conns is between 0 and pool.max_conns")
	}

	regexOK := true
	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			check(false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			check(false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
		}
		if rule.Column == "" {
			continue
		}
		if _, err := regexp.Compile(rule.Column); err != nil {
			check(false, fmt.Sprintf("sanitization[%d] column regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			check(false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
		}
		if rule.TimeoutSeconds <= 0 {
			check(false, fmt.Sprintf("timeout_rules[%d] timeout_seconds is > 0", i))
		}
	}
	if regexOK {
		check(true, "All regex patterns compile")
	}

	if config.AllowWriteOperations {
		printNote(w, useColor, "Write operations are ALLOWED; statements are not classified")
	} else {
		printNote(w, useColor, fmt.Sprintf("Write operations are blocked; read keywords: %v", statement.SafeKeywords()))
		printNote(w, useColor, fmt.Sprintf("Known write keywords: %v", statement.WriteOperations()))
	}

	return &config, allPassed
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}

func printNote(w io.Writer, useColor bool, msg string) {
	if useColor {
		fmt.Fprintf(w, "  \033[33m!\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(w, "  ! %s\n", msg)
	}
}

// printAgentSnippets prints MCP connection config snippets for the configured transport.
func printAgentSnippets(w io.Writer, useColor bool, config *pgsafe.ServerConfig) {
	if useColor {
		fmt.Fprintf(w, "\033[1;32m%s\033[0m\n\n", "Agent Connection Snippets")
	} else {
		fmt.Fprint(w, "Agent Connection Snippets\n\n")
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	if config.Server.Transport == transportHTTP {
		url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

		subheading("Claude Code")
		fmt.Fprintf(w, "    claude mcp add --transport http postgres %s\n\n", url)

		subheading("Cursor (.cursor/mcp.json)")
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "url": "%s"
      }
    }
  }
`, url)
		fmt.Fprintln(w)

		subheading("Gemini CLI (~/.gemini/settings.json)")
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
		return
	}

	subheading("Claude Code")
	fmt.Fprintf(w, "    claude mcp add postgres -e %s=<connstring> -- %s serve\n\n", envConnString, meta.Name)

	subheading("Any stdio client (mcpServers entry)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "%s",
        "args": ["serve"],
        "env": {"%s": "<connstring>"}
      }
    }
  }
`, meta.Name, envConnString)
}
