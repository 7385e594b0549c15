package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rickchristie/pgsafe-mcp/internal/configure"
	"github.com/rickchristie/pgsafe-mcp/internal/meta"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "configure":
		if err := runConfigure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version":
		fmt.Println(meta.Name, meta.Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgsafemcp: PostgreSQL MCP server with write protection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgsafemcp serve       Start the MCP server")
	fmt.Println("  pgsafemcp configure   Create or edit the configuration file")
	fmt.Println("  pgsafemcp doctor      Check configuration")
	fmt.Println("  pgsafemcp version     Print the version")
	fmt.Println("  pgsafemcp --help      Show this help message")
}

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])
	return configure.Run(*configPath)
}
