// Package meta holds build metadata shared by the library and the CLI.
package meta

// Name is the MCP server implementation name.
const Name = "pgsafemcp"

// Version is overridden at build time with -ldflags "-X .../internal/meta.Version=...".
var Version = "0.1.0"
