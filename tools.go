package shell

import "github.com/wagiedev/shell-bridge-go/internal/mcp"

// Version is the version reported by the MCP tool server.
const Version = "0.1.0"

// ToolServer is a registry of MCP tools that can be served to an MCP client.
type ToolServer = mcp.ToolServer

// ToolOptions configures the shell tools of a ToolServer.
type ToolOptions = mcp.ToolOptions

// MCP tool names registered by NewToolServer.
const (
	ToolExecute      = mcp.ToolExecute
	ToolExecuteBatch = mcp.ToolExecuteBatch
	ToolOpen         = mcp.ToolOpen
)

// NewToolServer creates an MCP tool server named name whose tools run
// programs and open paths through bridge. options may be nil.
//
// Example:
//
//	server := shell.NewToolServer("shell", bridge, &shell.ToolOptions{Timeout: time.Minute})
//	err := server.Serve(ctx, &mcp.StdioTransport{})
func NewToolServer(name string, bridge Bridge, options *ToolOptions) *ToolServer {
	server := mcp.NewToolServer(name, Version)
	mcp.RegisterShellTools(server, bridge, options)

	return server
}
