// Package mcp exposes the shell bridge as Model Context Protocol tools.
//
// A ToolServer keeps a registry of tools built on the official go-sdk
// types. RegisterShellTools adds tools that run programs and open paths on
// the host through a bridge; the registry can be called in-process with
// CallTool or served to an MCP client with Serve.
package mcp
