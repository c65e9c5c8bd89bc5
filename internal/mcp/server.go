package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolServer is a registry of MCP tools.
//
// Tools can be called directly with CallTool, or served to an MCP client
// over any go-sdk transport through MCPServer.
type ToolServer struct {
	name    string
	version string
	mu      sync.RWMutex
	tools   map[string]*registeredTool
}

// registeredTool holds tool metadata and handler.
type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewToolServer creates an empty tool server.
func NewToolServer(name, version string) *ToolServer {
	return &ToolServer{
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool, 4),
	}
}

// AddTool registers a tool, replacing any tool with the same name.
func (s *ToolServer) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &registeredTool{
		tool:    tool,
		handler: handler,
	}
}

// Name returns the server name.
func (s *ToolServer) Name() string {
	return s.name
}

// Version returns the server version.
func (s *ToolServer) Version() string {
	return s.version
}

// Tools returns the registered tools sorted by name.
func (s *ToolServer) Tools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.tool)
	}

	slices.SortFunc(tools, func(a, b *mcp.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})

	return tools
}

// MCPServer builds a go-sdk server exposing every registered tool. Tools
// added later are not included.
func (s *ToolServer) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tools {
		server.AddTool(t.tool, t.handler)
	}

	return server
}

// Serve runs the tools over transport until the client disconnects or ctx
// is cancelled.
func (s *ToolServer) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.MCPServer().Run(ctx, transport)
}

// CallTool executes a tool by name with the given input and returns the
// result in MCP wire form. Tool failures are reported inside the result,
// never as an error.
func (s *ToolServer) CallTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return errorMap("Tool not found: " + name), nil
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		//nolint:nilerr // error is encoded in the result
		return errorMap("Failed to marshal input: " + err.Error()), nil
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		//nolint:nilerr // error is encoded in the result
		return errorMap("Tool execution failed: " + err.Error()), nil
	}

	return convertCallToolResultToMap(result), nil
}

func errorMap(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": true,
	}
}

// convertCallToolResultToMap converts a CallToolResult to its wire map.
// Only text content is produced by the shell tools; other kinds are kept
// for custom tools.
func convertCallToolResultToMap(result *mcp.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{
			"content": []map[string]any{},
		}
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{
				"type": "text",
				"text": v.Text,
			})
		case *mcp.ImageContent:
			content = append(content, map[string]any{
				"type":     "image",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *mcp.ResourceLink:
			content = append(content, map[string]any{
				"type": "resource_link",
				"uri":  v.URI,
				"name": v.Name,
			})
		}
	}

	resultMap := map[string]any{
		"content": content,
	}

	if result.IsError {
		resultMap["isError"] = true
	}

	return resultMap
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// DecodeArguments unmarshals the request arguments into T. Missing
// arguments decode as the zero value.
func DecodeArguments[T any](req *mcp.CallToolRequest) (T, error) {
	var args T

	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}

	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return args, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
