package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/shell-bridge-go/internal/command"
	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// Tool names.
const (
	ToolExecute      = "shell_execute"
	ToolExecuteBatch = "shell_execute_batch"
	ToolOpen         = "shell_open"
)

const (
	// DefaultToolTimeout bounds a single tool-initiated execution.
	DefaultToolTimeout = 2 * time.Minute

	// defaultBatchConcurrency bounds parallel commands in a batch.
	defaultBatchConcurrency = 4

	// stopTimeout bounds the kill request sent after a timed-out execution.
	stopTimeout = 5 * time.Second
)

// ToolOptions configures the shell tools.
type ToolOptions struct {
	// Timeout bounds each execution. Zero selects DefaultToolTimeout.
	Timeout time.Duration

	// MaxOutput caps buffered output per execution. Zero means unbounded.
	MaxOutput int

	// Concurrency bounds parallel commands in a batch. Zero selects 4.
	Concurrency int

	// Logger receives tool activity. If nil, logging is disabled.
	Logger *slog.Logger
}

// ExecuteInput is the argument object of shell_execute.
type ExecuteInput struct {
	Program string            `json:"program"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Sidecar bool              `json:"sidecar,omitempty"`
}

// BatchInput is the argument object of shell_execute_batch.
type BatchInput struct {
	Commands []ExecuteInput `json:"commands"`
}

// OpenInput is the argument object of shell_open.
type OpenInput struct {
	Path string `json:"path"`
	With string `json:"with,omitempty"`
}

// shellTools holds what the tool handlers share.
type shellTools struct {
	log         *slog.Logger
	bridge      config.Bridge
	timeout     time.Duration
	maxOutput   int
	concurrency int
}

// RegisterShellTools adds shell_execute, shell_execute_batch and shell_open
// to s, each backed by bridge.
func RegisterShellTools(s *ToolServer, bridge config.Bridge, options *ToolOptions) {
	if options == nil {
		options = &ToolOptions{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	st := &shellTools{
		log:         log.With("component", "mcp_tools"),
		bridge:      bridge,
		timeout:     options.Timeout,
		maxOutput:   options.MaxOutput,
		concurrency: options.Concurrency,
	}

	if st.timeout <= 0 {
		st.timeout = DefaultToolTimeout
	}

	if st.concurrency <= 0 {
		st.concurrency = defaultBatchConcurrency
	}

	s.AddTool(NewTool(ToolExecute,
		"Run a program on the host and return its exit status and output.",
		executeSchema()), st.execute)

	s.AddTool(NewTool(ToolExecuteBatch,
		"Run several programs on the host concurrently and return each result in order.",
		&jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"commands": {Type: "array", Items: executeSchema()},
			},
			Required: []string{"commands"},
		}), st.executeBatch)

	s.AddTool(NewTool(ToolOpen,
		"Open a file path or URL on the host, optionally with a named application.",
		&jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {Type: "string", Description: "File path or URL to open."},
				"with": {Type: "string", Description: "Application to open it with."},
			},
			Required: []string{"path"},
		}), st.open)
}

func executeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"program": {Type: "string", Description: "Program to run."},
			"args":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"cwd":     {Type: "string", Description: "Working directory."},
			"env": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Type: "string"},
			},
			"sidecar": {Type: "boolean", Description: "Resolve the program as a bundled sidecar."},
		},
		Required: []string{"program"},
	}
}

func (st *shellTools) run(ctx context.Context, in ExecuteInput) (*command.Output, error) {
	if in.Program == "" {
		return nil, fmt.Errorf("program is required")
	}

	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	cmd := command.New(st.bridge, in.Program, in.Args, &config.SpawnOptions{
		Cwd:       in.Cwd,
		Env:       in.Env,
		Sidecar:   in.Sidecar,
		MaxOutput: st.maxOutput,
		Logger:    st.log,
	})

	st.log.Debug("Running tool command", "program", in.Program, "args", in.Args)

	out, err := cmd.Execute(ctx)
	if err != nil && ctx.Err() != nil {
		st.stop(ctx, cmd)
	}

	return out, err
}

// stop kills a command whose execution was cut short by ctx.
func (st *shellTools) stop(ctx context.Context, cmd *command.Command) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	if err := cmd.Stop(stopCtx); err != nil {
		st.log.Warn("Failed to stop timed out command", "program", cmd.Program(), "error", err)
	}
}

func (st *shellTools) execute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := DecodeArguments[ExecuteInput](req)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	out, err := st.run(ctx, in)
	if err != nil {
		return ErrorResult(fmt.Sprintf("%s: %v", in.Program, err)), nil
	}

	result := TextResult(formatOutput(out))
	result.IsError = !out.Success()

	return result, nil
}

func (st *shellTools) executeBatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := DecodeArguments[BatchInput](req)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if len(in.Commands) == 0 {
		return ErrorResult("commands must not be empty"), nil
	}

	sections := make([]string, len(in.Commands))
	failed := make([]bool, len(in.Commands))

	// Failures are recorded per command so one does not cancel the others.
	var eg errgroup.Group

	eg.SetLimit(st.concurrency)

	for i, c := range in.Commands {
		eg.Go(func() error {
			header := fmt.Sprintf("[%d] %s", i+1, strings.Join(append([]string{c.Program}, c.Args...), " "))

			out, err := st.run(ctx, c)
			if err != nil {
				sections[i] = fmt.Sprintf("%s\nerror: %v", header, err)
				failed[i] = true

				return nil
			}

			sections[i] = header + "\n" + formatOutput(out)
			failed[i] = !out.Success()

			return nil
		})
	}

	_ = eg.Wait()

	result := TextResult(strings.Join(sections, "\n\n"))

	for _, f := range failed {
		if f {
			result.IsError = true
		}
	}

	return result, nil
}

func (st *shellTools) open(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := DecodeArguments[OpenInput](req)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if in.Path == "" {
		return ErrorResult("path is required"), nil
	}

	if err := command.Open(ctx, st.bridge, in.Path, in.With); err != nil {
		return ErrorResult(fmt.Sprintf("open %s: %v", in.Path, err)), nil
	}

	return TextResult("opened " + in.Path), nil
}

// formatOutput renders an execution result for a tool response.
func formatOutput(out *command.Output) string {
	var b strings.Builder

	switch {
	case out.Code != nil:
		fmt.Fprintf(&b, "exit code: %d\n", *out.Code)
	case out.Signal != nil:
		fmt.Fprintf(&b, "killed by signal: %s\n", *out.Signal)
	default:
		b.WriteString("exit status unknown\n")
	}

	if len(out.Stdout) > 0 {
		b.WriteString("stdout:\n")
		b.Write(out.Stdout)
		b.WriteString("\n")
	}

	if len(out.Stderr) > 0 {
		b.WriteString("stderr:\n")
		b.Write(out.Stderr)
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
