// shellrun runs programs and opens paths on a privileged shell host.
//
// Three subcommands:
//
//	shellrun [flags] run [run-flags] -- PROGRAM [ARGS...]
//	shellrun [flags] open PATH [APP]
//	shellrun [flags] mcp
//
// run executes a program and mirrors its output and exit code. open asks
// the host to open a file or URL. mcp serves the shell tools to an MCP
// client over stdio.
//
// Bridge settings come from flags, then from the YAML file named by
// --config, then from SHELL_BRIDGE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	shell "github.com/wagiedev/shell-bridge-go"
	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// exitError carries a child's exit code out of run.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if coder, ok := errors.AsType[*exitError](err); ok {
			os.Exit(coder.ExitCode())
		}

		fmt.Fprintf(os.Stderr, "shellrun: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags configure the bridge.
type globalFlags struct {
	configPath string
	hostPath   string
	url        string
	codec      string
	timeout    time.Duration
	verbose    bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&g.hostPath, "host", "", "path to the host binary")
	fs.StringVar(&g.url, "url", "", "connect to a WebSocket host instead of spawning one")
	fs.StringVar(&g.codec, "codec", "", "frame codec: json or cbor")
	fs.DurationVar(&g.timeout, "timeout", 0, "per-request timeout")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log bridge activity to stderr")
}

// bridgeOptions turns the flags into bridge options. Flags win over the
// config file.
func (g *globalFlags) bridgeOptions(log *slog.Logger) ([]shell.Option, error) {
	opts := []shell.Option{shell.WithLogger(log)}

	if g.hostPath != "" {
		opts = append(opts, shell.WithHostPath(g.hostPath))
	}

	if g.url != "" {
		opts = append(opts, shell.WithURL(g.url))
	}

	if g.codec != "" {
		opts = append(opts, shell.WithCodec(g.codec))
	}

	if g.timeout > 0 {
		opts = append(opts, shell.WithRequestTimeout(g.timeout))
	}

	opts = append(opts, shell.WithStderr(func(line string) {
		log.Debug("Host stderr", "line", line)
	}))

	if g.configPath != "" {
		file, err := config.LoadFile(g.configPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, file.Apply)
	}

	return opts, nil
}

func (g *globalFlags) logger() *slog.Logger {
	if !g.verbose {
		return shell.NopLogger()
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(ctx context.Context, args []string) error {
	var global globalFlags

	fs := pflag.NewFlagSet("shellrun", pflag.ContinueOnError)
	global.register(fs)
	fs.SetInterspersed(false)
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(fs)

		return fmt.Errorf("missing subcommand")
	}

	log := global.logger()

	opts, err := global.bridgeOptions(log)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "run":
		return runCommand(ctx, log, opts, rest[1:])
	case "open":
		return openPath(ctx, opts, rest[1:])
	case "mcp":
		return serveMCP(ctx, log, opts, rest[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", rest[0])
	}
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Run programs and open paths on a privileged shell host.

Usage:
  shellrun [flags] run [run-flags] -- PROGRAM [ARGS...]
  shellrun [flags] open PATH [APP]
  shellrun [flags] mcp [mcp-flags]

Flags:
%s`, fs.FlagUsages())
}
