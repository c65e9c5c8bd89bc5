package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	shell "github.com/wagiedev/shell-bridge-go"
)

type runFlags struct {
	cwd       string
	env       []string
	raw       bool
	stream    bool
	sidecar   bool
	stdin     bool
	maxOutput int
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.cwd, "cwd", "", "working directory of the program")
	fs.StringArrayVarP(&f.env, "env", "e", nil, "environment override KEY=VALUE (repeatable)")
	fs.BoolVar(&f.raw, "raw", false, "receive output as raw bytes")
	fs.BoolVarP(&f.stream, "stream", "s", false, "print output as it arrives instead of buffering")
	fs.BoolVar(&f.sidecar, "sidecar", false, "run a sidecar bundled with the host")
	fs.BoolVarP(&f.stdin, "interactive", "i", false, "forward stdin to the program (implies --stream)")
	fs.IntVar(&f.maxOutput, "max-output", 0, "kill the program after this many buffered bytes (0 = unbounded)")
}

func (f *runFlags) commandOptions(log *slog.Logger) ([]shell.CommandOption, error) {
	env, err := parseEnv(f.env)
	if err != nil {
		return nil, err
	}

	opts := []shell.CommandOption{shell.WithCommandLogger(log)}

	if f.cwd != "" {
		opts = append(opts, shell.WithWorkDir(f.cwd))
	}

	if len(env) > 0 {
		opts = append(opts, shell.WithCommandEnv(env))
	}

	if f.raw {
		opts = append(opts, shell.WithRawOutput())
	}

	if f.maxOutput > 0 {
		opts = append(opts, shell.WithMaxOutput(f.maxOutput))
	}

	opts = append(opts, shell.WithProtocolErrorHandler(func(err error) {
		log.Error("Protocol error", "error", err)
	}))

	return opts, nil
}

// parseEnv turns KEY=VALUE pairs into a map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
		}

		env[key] = value
	}

	return env, nil
}

func runCommand(ctx context.Context, log *slog.Logger, bridgeOpts []shell.Option, args []string) error {
	var flags runFlags

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.register(fs)
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("run: missing program")
	}

	cmdOpts, err := flags.commandOptions(log)
	if err != nil {
		return err
	}

	program, programArgs := fs.Arg(0), fs.Args()[1:]

	return shell.WithBridge(ctx, func(bridge shell.BridgeClient) error {
		newCommand := shell.NewCommand
		if flags.sidecar {
			newCommand = shell.NewSidecarCommand
		}

		cmd := newCommand(bridge, program, programArgs, cmdOpts...)

		if flags.stream || flags.stdin {
			var stdin io.Reader
			if flags.stdin {
				stdin = os.Stdin
			}

			return streamCommand(ctx, log, cmd, stdin, os.Stdout, os.Stderr)
		}

		return executeCommand(ctx, log, cmd, os.Stdout, os.Stderr)
	}, bridgeOpts...)
}

// executeCommand runs cmd to completion and writes its buffered output to
// stdout and stderr. Cancelling ctx kills the program.
func executeCommand(ctx context.Context, log *slog.Logger, cmd *shell.Command, stdout, stderr io.Writer) error {
	out, err := cmd.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			if stopErr := cmd.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				log.Warn("Failed to kill program", "program", cmd.Program(), "error", stopErr)
			}
		}

		return err
	}

	_, _ = stdout.Write(out.Stdout)
	_, _ = stderr.Write(out.Stderr)

	return exitStatus(out.Code, out.Signal)
}

// streamCommand spawns cmd, copies its output to stdout and stderr as it
// arrives and forwards stdin lines until the program ends. Cancelling ctx
// kills the program.
func streamCommand(
	ctx context.Context,
	log *slog.Logger,
	cmd *shell.Command,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	writeChunk := func(w io.Writer) func(shell.Chunk) {
		return func(c shell.Chunk) {
			if c.Raw() {
				_, _ = w.Write(c.Bytes())

				return
			}

			_, _ = fmt.Fprintln(w, c.Text())
		}
	}

	cmd.Stdout.OnData(writeChunk(stdout))
	cmd.Stderr.OnData(writeChunk(stderr))

	finished := make(chan error, 1)

	cmd.OnClose(func(ev *shell.TerminatedEvent) {
		finished <- exitStatus(ev.Code, ev.Signal)
	})
	cmd.OnError(func(err error) {
		finished <- err
	})

	child, err := cmd.Spawn(ctx)
	if err != nil {
		return err
	}

	log.Info("Program started", "program", cmd.Program(), "pid", child.PID())

	if stdin != nil {
		go forwardStdin(ctx, log, child, stdin)
	}

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		if err := child.Kill(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to kill program", "pid", child.PID(), "error", err)
		}

		return ctx.Err()
	}
}

func forwardStdin(ctx context.Context, log *slog.Logger, child *shell.Child, stdin io.Reader) {
	scanner := bufio.NewScanner(stdin)

	for scanner.Scan() {
		if err := child.WriteString(ctx, scanner.Text()+"\n"); err != nil {
			if !errors.Is(err, shell.ErrProcessTerminated) {
				log.Warn("Failed to forward stdin", "pid", child.PID(), "error", err)
			}

			return
		}
	}
}

// exitStatus maps a termination to the error run returns.
func exitStatus(code *int, signal *string) error {
	switch {
	case code != nil && *code == 0:
		return nil
	case code != nil:
		return &exitError{code: *code}
	case signal != nil:
		fmt.Fprintf(os.Stderr, "shellrun: killed by signal %s\n", *signal)

		return &exitError{code: 128 + signalNumber(*signal)}
	default:
		return nil
	}
}

func signalNumber(signal string) int {
	var n int
	if _, err := fmt.Sscanf(signal, "%d", &n); err != nil {
		return 0
	}

	return n
}
