package cli

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/wagiedev/shell-bridge-go/internal/codec"
	"github.com/wagiedev/shell-bridge-go/internal/config"
)

// BuildArgs constructs the host command line arguments.
func BuildArgs(options *config.Options) []string {
	codecName := options.Codec
	if codecName == "" {
		codecName = codec.JSON.Name()
	}

	args := []string{"--stdio", "--codec", codecName}

	return append(args, options.HostArgs...)
}

// BuildEnvironment constructs the environment for the host process: the
// current environment with options.Env applied on top. Keys are emitted in
// sorted order so the result is stable.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	if len(options.Env) == 0 {
		return env
	}

	env = slices.DeleteFunc(env, func(kv string) bool {
		key, _, _ := strings.Cut(kv, "=")
		_, overridden := options.Env[key]

		return overridden
	})

	for _, key := range slices.Sorted(maps.Keys(options.Env)) {
		env = append(env, key+"="+options.Env[key])
	}

	return env
}
