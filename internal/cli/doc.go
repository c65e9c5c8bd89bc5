// Package cli locates the privileged host binary and builds its command
// line and environment.
//
// # Host Discovery
//
// The Discoverer interface locates and validates the host binary:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    HostPath: "",           // Optional explicit path
//	    Logger:   slog.Default(),
//	})
//	hostPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.HostPath (if provided)
//  2. The SHELL_BRIDGE_HOST_PATH environment variable
//  3. System PATH
//  4. Common installation directories (/usr/local/libexec, /usr/local/bin,
//     /usr/libexec, /usr/bin, ~/.local/bin)
//
// # Version Validation
//
// During discovery, the host version is validated against MinimumVersion.
// A warning is logged if the version is below minimum. Version checking can
// be skipped via Config.SkipVersionCheck or the
// SHELL_BRIDGE_SKIP_VERSION_CHECK environment variable.
//
// # Command Building
//
//	args := cli.BuildArgs(options)
//	env := cli.BuildEnvironment(options)
package cli
