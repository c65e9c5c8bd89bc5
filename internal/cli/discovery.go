package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/shell-bridge-go/internal/config"
	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

const (
	// HostBinary is the executable name searched for on PATH.
	HostBinary = "shell-host"

	// MinimumVersion is the minimum supported host version.
	MinimumVersion = "1.0.0"

	// VersionCheckTimeout is the timeout for the host version check command.
	VersionCheckTimeout = 2 * time.Second
)

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for host discovery.
type Config struct {
	// HostPath is an explicit host path that skips every other search.
	HostPath string

	// SkipVersionCheck skips version validation during discovery.
	// Can also be controlled via SHELL_BRIDGE_SKIP_VERSION_CHECK.
	SkipVersionCheck bool

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates and validates the host binary.
type Discoverer interface {
	// Discover locates the host binary and validates its version.
	// Returns the path to the binary or *errors.HostNotFoundError.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new host discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

// Discover locates the host binary and validates its version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering host binary")

	hostPath, err := d.findHost()
	if err != nil {
		d.log.Error("Failed to find host binary", "error", err)

		return "", err
	}

	d.log.Debug("Found host binary", "host_path", hostPath)

	d.checkVersion(ctx, hostPath)

	return hostPath, nil
}

// findHost locates the host binary.
func (d *discoverer) findHost() (string, error) {
	// An explicit path is used and only it
	explicit := d.cfg.HostPath
	if explicit == "" {
		explicit = os.Getenv(config.HostPathEnv)
	}

	if explicit != "" {
		d.log.Debug("Using explicit host path", "host_path", explicit)

		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}

		return "", &errors.HostNotFoundError{SearchedPaths: []string{explicit}}
	}

	searchedPaths := make([]string, 0, 6)

	if path, err := exec.LookPath(HostBinary); err == nil {
		d.log.Debug("Found host in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	for _, path := range commonPaths() {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found host at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Host binary not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.HostNotFoundError{SearchedPaths: searchedPaths}
}

func commonPaths() []string {
	paths := []string{
		filepath.Join("/usr/local/libexec", HostBinary),
		filepath.Join("/usr/local/bin", HostBinary),
		filepath.Join("/usr/libexec", HostBinary),
		filepath.Join("/usr/bin", HostBinary),
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".local/bin", HostBinary))
	}

	return paths
}

// checkVersion logs a warning if the host is older than MinimumVersion.
// Errors running the check are ignored.
func (d *discoverer) checkVersion(ctx context.Context, hostPath string) {
	if d.cfg.SkipVersionCheck {
		d.log.Debug("Skipping host version check (configured)")

		return
	}

	if os.Getenv(config.SkipVersionCheckEnv) != "" {
		d.log.Debug("Skipping host version check", "env", config.SkipVersionCheckEnv)

		return
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	//nolint:gosec // G204: the host path comes from discovery
	output, err := exec.CommandContext(ctx, hostPath, "--version").Output()
	if err != nil {
		d.log.Debug("Host version check failed", "error", err)

		return
	}

	version, ok := ParseVersion(string(output))
	if !ok {
		d.log.Debug("Could not parse host version", "output", strings.TrimSpace(string(output)))

		return
	}

	if CompareVersions(version, MinimumVersion) < 0 {
		d.log.Warn("Host version is unsupported",
			"version", version,
			"minimum_required", MinimumVersion,
		)

		fmt.Fprintf(os.Stderr,
			"Warning: %s version %s is unsupported. Minimum required version is %s.\n",
			HostBinary, version, MinimumVersion,
		)

		return
	}

	d.log.Debug("Host version check passed", "version", version, "minimum", MinimumVersion)
}

// ParseVersion extracts the first X.Y.Z version from output such as
// "shell-host 1.4.2".
func ParseVersion(output string) (string, bool) {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}

	return match[1], true
}

// CompareVersions compares two semantic versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func CompareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		aNum := 0
		bNum := 0

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		if aNum < bNum {
			return -1
		}

		if aNum > bNum {
			return 1
		}
	}

	return 0
}
