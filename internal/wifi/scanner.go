package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"
)

// ErrUnavailable means no platform enumeration tool could produce output at
// all. It is deliberately distinct from a successful scan that found zero
// networks — callers surface the two differently.
var ErrUnavailable = errors.New("wifi: scan tool unavailable")

// DefaultTimeout bounds one enumeration command.
const DefaultTimeout = 10 * time.Second

// Runner executes one platform command and returns its stdout as text.
// Injectable so parsers are tested against canned output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs real commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s not found", ErrUnavailable, name)
		}
		return "", fmt.Errorf("wifi: %s: %w", name, err)
	}
	return string(out), nil
}

// command is one enumeration attempt: an invocation plus the parser for its
// output. Platforms list their attempts in preference order.
type command struct {
	name  string
	args  []string
	parse func(out string) []Network
}

// Scanner enumerates nearby wireless networks through the platform tool.
// The command set is selected once at construction, not re-derived per scan.
type Scanner struct {
	runner   Runner
	commands []command
	platform string
}

// New returns a Scanner for the current platform using real commands.
func New() *Scanner {
	return NewForPlatform(runtime.GOOS, ExecRunner{})
}

// NewForPlatform returns a Scanner for an explicit GOOS value with an
// injected runner.
func NewForPlatform(goos string, r Runner) *Scanner {
	s := &Scanner{runner: r, platform: goos}
	switch goos {
	case "windows":
		s.commands = []command{
			{"netsh", []string{"wlan", "show", "networks", "mode=bssid"}, parseNetsh},
		}
	case "linux":
		// nmcli first (terse fields, machine-friendly), iwlist as fallback.
		s.commands = []command{
			{"nmcli", []string{"-t", "-f", "SSID,BSSID,CHAN,SIGNAL,SECURITY", "dev", "wifi"}, parseNmcli},
			{"iwlist", []string{"scanning"}, parseIwlist},
		}
	case "darwin":
		s.commands = []command{
			{airportPath, []string{"-s"}, parseAirport},
		}
	}
	return s
}

const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// Scan runs the platform enumeration and returns the parsed networks sorted
// by signal descending (SSID ascending on ties). Total command failure is
// ErrUnavailable; malformed records inside otherwise usable output are
// skipped, never fatal.
func (s *Scanner) Scan(ctx context.Context, timeout time.Duration) ([]Network, error) {
	if len(s.commands) == 0 {
		return nil, fmt.Errorf("%w: unsupported platform %s", ErrUnavailable, s.platform)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for _, cmd := range s.commands {
		out, err := s.runner.Run(ctx, cmd.name, cmd.args...)
		if err != nil {
			slog.Debug("wifi: enumeration command failed",
				"command", cmd.name, "err", err)
			lastErr = err
			continue
		}

		nets := cmd.parse(out)
		sortNetworks(nets)
		slog.Info("wifi: scan finished", "command", cmd.name, "networks", len(nets))
		return nets, nil
	}

	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	if !errors.Is(lastErr, ErrUnavailable) {
		lastErr = fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil, lastErr
}
