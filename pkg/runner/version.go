package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/blang/semver"
)

// MinimumVersion is the oldest newman whose verbose output and JSON report
// layout PROBE understands.
const MinimumVersion = "5.0.0"

// Version runs `newman --version` and parses its output.
func (r *Runner) Version(ctx context.Context) (semver.Version, error) {
	cmd := exec.CommandContext(ctx, r.Binary, "--version")
	cmd.Dir = r.WorkDir
	out, err := cmd.Output()
	if err != nil {
		return semver.Version{}, fmt.Errorf("failed to run %s --version: %w", r.Binary, err)
	}
	return ParseVersion(string(out))
}

// ParseVersion parses the first line of a --version output.
func ParseVersion(out string) (semver.Version, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	v, err := semver.ParseTolerant(line)
	if err != nil {
		return semver.Version{}, fmt.Errorf("error parsing newman version '%s': %w", line, err)
	}
	return v, nil
}

// CheckVersion fails when the installed newman is older than min.
func (r *Runner) CheckVersion(ctx context.Context, min string) (semver.Version, error) {
	want, err := semver.Parse(min)
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid minimum version '%s': %w", min, err)
	}

	got, err := r.Version(ctx)
	if err != nil {
		return semver.Version{}, err
	}
	if got.LT(want) {
		return got, fmt.Errorf("newman %s is older than the required %s", got, want)
	}
	return got, nil
}
