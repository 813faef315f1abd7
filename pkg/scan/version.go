package scan

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// ParseVersionOutput extracts the scanner version from `trivy --version`
// output, whose first line looks like "Version: 0.50.1".
func ParseVersionOutput(out string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	_, version, found := strings.Cut(line, ":")
	if !found {
		return "", fmt.Errorf("unexpected trivy version output: %q", line)
	}
	return strings.TrimSpace(version), nil
}

// CheckVersion verifies the locally installed trivy against a semver
// constraint such as ">= 0.50.0". An empty constraint disables the
// check. A violation is a startup failure: the run aborts before any
// scanning.
func CheckVersion(ctx context.Context, executor types.CommandExecutor, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid trivy version constraint %q: %w", constraint, err)
	}

	out, stderr, err := executor.ExecuteCommand(ctx, "trivy", []string{"--version"}, os.Environ())
	if err != nil {
		return fmt.Errorf("failed to query trivy version: %w\nstderr: %s", err, stderr)
	}
	raw, err := ParseVersionOutput(out)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("invalid trivy version %q: %w", raw, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("trivy version %s does not satisfy constraint %s", v, constraint)
	}
	return nil
}
