//go:build !windows

package probe

import (
	"context"
	"fmt"
	"os/exec"
)

// execRunner is the non-Windows fallback without window suppression.
// The wlan and VPN commands it carries are Windows tools, so off-Windows
// this exists for builds and tests, not for production use.
type execRunner struct{}

// NewCommandRunner returns the platform command runner.
func NewCommandRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

func launchDetached(path string) error {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
