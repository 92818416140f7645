package diag

import (
	"context"
	"os/exec"
	"time"
)

// Runner executes an external command and returns its combined output.
// Injected so tests can capture without a docker daemon.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// runCommand is the production Runner. Combined output keeps container log
// stderr in the capture, matching what an operator sees in a terminal.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 3 * time.Second
	return cmd.CombinedOutput()
}
