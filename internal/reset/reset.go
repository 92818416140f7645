// Package reset invokes the external recovery command for a stuck order.
package reset

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Dispatcher runs the configured reset command with an order ID argument.
type Dispatcher struct {
	command string
	timeout time.Duration
}

// New creates a Dispatcher for the given command. A non-positive timeout
// falls back to two minutes; the reset script talks to the chain and is
// expected to return, but a wall-clock bound keeps the watcher from
// stalling behind it forever.
func New(command string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Dispatcher{command: command, timeout: timeout}
}

// Command returns the configured reset command.
func (d *Dispatcher) Command() string {
	return d.command
}

// Reset runs `<command> <orderID>` and returns nil only on exit status 0.
// The error carries trailing stderr for the daemon's failure log.
func (d *Dispatcher) Reset(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.command, orderID)
	// Don't let orphaned children of the script hold the stderr pipe open
	// past the timeout.
	cmd.WaitDelay = 3 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s %s: %w (stderr: %s)", d.command, orderID, err, lastLine(msg))
		}
		return fmt.Errorf("%s %s: %w", d.command, orderID, err)
	}
	return nil
}

// lastLine keeps error logs single-line when the script dumps a stack.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
