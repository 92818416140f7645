// Package diag captures container state and recent logs into a per-trigger
// diagnostic file for later human debugging.
package diag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timestampLayout names diagnostic files with second resolution. Unique per
// (order, trigger) because the reset cooldown keeps successive triggers for
// one order well over a second apart.
const timestampLayout = "20060102T150405Z"

// StepResult is the outcome of one capture sub-step. A failed step is
// rendered into the file as an error note instead of aborting the capture.
type StepResult struct {
	Label  string
	Output []byte
	Err    error
}

// Capturer writes best-effort diagnostic files on trigger.
type Capturer struct {
	dir        string
	containers []string
	logWindow  time.Duration
	cmdTimeout time.Duration
	run        Runner
}

// Options configures a Capturer.
type Options struct {
	// Dir is the directory diagnostic files are written to, created if absent.
	Dir string
	// Containers are the container names whose recent logs get captured.
	Containers []string
	// LogWindow is the look-back window for container logs.
	LogWindow time.Duration
	// CommandTimeout bounds each external command so a wedged docker daemon
	// cannot stall the watcher indefinitely.
	CommandTimeout time.Duration
	// Run overrides command execution, for tests. Nil means real execution.
	Run Runner
}

// New creates a Capturer. Zero option fields get working defaults.
func New(opts Options) *Capturer {
	c := &Capturer{
		dir:        opts.Dir,
		containers: opts.Containers,
		logWindow:  opts.LogWindow,
		cmdTimeout: opts.CommandTimeout,
		run:        opts.Run,
	}
	if c.dir == "" {
		c.dir = "auto-reset-logs"
	}
	if c.logWindow <= 0 {
		c.logWindow = 3 * time.Minute
	}
	if c.cmdTimeout <= 0 {
		c.cmdTimeout = 30 * time.Second
	}
	if c.run == nil {
		c.run = runCommand
	}
	return c
}

// Capture writes one diagnostic file for the given trigger and returns its
// path. The file always contains the order ID, the UTC trigger timestamp,
// and the original line; container sub-steps are best-effort and record
// their own failures inline.
func (c *Capturer) Capture(ctx context.Context, orderID string, ts time.Time, line string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating diagnostics directory: %w", err)
	}

	stamp := ts.UTC().Format(timestampLayout)
	path := filepath.Join(c.dir, fmt.Sprintf("%s_%s.log", orderID, stamp))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating diagnostic file: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "Order ID: %s\n", orderID)
	fmt.Fprintf(&b, "Triggered at: %s UTC\n", stamp)
	b.WriteString("Original log line:\n")
	b.WriteString(line)
	b.WriteString("\n\n")

	for _, step := range c.collect(ctx) {
		renderStep(&b, step)
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return path, fmt.Errorf("writing diagnostic file: %w", err)
	}
	return path, nil
}

// collect runs every capture sub-step and returns their results in order.
func (c *Capturer) collect(ctx context.Context) []StepResult {
	results := make([]StepResult, 0, 1+len(c.containers))

	out, err := c.runStep(ctx, "docker", "ps")
	results = append(results, StepResult{Label: "docker ps", Output: out, Err: err})

	since := "--since=" + c.logWindow.String()
	for _, name := range c.containers {
		out, err := c.runStep(ctx, "docker", "logs", since, name)
		results = append(results, StepResult{
			Label:  fmt.Sprintf("docker logs %s %s", since, name),
			Output: out,
			Err:    err,
		})
	}
	return results
}

func (c *Capturer) runStep(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cmdTimeout)
	defer cancel()
	return c.run(ctx, name, args...)
}

func renderStep(b *strings.Builder, step StepResult) {
	if step.Err != nil {
		fmt.Fprintf(b, "Failed to run %s: %v\n", step.Label, step.Err)
		return
	}
	fmt.Fprintf(b, "=== %s ===\n", step.Label)
	b.Write(step.Output)
	b.WriteString("\n")
}
