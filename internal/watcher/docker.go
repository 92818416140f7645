package watcher

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// DockerLogSource implements LineSource by tailing `docker logs --follow`
// for a single container. Broker log lines arrive on both stdout and stderr,
// so both pipes feed the same channel.
type DockerLogSource struct {
	container string
	mu        sync.Mutex
	cmd       *exec.Cmd
	cancel    context.CancelFunc
}

// NewDockerLogSource creates a source following the given container's logs.
func NewDockerLogSource(container string) *DockerLogSource {
	return &DockerLogSource{container: container}
}

func (d *DockerLogSource) Lines(ctx context.Context) (<-chan string, error) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	cmd := exec.CommandContext(ctx, "docker", "logs", "--follow", "--tail=0", d.container)
	d.mu.Lock()
	d.cmd = cmd
	d.mu.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting docker logs: %w", err)
	}

	ch := make(chan string, 64)
	var wg sync.WaitGroup

	scan := func(name string, r *bufio.Scanner) {
		defer wg.Done()
		r.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for r.Scan() {
			select {
			case ch <- r.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := r.Err(); err != nil {
			slog.Warn("docker logs scanner error", "pipe", name, "error", err)
		}
	}

	wg.Add(2)
	go scan("stdout", bufio.NewScanner(stdout))
	go scan("stderr", bufio.NewScanner(stderr))

	go func() {
		wg.Wait()
		_ = cmd.Wait()
		close(ch)
	}()

	slog.Info("docker log source started", "container", d.container)
	return ch, nil
}

func (d *DockerLogSource) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}
