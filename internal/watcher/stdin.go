package watcher

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
)

// StdinSource implements LineSource over an arbitrary reader, normally the
// process's standard input (e.g. piped from `docker compose logs -f`).
type StdinSource struct {
	r      io.Reader
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource reading from r.
func NewStdinSource(r io.Reader) *StdinSource {
	return &StdinSource{r: r}
}

func (s *StdinSource) Lines(ctx context.Context) (<-chan string, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	ch := make(chan string, 64)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(s.r)
		// Broker lines can be long; increase buffer to 1MB.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			slog.Warn("input scanner error", "error", err)
		}
	}()

	return ch, nil
}

func (s *StdinSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
