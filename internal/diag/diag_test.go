package diag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testOrderID = "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

var testTime = time.Date(2026, 8, 25, 14, 30, 5, 0, time.UTC)

func fakeRunner(outputs map[string]string, failures map[string]error) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		if err, ok := failures[key]; ok {
			return nil, err
		}
		if out, ok := outputs[key]; ok {
			return []byte(out), nil
		}
		return []byte("(no output)\n"), nil
	}
}

func TestCaptureWritesHeaderAndLine(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{
		Dir:        dir,
		Containers: []string{"bento-broker-1"},
		Run:        fakeRunner(nil, nil),
	})

	line := "ERROR Proving failed after retries ... " + testOrderID
	path, err := c.Capture(context.Background(), testOrderID, testTime, line)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	wantName := testOrderID + "_20260825T143005Z.log"
	if filepath.Base(path) != wantName {
		t.Errorf("file name = %q, want %q", filepath.Base(path), wantName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading diagnostic file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "Order ID: "+testOrderID) {
		t.Error("file should contain the order ID")
	}
	if !strings.Contains(content, "Triggered at: 20260825T143005Z UTC") {
		t.Error("file should contain the UTC timestamp")
	}
	if !strings.Contains(content, line) {
		t.Error("file should contain the original line verbatim")
	}
}

func TestCaptureIncludesCommandOutput(t *testing.T) {
	dir := t.TempDir()
	outputs := map[string]string{
		"docker ps": "CONTAINER ID  IMAGE\nabc123  bento-broker\n",
		"docker logs --since=3m0s bento-broker-1": "broker log tail\n",
	}
	c := New(Options{
		Dir:        dir,
		Containers: []string{"bento-broker-1"},
		Run:        fakeRunner(outputs, nil),
	})

	path, err := c.Capture(context.Background(), testOrderID, testTime, "line")
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)

	if !strings.Contains(content, "=== docker ps ===") {
		t.Error("file should contain a docker ps section")
	}
	if !strings.Contains(content, "abc123  bento-broker") {
		t.Error("file should contain docker ps output verbatim")
	}
	if !strings.Contains(content, "=== docker logs --since=3m0s bento-broker-1 ===") {
		t.Error("file should contain a labeled per-container logs section")
	}
	if !strings.Contains(content, "broker log tail") {
		t.Error("file should contain container log output verbatim")
	}
}

func TestCaptureSubStepFailureIsNote(t *testing.T) {
	dir := t.TempDir()
	failures := map[string]error{
		"docker ps": fmt.Errorf("docker daemon not running"),
		"docker logs --since=3m0s bento-rest_api-1": fmt.Errorf("no such container"),
	}
	outputs := map[string]string{
		"docker logs --since=3m0s bento-broker-1": "still alive\n",
	}
	c := New(Options{
		Dir:        dir,
		Containers: []string{"bento-broker-1", "bento-rest_api-1"},
		Run:        fakeRunner(outputs, failures),
	})

	path, err := c.Capture(context.Background(), testOrderID, testTime, "line")
	if err != nil {
		t.Fatalf("a sub-step failure must not fail the capture: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)

	if !strings.Contains(content, "Failed to run docker ps: docker daemon not running") {
		t.Error("docker ps failure should render as an error note")
	}
	if !strings.Contains(content, "still alive") {
		t.Error("later sub-steps should still run after an earlier failure")
	}
	if !strings.Contains(content, "Failed to run docker logs --since=3m0s bento-rest_api-1: no such container") {
		t.Error("per-container failure should render as an error note")
	}
}

func TestCaptureCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "auto-reset-logs")
	c := New(Options{
		Dir:        dir,
		Containers: nil,
		Run:        fakeRunner(nil, nil),
	})

	if _, err := c.Capture(context.Background(), testOrderID, testTime, "line"); err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("diagnostics directory should have been created: %v", err)
	}
}

func TestCaptureRespectsLogWindow(t *testing.T) {
	var gotArgs []string
	dir := t.TempDir()
	c := New(Options{
		Dir:        dir,
		Containers: []string{"bento-broker-1"},
		LogWindow:  90 * time.Second,
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name == "docker" && len(args) > 0 && args[0] == "logs" {
				gotArgs = args
			}
			return nil, nil
		},
	})

	if _, err := c.Capture(context.Background(), testOrderID, testTime, "line"); err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	want := []string{"logs", "--since=1m30s", "bento-broker-1"}
	if len(gotArgs) != len(want) {
		t.Fatalf("docker logs args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestCaptureCommandTimeout(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{
		Dir:            dir,
		Containers:     nil,
		CommandTimeout: 10 * time.Millisecond,
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		path, err := c.Capture(context.Background(), testOrderID, testTime, "line")
		if err != nil {
			t.Errorf("Capture error: %v", err)
			return
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "Failed to run docker ps") {
			t.Error("timed-out command should render as an error note")
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not finish; command timeout not applied")
	}
}
