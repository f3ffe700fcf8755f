package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mlxhub/pkg/types"
)

// writeScript writes an executable shell script standing in for the worker
// binary and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

// sleepScript plays a well-behaved worker: it binds nothing, runs until
// signalled, and exits on SIGTERM.
func sleepScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, "exec sleep 60")
}

// stubbornScript ignores SIGTERM so a graceful stop must escalate to SIGKILL.
// It touches a marker file next to itself once the trap is installed; tests
// must wait for the marker before signalling, or an early SIGTERM can kill
// the shell while it still has the default disposition.
func stubbornScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, "trap '' TERM\ntouch \"$0.trap-ready\"\nsleep 60 &\nwait")
}

func testConfig(dir, cmd string, models []types.ModelSpec, groups []types.GroupSpec) types.HubConfig {
	for i := range models {
		if models[i].Host == "" {
			models[i].Host = "127.0.0.1"
		}
		if models[i].Command == "" {
			models[i].Command = cmd
		}
		if models[i].ModelPath == "" {
			models[i].ModelPath = "/models/" + models[i].Name
		}
	}
	return types.HubConfig{
		Host:              "127.0.0.1",
		Port:              8800,
		ModelStartingPort: 45005,
		LogPath:           dir,
		Models:            models,
		Groups:            groups,
	}
}

// newTestHub builds a hub with an instant readiness probe and a monitor
// interval long enough that tests drive ticks themselves.
func newTestHub(t *testing.T, cfg types.HubConfig, mutate func(*Options)) *Hub {
	t.Helper()
	opts := Options{
		Config:       cfg,
		Logger:       zerolog.Nop(),
		PollInterval: time.Hour,
		ReadyTimeout: 5 * time.Second,
		StopTimeout:  5 * time.Second,
		ReadyProbe:   func(context.Context, string) bool { return true },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h, err := New(opts)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

func workerStatus(t *testing.T, h *Hub, name string) Status {
	t.Helper()
	w, err := h.getWorker(name)
	if err != nil {
		t.Fatalf("getWorker %s: %v", name, err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return w.status
}

func workerPID(t *testing.T, h *Hub, name string) int {
	t.Helper()
	w, err := h.getWorker(name)
	if err != nil {
		t.Fatalf("getWorker %s: %v", name, err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return w.pid
}

// forceRunning flips a worker to Running without spawning a process. Only
// for policy tests that never touch the supervisor.
func forceRunning(t *testing.T, h *Hub, name string, startedAt time.Time) {
	t.Helper()
	w, err := h.getWorker(name)
	if err != nil {
		t.Fatalf("getWorker %s: %v", name, err)
	}
	h.mu.Lock()
	w.status = StatusRunning
	w.startedAt = startedAt
	w.lastActive = startedAt
	h.mu.Unlock()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}
