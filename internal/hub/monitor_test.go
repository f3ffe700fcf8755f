package hub

import (
	"syscall"
	"testing"
	"time"

	"mlxhub/pkg/types"
)

// killWorker terminates a worker's process behind the hub's back.
func killWorker(t *testing.T, h *Hub, name string) {
	t.Helper()
	pid := workerPID(t, h, name)
	if pid == 0 {
		t.Fatalf("%s has no process", name)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("kill %d: %v", pid, err)
	}
}

// tickUntilCrashed drives monitor ticks until the unsolicited exit is
// observed. The wait goroutine needs a moment to reap the process.
func tickUntilCrashed(t *testing.T, h *Hub, name string) {
	t.Helper()
	ok := waitFor(t, 3*time.Second, func() bool {
		h.tick(h.opts.now())
		return workerStatus(t, h, name) == StatusCrashed
	})
	if !ok {
		t.Fatalf("%s never transitioned to crashed", name)
	}
}

func TestTickDetectsUnsolicitedExit(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t), []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, nil)

	if _, err := h.Start("m"); err != nil {
		t.Fatalf("start: %v", err)
	}
	killWorker(t, h, "m")
	tickUntilCrashed(t, h, "m")

	w, _ := h.getWorker("m")
	h.mu.RLock()
	code, lastErr := w.exitCode, w.lastErr
	h.mu.RUnlock()
	if code == nil {
		t.Fatalf("exit code not recorded")
	}
	if lastErr == "" {
		t.Fatalf("last error not recorded")
	}
}

func TestTickRestartsCrashedAlwaysOn(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t), []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.RestartBackoff = 10 * time.Millisecond
	})

	if _, err := h.Start("m"); err != nil {
		t.Fatalf("start: %v", err)
	}
	firstPID := workerPID(t, h, "m")
	killWorker(t, h, "m")
	tickUntilCrashed(t, h, "m")

	// Past the backoff window the next tick relaunches.
	time.Sleep(20 * time.Millisecond)
	h.tick(h.opts.now())
	if st := workerStatus(t, h, "m"); st != StatusRunning {
		t.Fatalf("expected restarted worker running, got %s", st)
	}
	if pid := workerPID(t, h, "m"); pid == firstPID {
		t.Fatalf("expected a fresh process after restart")
	}
	w, _ := h.getWorker("m")
	h.mu.RLock()
	restarts := w.restarts
	h.mu.RUnlock()
	if restarts != 1 {
		t.Fatalf("expected restart count 1, got %d", restarts)
	}
}

func TestTickRespectsBackoffDelay(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t), []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.RestartBackoff = time.Hour
	})

	if _, err := h.Start("m"); err != nil {
		t.Fatalf("start: %v", err)
	}
	killWorker(t, h, "m")
	tickUntilCrashed(t, h, "m")

	h.tick(h.opts.now())
	if st := workerStatus(t, h, "m"); st != StatusCrashed {
		t.Fatalf("restart fired before backoff elapsed, status %s", st)
	}
}

func TestTickNeverRestartsJIT(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t),
		[]types.ModelSpec{{Name: "jit", JITEnabled: true}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.RestartBackoff = time.Millisecond
	})

	if _, err := h.Start("jit"); err != nil {
		t.Fatalf("start: %v", err)
	}
	killWorker(t, h, "jit")
	tickUntilCrashed(t, h, "jit")

	time.Sleep(10 * time.Millisecond)
	h.tick(h.opts.now())
	if st := workerStatus(t, h, "jit"); st != StatusCrashed {
		t.Fatalf("jit worker must stay crashed until requested again, got %s", st)
	}
}

func TestTickStopsRestartingAfterBudget(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t), []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.RestartBackoff = time.Millisecond
		o.MaxRestarts = 1
	})

	if _, err := h.Start("m"); err != nil {
		t.Fatalf("start: %v", err)
	}
	killWorker(t, h, "m")
	tickUntilCrashed(t, h, "m")
	time.Sleep(5 * time.Millisecond)
	h.tick(h.opts.now()) // restart #1
	if st := workerStatus(t, h, "m"); st != StatusRunning {
		t.Fatalf("first restart should succeed, got %s", st)
	}

	killWorker(t, h, "m")
	tickUntilCrashed(t, h, "m")
	time.Sleep(5 * time.Millisecond)
	h.tick(h.opts.now())
	if st := workerStatus(t, h, "m"); st != StatusCrashed {
		t.Fatalf("restart budget exhausted, worker must stay crashed, got %s", st)
	}
}

func TestTickIdleUnload(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t),
		[]types.ModelSpec{
			{Name: "a", JITEnabled: true, Group: "g1"},
			{Name: "b", JITEnabled: true, Group: "g1"},
		},
		[]types.GroupSpec{{Name: "g1", MaxLoaded: 2, IdleUnloadTriggerMin: 5}},
	)
	h := newTestHub(t, cfg, nil)

	if _, err := h.Load("a"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if _, err := h.Load("b"); err != nil {
		t.Fatalf("load b: %v", err)
	}
	// Keep b active; a goes quiet.
	future := time.Now().Add(6 * time.Minute)
	if err := h.RecordActivity("b", future); err != nil {
		t.Fatalf("record activity: %v", err)
	}

	h.tick(future)
	if st := workerStatus(t, h, "a"); st != StatusStopped {
		t.Fatalf("idle worker should be unloaded, got %s", st)
	}
	if st := workerStatus(t, h, "b"); st != StatusRunning {
		t.Fatalf("active worker must survive the sweep, got %s", st)
	}
	// The port reservation outlives the unload.
	h.mu.RLock()
	_, ok := h.ports.assigned("a")
	h.mu.RUnlock()
	if !ok {
		t.Fatalf("idle unload must keep the port reservation")
	}
}
