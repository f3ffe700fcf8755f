package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"mlxhub/pkg/types"
)

func TestBuildArgsForwardsExtraOptions(t *testing.T) {
	cfg := testConfig(t.TempDir(), "/bin/true",
		[]types.ModelSpec{{
			Name:      "m",
			ModelPath: "/models/m",
			Extra: []types.LaunchOption{
				{Key: "max-concurrency", Value: "2"},
				{Key: "--context-length", Value: "8192"},
				{Key: "trust-remote-code"},
			},
		}}, nil)
	h := newTestHub(t, cfg, nil)
	w, err := h.getWorker("m")
	if err != nil {
		t.Fatalf("getWorker: %v", err)
	}

	got := h.buildArgs(w)
	want := []string{
		"launch",
		"--model-path", "/models/m",
		"--host", "127.0.0.1",
		"--port", "45005",
		"--max-concurrency", "2",
		"--context-length", "8192",
		"--trust-remote-code",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestStartFailsWhenProcessExitsBeforeReady(t *testing.T) {
	script := writeScript(t, "exit 7")
	cfg := testConfig(t.TempDir(), script, []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.ReadyProbe = func(context.Context, string) bool { return false }
		o.ReadyTimeout = 3 * time.Second
	})

	_, err := h.Start("m")
	if !IsSpawnFailed(err) {
		t.Fatalf("expected spawn failure, got %v", err)
	}
	if st := workerStatus(t, h, "m"); st != StatusCrashed {
		t.Fatalf("expected crashed, got %s", st)
	}
	w, _ := h.getWorker("m")
	h.mu.RLock()
	code := w.exitCode
	h.mu.RUnlock()
	if code == nil || *code != 7 {
		t.Fatalf("expected exit code 7 recorded, got %v", code)
	}
}

func TestStartFailsWhenBinaryMissing(t *testing.T) {
	cfg := testConfig(t.TempDir(), "/nonexistent/worker-binary",
		[]types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, nil)

	_, err := h.Start("m")
	if !IsSpawnFailed(err) {
		t.Fatalf("expected spawn failure, got %v", err)
	}
	if st := workerStatus(t, h, "m"); st != StatusCrashed {
		t.Fatalf("expected crashed, got %s", st)
	}
}

func TestStartReadinessTimeout(t *testing.T) {
	cfg := testConfig(t.TempDir(), sleepScript(t), []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.ReadyProbe = func(context.Context, string) bool { return false }
		o.ReadyTimeout = 300 * time.Millisecond
		o.StopTimeout = 2 * time.Second
	})

	_, err := h.Start("m")
	if !IsSpawnFailed(err) {
		t.Fatalf("expected spawn failure, got %v", err)
	}
	if st := workerStatus(t, h, "m"); st != StatusCrashed {
		t.Fatalf("expected crashed, got %s", st)
	}
	if pid := workerPID(t, h, "m"); pid != 0 {
		t.Fatalf("process should be torn down after readiness timeout, pid=%d", pid)
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	script := stubbornScript(t)
	cfg := testConfig(t.TempDir(), script, []types.ModelSpec{{Name: "m"}}, nil)
	h := newTestHub(t, cfg, func(o *Options) {
		o.StopTimeout = 300 * time.Millisecond
	})

	if _, err := h.Start("m"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(script + ".trap-ready")
		return err == nil
	}) {
		t.Fatalf("worker never installed its TERM trap")
	}
	begin := time.Now()
	if err := h.Stop("m"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(begin); elapsed < 300*time.Millisecond {
		t.Fatalf("stop returned before the graceful window elapsed: %v", elapsed)
	}
	if st := workerStatus(t, h, "m"); st != StatusStopped {
		t.Fatalf("expected stopped after forced kill, got %s", st)
	}
	w, _ := h.getWorker("m")
	h.mu.RLock()
	code := w.exitCode
	h.mu.RUnlock()
	if code == nil {
		t.Fatalf("exit code should be recorded after kill")
	}
}

func TestDefaultReadyProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !defaultReadyProbe(ctx, srv.URL) {
		t.Fatalf("expected probe success against healthy endpoint")
	}
	if defaultReadyProbe(ctx, "http://127.0.0.1:1") {
		t.Fatalf("expected probe failure against closed port")
	}
}

func TestRestartDelayDoubles(t *testing.T) {
	h := &Hub{opts: Options{RestartBackoff: 2 * time.Second}}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
	}
	for _, c := range cases {
		if got := h.restartDelay(c.attempt); got != c.want {
			t.Fatalf("attempt %d: got %v want %v", c.attempt, got, c.want)
		}
	}
}
