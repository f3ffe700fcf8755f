package hub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// The supervisor owns the OS process behind each worker: spawn with output
// redirected to the worker's log file, confirm readiness, detect exits,
// and stop with SIGTERM-then-SIGKILL escalation.

var probeClient = &http.Client{Timeout: 0} // per-request context deadlines only

// restartResetAfter is how long a worker must stay Running before its
// crash-restart budget resets.
const restartResetAfter = time.Minute

// defaultReadyProbe treats a 200 from the worker's /health endpoint as
// "bound and ready".
func defaultReadyProbe(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// buildArgs derives the worker command line from a spec and resolved port.
// Everything in the Extra bag is forwarded verbatim, order preserved.
func (h *Hub) buildArgs(w *worker) []string {
	args := []string{
		"launch",
		"--model-path", w.spec.ModelPath,
		"--host", w.spec.Host,
		"--port", fmt.Sprint(w.port),
	}
	for _, opt := range w.spec.Extra {
		key := opt.Key
		if !strings.HasPrefix(key, "-") {
			key = "--" + key
		}
		args = append(args, key)
		if opt.Value != "" {
			args = append(args, opt.Value)
		}
	}
	return args
}

// spawn launches the worker binary and installs the exit watcher.
// Caller holds the worker's op slot; Hub.mu is taken only briefly.
func (h *Hub) spawn(w *worker) error {
	h.mu.RLock()
	args := h.buildArgs(w)
	bin := w.spec.Command
	logPath := w.logPath
	name := w.spec.Name
	h.mu.RUnlock()

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ErrSpawnFailed(name, fmt.Sprintf("open log: %v", err))
	}
	cmd := exec.Command(bin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return ErrSpawnFailed(name, err.Error())
	}

	exitCh := make(chan exitResult, 1)
	go func() {
		err := cmd.Wait()
		logFile.Close()
		exitCh <- exitResult{code: exitCodeOf(cmd, err), err: err}
	}()

	h.mu.Lock()
	w.cmd = cmd
	w.pid = cmd.Process.Pid
	w.exitCh = exitCh
	w.exitCode = nil
	h.mu.Unlock()

	h.log.Info().Str("worker", name).Int("pid", cmd.Process.Pid).
		Strs("args", args).Msg("spawned worker process")
	return nil
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// waitReady polls the readiness probe until success, process exit, or the
// ready deadline. Returns the exit result when the process died first.
func (h *Hub) waitReady(w *worker) (ready bool, exited *exitResult) {
	h.mu.RLock()
	host := w.spec.Host
	port := w.port
	exitCh := w.exitCh
	h.mu.RUnlock()

	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	deadline := time.Now().Add(h.opts.ReadyTimeout)
	for {
		select {
		case res := <-exitCh:
			exitCh <- res
			return false, &res
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ok := h.opts.ReadyProbe(ctx, baseURL)
		cancel()
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// stopProcess terminates a worker's process: SIGTERM, wait up to timeout,
// then SIGKILL. The exit code is consumed and recorded. Caller holds the
// worker's op slot.
func (h *Hub) stopProcess(w *worker, timeout time.Duration) exitResult {
	h.mu.RLock()
	cmd := w.cmd
	exitCh := w.exitCh
	name := w.spec.Name
	h.mu.RUnlock()
	if cmd == nil || cmd.Process == nil {
		return exitResult{}
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	var res exitResult
	select {
	case res = <-exitCh:
	case <-time.After(timeout):
		h.log.Warn().Str("worker", name).Int("pid", cmd.Process.Pid).
			Dur("timeout", timeout).Msg("graceful stop timed out, killing")
		_ = cmd.Process.Kill()
		res = <-exitCh
	}
	return res
}

// poll performs the non-blocking liveness check for one worker and applies
// the crash transition when a running process exited without a stop
// request. Caller holds Hub.mu.
func (h *Hub) pollLocked(w *worker, now time.Time) {
	// Starting/Stopping workers are owned by an in-flight op which consumes
	// the exit itself; only an unsolicited exit while Running is a crash.
	if w.status != StatusRunning || w.exitCh == nil {
		return
	}
	select {
	case res := <-w.exitCh:
		code := res.code
		w.exitCode = &code
		w.cmd = nil
		w.pid = 0
		w.exitCh = nil
		w.status = StatusCrashed
		w.lastErr = fmt.Sprintf("process exited with code %d", code)
		if now.Sub(w.startedAt) >= restartResetAfter {
			// A long healthy run forgives earlier crashes.
			w.restarts = 0
		}
		w.nextRestart = now.Add(h.restartDelay(w.restarts))
		crashesTotal.Inc()
		h.log.Error().Str("worker", w.spec.Name).Int("exit_code", code).
			Msg("worker exited unexpectedly")
	default:
	}
}

func (h *Hub) restartDelay(attempt int) time.Duration {
	d := h.opts.RestartBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
