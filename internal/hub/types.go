package hub

import (
	"os/exec"
	"time"

	"mlxhub/pkg/types"
)

// Status is the lifecycle state of one supervised worker.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusCrashed   Status = "crashed"
	StatusUnloading Status = "unloading"
)

// exitResult carries the outcome of a process wait.
type exitResult struct {
	code int
	err  error
}

// worker pairs a configured spec with its mutable runtime state.
//
// Field access is guarded by Hub.mu. Lifecycle operations (start, stop,
// load, unload, monitor restarts) additionally serialize through the op
// channel, a one-slot semaphore that is the per-name lock from the
// concurrency model: blocking work (spawn confirmation, graceful-stop
// wait) happens while holding only op, never Hub.mu.
type worker struct {
	op chan struct{} // size 1; acquired for the duration of a lifecycle op

	spec   types.ModelSpec
	status Status
	port   int

	cmd    *exec.Cmd
	pid    int
	exitCh chan exitResult // receives exactly one result per spawned process

	startedAt  time.Time
	lastActive time.Time
	exitCode   *int
	lastErr    string
	logPath    string

	// stopRequested makes a stop arriving mid-spawn win over the start:
	// the start path re-checks it after readiness and tears down.
	stopRequested bool

	// crash-restart bookkeeping for always-on workers
	restarts    int
	nextRestart time.Time
}

func newWorker(spec types.ModelSpec, port int, logPath string) *worker {
	return &worker{
		op:      make(chan struct{}, 1),
		spec:    spec,
		status:  StatusStopped,
		port:    port,
		logPath: logPath,
	}
}
