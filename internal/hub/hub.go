package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mlxhub/internal/common/fsutil"
	"mlxhub/pkg/types"
)

// Hub is the orchestration core: the model registry, port allocator,
// process supervisor, group policy engine, monitor loop, and reconciler
// behind the control/status API.
type Hub struct {
	mu      sync.RWMutex
	cfg     types.HubConfig
	workers map[string]*worker
	groups  map[string]types.GroupSpec
	ports   *portAllocator

	opts      Options
	log       zerolog.Logger
	startTime time.Time

	done     chan struct{} // closed once by RequestShutdown
	doneOnce sync.Once
	stopMon  chan struct{} // closed by Close to cancel the monitor loop
	monOnce  sync.Once
	monWG    sync.WaitGroup
}

// New constructs a Hub from a validated configuration, resolves every
// worker's port, and starts the monitor loop. It does not start any worker
// process; call StartInitial for the always-on fleet.
func New(opts Options) (*Hub, error) {
	opts.applyDefaults()
	h := &Hub{
		cfg:       opts.Config,
		workers:   make(map[string]*worker),
		groups:    make(map[string]types.GroupSpec),
		opts:      opts,
		log:       opts.Logger,
		startTime: opts.now(),
		done:      make(chan struct{}),
		stopMon:   make(chan struct{}),
	}
	if err := os.MkdirAll(h.cfg.LogPath, 0o755); err != nil {
		return nil, fmt.Errorf("create hub state dir: %w", err)
	}
	h.ports = newPortAllocator(h.cfg.ModelStartingPort, filepath.Join(h.cfg.LogPath, "ports.json"))

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.registerLocked(opts.Config); err != nil {
		return nil, err
	}

	h.monWG.Add(1)
	go h.monitorLoop()
	return h, nil
}

// registerLocked seeds worker state from a config snapshot. Explicit ports
// are reserved first so persisted implicit assignments that now collide get
// re-allocated instead of rejecting the explicit claim.
func (h *Hub) registerLocked(cfg types.HubConfig) error {
	for _, m := range cfg.Models {
		if m.Port == 0 {
			continue
		}
		if _, err := h.ports.resolve(m.Name, m.Port); err != nil {
			return err
		}
	}
	for _, m := range cfg.Models {
		port, err := h.ports.resolve(m.Name, m.Port)
		if err != nil {
			return err
		}
		if !fsutil.PathExists(m.ModelPath) {
			// Not fatal: the path may appear before the worker is started
			// (network mounts, late downloads). The spawn will fail loudly
			// if it is still missing then.
			h.log.Warn().Str("worker", m.Name).Str("model_path", m.ModelPath).
				Msg("model path does not exist")
		}
		h.workers[m.Name] = newWorker(m, port, h.workerLogPath(m.Name))
	}
	for _, g := range cfg.Groups {
		h.groups[g.Name] = g
	}
	return nil
}

func (h *Hub) workerLogPath(name string) string {
	return filepath.Join(h.cfg.LogPath, name+".supervisor.log")
}

// getWorker returns the runtime state for a name.
func (h *Hub) getWorker(name string) (*worker, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w, ok := h.workers[name]
	if !ok {
		return nil, ErrNotFound(name)
	}
	return w, nil
}

// RecordActivity refreshes a worker's activity timestamp, the sole input to
// idle-unload evaluation. The source of the signal (request traffic, health
// pings) is the caller's concern.
func (h *Hub) RecordActivity(name string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.workers[name]
	if !ok {
		return ErrNotFound(name)
	}
	if at.After(w.lastActive) {
		w.lastActive = at
	}
	return nil
}

// Config returns the current configuration snapshot.
func (h *Hub) Config() types.HubConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Done is closed when a shutdown has been requested; the daemon main exits.
func (h *Hub) Done() <-chan struct{} { return h.done }

// RequestShutdown signals the daemon to exit. Stopping workers is Close's
// job so the HTTP response for POST /hub/shutdown can flush first.
func (h *Hub) RequestShutdown() {
	h.doneOnce.Do(func() { close(h.done) })
}

// lockOp acquires a worker's lifecycle slot. Operations on one name
// serialize; unrelated workers proceed independently.
func (w *worker) lockOp() func() {
	w.op <- struct{}{}
	return func() { <-w.op }
}
