package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// maxAdmissionRetries bounds the evict-and-retry loop when concurrent loads
// race for the same group slot.
const maxAdmissionRetries = 3

// Start brings a worker to Running. For JIT workers in a capped group the
// request passes group admission first and may evict the oldest member
// holding a slot; the evicted name (if any) is returned alongside the
// result.
func (h *Hub) Start(name string) (evicted string, err error) {
	for attempt := 0; attempt < maxAdmissionRetries; attempt++ {
		h.mu.RLock()
		w, ok := h.workers[name]
		h.mu.RUnlock()
		if !ok {
			return evicted, ErrNotFound(name)
		}

		victim, err := h.start(w)
		if err != nil {
			return evicted, err
		}
		if victim == "" {
			return evicted, nil
		}
		// The requester's op slot is released before the victim's is taken,
		// so coupled evictions cannot deadlock on each other.
		evicted = victim
		evictionsTotal.Inc()
		h.log.Info().Str("worker", name).Str("evicted", victim).
			Msg("group at capacity, evicting oldest member")
		if serr := h.stop(victim, h.opts.StopTimeout, StatusUnloading); serr != nil && !IsNotRunning(serr) {
			return evicted, serr
		}
		// Re-evaluate admission now that the slot freed up.
	}
	h.mu.RLock()
	group := ""
	if w, ok := h.workers[name]; ok {
		group = w.spec.Group
	}
	h.mu.RUnlock()
	return evicted, ErrGroupCapacity(name, group)
}

// Load is start restricted to JIT workers; it always passes through group
// admission.
func (h *Hub) Load(name string) (evicted string, err error) {
	w, err := h.getWorker(name)
	if err != nil {
		return "", err
	}
	h.mu.RLock()
	jit := w.spec.JITEnabled
	h.mu.RUnlock()
	if !jit {
		return "", ErrNotJIT(name)
	}
	return h.Start(name)
}

// Stop gracefully stops a running worker. A stop arriving while a start is
// mid-spawn wins: the start completes, observes the pending flag, and
// finishes in Stopped.
func (h *Hub) Stop(name string) error {
	return h.stop(name, h.opts.StopTimeout, StatusStopping)
}

// Unload stops a JIT worker while keeping its config entry and port
// reservation.
func (h *Hub) Unload(name string) error {
	w, err := h.getWorker(name)
	if err != nil {
		return err
	}
	h.mu.RLock()
	jit := w.spec.JITEnabled
	h.mu.RUnlock()
	if !jit {
		return ErrNotJIT(name)
	}
	return h.stop(name, h.opts.StopTimeout, StatusUnloading)
}

// start transitions Stopped/Crashed -> Starting -> Running under the
// worker's op lock. Group admission and the flip to Starting happen in one
// critical section, so at no point can two admitted members overshoot the
// cap: a second racer sees the first in Starting and is told to evict. A
// non-empty victim return means the caller must free the slot and retry.
// Spawn and readiness confirmation block without holding Hub.mu so
// unrelated workers stay responsive.
func (h *Hub) start(w *worker) (victim string, err error) {
	unlock := w.lockOp()
	defer unlock()

	h.mu.Lock()
	name := w.spec.Name
	if w.status == StatusRunning || w.status == StatusStarting {
		h.mu.Unlock()
		return "", ErrAlreadyRunning(name)
	}
	victim, aerr := h.admitLocked(name)
	if aerr != nil {
		h.mu.Unlock()
		return "", aerr
	}
	if victim != "" {
		h.mu.Unlock()
		return victim, nil
	}
	w.status = StatusStarting
	w.stopRequested = false
	w.lastErr = ""
	h.updateStateGaugesLocked()
	h.mu.Unlock()

	if err := h.spawn(w); err != nil {
		h.mu.Lock()
		w.status = StatusCrashed
		w.lastErr = err.Error()
		w.nextRestart = h.opts.now().Add(h.restartDelay(w.restarts))
		h.updateStateGaugesLocked()
		h.mu.Unlock()
		return "", err
	}

	ready, exited := h.waitReady(w)
	if exited != nil {
		h.mu.Lock()
		code := exited.code
		w.exitCode = &code
		w.cmd = nil
		w.pid = 0
		w.exitCh = nil
		w.status = StatusCrashed
		w.lastErr = fmt.Sprintf("process exited with code %d before ready", code)
		w.nextRestart = h.opts.now().Add(h.restartDelay(w.restarts))
		h.updateStateGaugesLocked()
		h.mu.Unlock()
		return "", ErrSpawnFailed(name, fmt.Sprintf("exited with code %d before ready", code))
	}
	if !ready {
		res := h.stopProcess(w, h.opts.StopTimeout)
		h.mu.Lock()
		code := res.code
		w.exitCode = &code
		w.cmd = nil
		w.pid = 0
		w.exitCh = nil
		w.status = StatusCrashed
		w.lastErr = "readiness probe timed out"
		w.nextRestart = h.opts.now().Add(h.restartDelay(w.restarts))
		h.updateStateGaugesLocked()
		h.mu.Unlock()
		return "", ErrSpawnFailed(name, "readiness probe timed out")
	}

	h.mu.Lock()
	now := h.opts.now()
	w.status = StatusRunning
	w.startedAt = now
	w.lastActive = now
	pendingStop := w.stopRequested
	h.updateStateGaugesLocked()
	h.mu.Unlock()
	startsTotal.Inc()
	h.log.Info().Str("worker", name).Int("port", w.port).Msg("worker running")

	if pendingStop {
		// The concurrent stop wins; tear down before releasing the op slot.
		res := h.stopProcess(w, h.opts.StopTimeout)
		h.mu.Lock()
		code := res.code
		w.exitCode = &code
		w.cmd = nil
		w.pid = 0
		w.exitCh = nil
		w.status = StatusStopped
		w.stopRequested = false
		h.updateStateGaugesLocked()
		h.mu.Unlock()
		h.log.Info().Str("worker", name).Msg("start superseded by pending stop")
	}
	return "", nil
}

// stop is the shared stop path; via is the transitional state (Stopping for
// explicit stops, Unloading for policy-driven ones).
func (h *Hub) stop(name string, timeout time.Duration, via Status) error {
	h.mu.Lock()
	w, ok := h.workers[name]
	if !ok {
		h.mu.Unlock()
		return ErrNotFound(name)
	}
	wasPending := false
	if w.status == StatusStarting {
		w.stopRequested = true
		wasPending = true
	}
	h.mu.Unlock()

	unlock := w.lockOp()
	defer unlock()

	h.mu.Lock()
	switch w.status {
	case StatusRunning:
		w.status = via
		h.updateStateGaugesLocked()
		h.mu.Unlock()
	default:
		h.mu.Unlock()
		if wasPending {
			// The in-flight start honored our pending flag; nothing left to do.
			return nil
		}
		return ErrNotRunning(name)
	}

	res := h.stopProcess(w, timeout)

	h.mu.Lock()
	code := res.code
	w.exitCode = &code
	w.cmd = nil
	w.pid = 0
	w.exitCh = nil
	w.status = StatusStopped
	w.lastActive = h.opts.now()
	h.updateStateGaugesLocked()
	h.mu.Unlock()
	stopsTotal.Inc()
	h.log.Info().Str("worker", name).Int("exit_code", code).Msg("worker stopped")
	return nil
}

// StopAll stops every running worker concurrently. Per-worker failures are
// collected; NotRunning is not a failure here.
func (h *Hub) StopAll() error {
	h.mu.RLock()
	names := make([]string, 0, len(h.workers))
	for n := range h.workers {
		names = append(names, n)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	var wg sync.WaitGroup
	errCh := make(chan error, len(names))
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			if err := h.Stop(n); err != nil && !IsNotRunning(err) {
				errCh <- fmt.Errorf("stop %s: %w", n, err)
			}
		}(n)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

// StartInitial starts every non-JIT worker. Failures are logged per worker
// and do not abort the rest of the fleet.
func (h *Hub) StartInitial() {
	h.mu.RLock()
	var names []string
	for n, w := range h.workers {
		if !w.spec.JITEnabled {
			names = append(names, n)
		}
	}
	h.mu.RUnlock()
	sort.Strings(names)
	for _, n := range names {
		if _, err := h.Start(n); err != nil && !IsAlreadyRunning(err) {
			h.log.Error().Err(err).Str("worker", n).Msg("failed to start worker")
		}
	}
}

// Close shuts the hub down: cancels the monitor loop, then stops all
// workers, bounded by ctx. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	h.RequestShutdown()
	h.monOnce.Do(func() { close(h.stopMon) })
	h.monWG.Wait()

	done := make(chan error, 1)
	go func() { done <- h.StopAll() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
