package hub

import (
	"time"
)

// monitorLoop is the only writer that acts without an external request: it
// polls process liveness, enforces idle-unload policy, and restarts crashed
// always-on workers. It reuses the same per-worker op locks as the API, so
// its actions serialize with concurrent control calls.
func (h *Hub) monitorLoop() {
	defer h.monWG.Done()
	ticker := time.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopMon:
			return
		case <-ticker.C:
			h.tick(h.opts.now())
		}
	}
}

// tick runs one monitor pass in the fixed order: liveness poll, idle
// policy, crash restarts.
func (h *Hub) tick(now time.Time) {
	// (1) liveness: apply crash transitions for unsolicited exits.
	h.mu.Lock()
	for _, w := range h.workers {
		h.pollLocked(w, now)
	}
	h.updateStateGaugesLocked()
	h.mu.Unlock()

	// (2) idle policy: unload candidates one by one; a failure for one
	// worker never aborts the others.
	h.mu.RLock()
	idle := h.idleCandidatesLocked(now)
	h.mu.RUnlock()
	for _, name := range idle {
		if err := h.stop(name, h.opts.StopTimeout, StatusUnloading); err != nil {
			if !IsNotRunning(err) {
				h.log.Warn().Err(err).Str("worker", name).Msg("idle unload failed")
			}
			continue
		}
		idleUnloadsTotal.Inc()
		h.log.Info().Str("worker", name).Msg("idle worker unloaded")
	}

	// (3) bounded crash restarts for always-on workers.
	for _, name := range h.restartCandidates(now) {
		h.mu.Lock()
		w, ok := h.workers[name]
		if !ok || w.status != StatusCrashed {
			h.mu.Unlock()
			continue
		}
		w.restarts++
		attempt := w.restarts
		h.mu.Unlock()
		restartsTotal.Inc()
		h.log.Info().Str("worker", name).Int("attempt", attempt).Msg("restarting crashed worker")
		if _, err := h.Start(name); err != nil && !IsAlreadyRunning(err) {
			h.log.Error().Err(err).Str("worker", name).Msg("restart failed")
		}
	}
}

// restartCandidates returns crashed non-JIT workers whose backoff delay has
// elapsed and whose retry budget is not exhausted.
func (h *Hub) restartCandidates(now time.Time) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for name, w := range h.workers {
		if w.spec.JITEnabled || w.status != StatusCrashed {
			continue
		}
		if w.restarts >= h.opts.MaxRestarts {
			continue
		}
		if now.Before(w.nextRestart) {
			continue
		}
		out = append(out, name)
	}
	return out
}
