package hub

import (
	"sort"

	"mlxhub/pkg/types"
)

// reloadPlan is the computed diff between the current fleet and a new
// configuration snapshot.
type reloadPlan struct {
	removed []string
	added   []string
	changed []string // present in both with a different spec
	kept    []string // present in both, spec identical
	// changed workers that were running and must be started again
	restart []string
}

// Reload reconciles the running fleet against a freshly validated
// configuration: removed workers are stopped and forgotten (ports
// released), added ones are registered (and started unless JIT), changed
// ones are stopped and relaunched with their new spec, identical ones keep
// their process, port, and timers. The config snapshot is swapped
// atomically after the diff is applied.
func (h *Hub) Reload(newCfg types.HubConfig) error {
	plan, err := h.planReload(newCfg)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return err
	}

	// Stop removed workers and drop their state and port reservations.
	for _, name := range plan.removed {
		if err := h.stop(name, h.opts.StopTimeout, StatusStopping); err != nil && !IsNotRunning(err) {
			h.log.Warn().Err(err).Str("worker", name).Msg("stopping removed worker")
		}
		h.mu.Lock()
		delete(h.workers, name)
		h.ports.release(name)
		h.mu.Unlock()
		h.log.Info().Str("worker", name).Msg("worker removed from config")
	}

	// Changed specs require a stop before the new spec takes over.
	for _, name := range plan.changed {
		if err := h.stop(name, h.opts.StopTimeout, StatusStopping); err != nil && !IsNotRunning(err) {
			h.log.Warn().Err(err).Str("worker", name).Msg("stopping changed worker")
		}
	}

	h.mu.Lock()
	// Implicit reservations held by workers that are not running yield to
	// new explicit claims; the yielded worker re-allocates below. Running
	// holders keep their port (kept-identical ones were rejected in
	// planReload, changed ones were stopped above).
	for _, m := range newCfg.Models {
		if m.Port == 0 {
			continue
		}
		owner, held := h.ports.ownerOf(m.Port)
		if !held || owner == m.Name {
			continue
		}
		if w, ok := h.workers[owner]; ok && w.status == StatusRunning {
			continue
		}
		h.ports.release(owner)
	}
	// Resolve every explicit claim before any state is swapped so a
	// conflict aborts with the previous config and fleet intact.
	for _, m := range newCfg.Models {
		if m.Port == 0 {
			continue
		}
		if w, ok := h.workers[m.Name]; ok && w.status == StatusRunning && w.port == m.Port {
			continue // already holds it
		}
		if _, err := h.ports.resolve(m.Name, m.Port); err != nil {
			h.mu.Unlock()
			reloadsTotal.WithLabelValues("error").Inc()
			return err
		}
	}
	for _, m := range newCfg.Models {
		w, ok := h.workers[m.Name]
		if ok && w.status == StatusRunning {
			// Port is pinned while the process lives.
			w.spec = m
			continue
		}
		port, err := h.ports.resolve(m.Name, m.Port)
		if err != nil {
			h.mu.Unlock()
			reloadsTotal.WithLabelValues("error").Inc()
			return err
		}
		if !ok {
			h.workers[m.Name] = newWorker(m, port, h.workerLogPath(m.Name))
			continue
		}
		w.spec = m
		w.port = port
	}
	h.cfg = newCfg
	h.groups = make(map[string]types.GroupSpec, len(newCfg.Groups))
	for _, g := range newCfg.Groups {
		h.groups[g.Name] = g
	}
	h.mu.Unlock()

	// Shrunken caps: evict oldest members until every group fits again.
	h.enforceGroupCaps()

	// Relaunch changed workers that were running, then the always-on fleet.
	for _, name := range plan.restart {
		if _, err := h.Start(name); err != nil && !IsAlreadyRunning(err) {
			h.log.Error().Err(err).Str("worker", name).Msg("restart after reload failed")
		}
	}
	h.StartInitial()

	reloadsTotal.WithLabelValues("ok").Inc()
	h.log.Info().Int("models", len(newCfg.Models)).Int("groups", len(newCfg.Groups)).
		Int("removed", len(plan.removed)).Int("added", len(plan.added)).
		Int("changed", len(plan.changed)).Msg("config reloaded")
	return nil
}

// planReload computes the action sets without mutating anything, and
// rejects reloads whose explicit ports collide with a port pinned by a
// running worker that the reload keeps unchanged.
func (h *Hub) planReload(newCfg types.HubConfig) (reloadPlan, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var plan reloadPlan
	newSpecs := make(map[string]types.ModelSpec, len(newCfg.Models))
	for _, m := range newCfg.Models {
		newSpecs[m.Name] = m
	}
	for name, w := range h.workers {
		spec, stillThere := newSpecs[name]
		switch {
		case !stillThere:
			plan.removed = append(plan.removed, name)
		case w.spec.Equal(spec):
			plan.kept = append(plan.kept, name)
		default:
			plan.changed = append(plan.changed, name)
			if w.status == StatusRunning || w.status == StatusStarting {
				plan.restart = append(plan.restart, name)
			}
		}
	}
	for name := range newSpecs {
		if _, exists := h.workers[name]; !exists {
			plan.added = append(plan.added, name)
		}
	}
	sort.Strings(plan.removed)
	sort.Strings(plan.added)
	sort.Strings(plan.changed)
	sort.Strings(plan.kept)
	sort.Strings(plan.restart)

	for _, m := range newCfg.Models {
		if m.Port == 0 {
			continue
		}
		for name, w := range h.workers {
			if name == m.Name || w.port != m.Port || w.status != StatusRunning {
				continue
			}
			spec, stillThere := newSpecs[name]
			if stillThere && w.spec.Equal(spec) {
				return plan, ErrPortConflict(m.Name, m.Port, name)
			}
		}
	}
	return plan, nil
}

// enforceGroupCaps evicts the oldest running members of any group whose
// max_loaded shrank below its current occupancy.
func (h *Hub) enforceGroupCaps() {
	for {
		h.mu.RLock()
		var victim string
		for gname, g := range h.groups {
			if g.MaxLoaded <= 0 {
				continue
			}
			running := h.runningMembersLocked(gname, "")
			if len(running) <= g.MaxLoaded {
				continue
			}
			if v := oldestWorker(running); v != nil {
				victim = v.spec.Name
				break
			}
		}
		h.mu.RUnlock()
		if victim == "" {
			return
		}
		evictionsTotal.Inc()
		h.log.Info().Str("worker", victim).Msg("evicting over-capacity group member")
		if err := h.stop(victim, h.opts.StopTimeout, StatusUnloading); err != nil && !IsNotRunning(err) {
			h.log.Warn().Err(err).Str("worker", victim).Msg("eviction failed")
			return
		}
	}
}
