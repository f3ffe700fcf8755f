package hub

import (
	"time"
)

// Group capacity and idle-unload policy. Decisions are computed under
// Hub.mu and acted on by the caller outside it.

// admitLocked decides whether a worker may start under its group's
// max_loaded cap. It returns the name of the member to evict first, or ""
// when the start may proceed directly. Only JIT workers with a group are
// subject to admission. Starting members occupy a slot, so the decision
// must be taken in the same critical section that flips the requester to
// Starting. Caller holds Hub.mu.
func (h *Hub) admitLocked(name string) (victim string, err error) {
	w, ok := h.workers[name]
	if !ok {
		return "", ErrNotFound(name)
	}
	if !w.spec.JITEnabled || w.spec.Group == "" {
		return "", nil
	}
	g, ok := h.groups[w.spec.Group]
	if !ok || g.MaxLoaded <= 0 {
		return "", nil
	}
	running := h.runningMembersLocked(g.Name, name)
	if len(running) < g.MaxLoaded {
		return "", nil
	}
	v := oldestWorker(running)
	if v == nil {
		return "", ErrGroupCapacity(name, g.Name)
	}
	return v.spec.Name, nil
}

// runningMembersLocked returns the members of a group that hold a load
// slot, excluding one name (pass "" to exclude none). Starting members
// count: they have been admitted and will be Running shortly, so a
// concurrent admission must see them as occupying.
func (h *Hub) runningMembersLocked(group, except string) []*worker {
	var out []*worker
	for _, w := range h.workers {
		if w.spec.Group != group || w.spec.Name == except {
			continue
		}
		if w.status == StatusRunning || w.status == StatusStarting {
			out = append(out, w)
		}
	}
	return out
}

// oldestWorker picks the eviction victim: earliest started_at, ties broken
// by lexicographically smallest name so the choice is a total order.
func oldestWorker(ws []*worker) *worker {
	var oldest *worker
	for _, w := range ws {
		if oldest == nil {
			oldest = w
			continue
		}
		if w.startedAt.Before(oldest.startedAt) ||
			(w.startedAt.Equal(oldest.startedAt) && w.spec.Name < oldest.spec.Name) {
			oldest = w
		}
	}
	return oldest
}

// idleCandidatesLocked returns Running workers whose group idle threshold
// has elapsed. A group participates only when every member is jit_enabled;
// a single always-on member disables auto-unload for the whole group.
// Caller holds Hub.mu.
func (h *Hub) idleCandidatesLocked(now time.Time) []string {
	var out []string
	for gname, g := range h.groups {
		if g.IdleUnloadTriggerMin <= 0 {
			continue
		}
		if !h.groupFullyJITLocked(gname) {
			continue
		}
		threshold := time.Duration(g.IdleUnloadTriggerMin) * time.Minute
		for _, w := range h.workers {
			if w.spec.Group != gname || w.status != StatusRunning {
				continue
			}
			last := w.lastActive
			if last.IsZero() {
				last = w.startedAt
			}
			if last.IsZero() {
				continue
			}
			if now.Sub(last) >= threshold {
				out = append(out, w.spec.Name)
			}
		}
	}
	return out
}

func (h *Hub) groupFullyJITLocked(group string) bool {
	members := 0
	for _, w := range h.workers {
		if w.spec.Group != group {
			continue
		}
		members++
		if !w.spec.JITEnabled {
			return false
		}
	}
	return members > 0
}
