// Package hub supervises a fleet of model-serving worker processes on one
// host: it owns the name-keyed registry of specs and runtime state, assigns
// and persists worker ports, enforces per-group capacity and idle-unload
// policy, reconciles the fleet against config reloads, and exposes the
// operations behind the control/status API. It is structured into small
// files by concern:
//
//   - hub.go: core Hub type, constructor, registry accessors.
//   - config.go: Options and package defaults.
//   - types.go: worker runtime state and the lifecycle Status enum.
//   - errors.go: error taxonomy with stable kinds (IsNotFound, IsPortConflict, ...).
//   - ports.go: port allocator with JSON-persisted assignments.
//   - supervisor.go: process spawn/readiness/stop/poll primitives.
//   - policy.go: group admission (evict-oldest) and idle candidates.
//   - monitor.go: the periodic liveness/idle/restart loop.
//   - reconcile.go: config-reload diffing and application.
//   - ops.go: Start/Stop/Load/Unload/StopAll/Close entry points.
//   - status_report.go: fleet snapshot for the status API.
//   - metrics.go: Prometheus counters and gauges.
//
// Concurrency: Hub.mu is the coarse lock over the registry, allocator, and
// group tables, held only for brief decisions. Each worker carries a
// one-slot op semaphore serializing its lifecycle operations; process
// spawning and stopping block while holding only that slot. Evictions take
// the victim's slot before the requester's, a fixed order that prevents
// deadlock between coupled operations.
package hub
