package hub

import (
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	"mlxhub/pkg/types"
)

// Status builds the full fleet snapshot for GET /hub/status. Resource usage
// is sampled from the OS after the registry snapshot is taken so the
// sampling I/O never runs under Hub.mu.
func (h *Hub) Status() types.StatusResponse {
	h.mu.RLock()
	now := h.opts.now()
	resp := types.StatusResponse{
		Host:              h.cfg.Host,
		Port:              h.cfg.Port,
		ModelStartingPort: h.cfg.ModelStartingPort,
		EnableStatusPage:  h.cfg.EnableStatusPage,
		StartedAt:         h.startTime.Unix(),
		UptimeSeconds:     int64(now.Sub(h.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
	}
	resp.Workers = make([]types.WorkerStatus, 0, len(h.workers))
	for _, w := range h.workers {
		ws := types.WorkerStatus{
			Name:       w.spec.Name,
			Host:       w.spec.Host,
			Port:       w.port,
			JITEnabled: w.spec.JITEnabled,
			Group:      w.spec.Group,
			Status:     string(w.status),
			PID:        w.pid,
			ExitCode:   w.exitCode,
			LastError:  w.lastErr,
			LogPath:    w.logPath,
		}
		if !w.startedAt.IsZero() {
			ws.StartedAt = w.startedAt.Unix()
			if w.status == StatusRunning {
				ws.UptimeSeconds = int64(now.Sub(w.startedAt).Seconds())
			}
		}
		if !w.lastActive.IsZero() {
			ws.LastActiveAt = w.lastActive.Unix()
		}
		resp.Workers = append(resp.Workers, ws)
	}
	resp.Groups = make([]types.GroupStatus, 0, len(h.groups))
	for _, g := range h.groups {
		gs := types.GroupStatus{
			Name:                 g.Name,
			MaxLoaded:            g.MaxLoaded,
			IdleUnloadTriggerMin: g.IdleUnloadTriggerMin,
		}
		for _, w := range h.workers {
			if w.spec.Group != g.Name {
				continue
			}
			gs.Total++
			if w.status == StatusRunning {
				gs.Running++
			}
		}
		resp.Groups = append(resp.Groups, gs)
	}
	h.mu.RUnlock()

	sort.Slice(resp.Workers, func(i, j int) bool { return resp.Workers[i].Name < resp.Workers[j].Name })
	sort.Slice(resp.Groups, func(i, j int) bool { return resp.Groups[i].Name < resp.Groups[j].Name })

	for i := range resp.Workers {
		if resp.Workers[i].PID == 0 || resp.Workers[i].Status != string(StatusRunning) {
			continue
		}
		sampleProcess(&resp.Workers[i])
	}
	return resp
}

// sampleProcess fills CPU/RSS for a live pid. Best effort; a vanished
// process just leaves the fields zero.
func sampleProcess(ws *types.WorkerStatus) {
	p, err := process.NewProcess(int32(ws.PID))
	if err != nil {
		return
	}
	if cpu, err := p.CPUPercent(); err == nil {
		ws.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		ws.MemoryRSS = mem.RSS
	}
}
