package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"mlxhub/pkg/types"
)

// renderStatus prints the fleet snapshot as two tables: workers, groups.
func renderStatus(w io.Writer, st types.StatusResponse) {
	fmt.Fprintf(w, "hub %s:%d, up %ds, %d worker(s)\n\n",
		st.Host, st.Port, st.UptimeSeconds, len(st.Workers))

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Status", "Port", "PID", "Group", "JIT", "Uptime", "CPU%", "RSS MB")
	for _, ws := range st.Workers {
		jit := ""
		if ws.JITEnabled {
			jit = "yes"
		}
		pid := ""
		if ws.PID != 0 {
			pid = strconv.Itoa(ws.PID)
		}
		uptime := ""
		if ws.UptimeSeconds > 0 {
			uptime = fmt.Sprintf("%ds", ws.UptimeSeconds)
		}
		cpu := ""
		if ws.CPUPercent > 0 {
			cpu = fmt.Sprintf("%.1f", ws.CPUPercent)
		}
		rss := ""
		if ws.MemoryRSS > 0 {
			rss = strconv.FormatUint(ws.MemoryRSS/(1024*1024), 10)
		}
		table.Append(ws.Name, ws.Status, strconv.Itoa(ws.Port), pid,
			ws.Group, jit, uptime, cpu, rss)
	}
	table.Render()

	if len(st.Groups) == 0 {
		return
	}
	fmt.Fprintln(w)
	gt := tablewriter.NewWriter(w)
	gt.Header("Group", "Running", "Total", "Max Loaded", "Idle Min")
	for _, g := range st.Groups {
		max := ""
		if g.MaxLoaded > 0 {
			max = strconv.Itoa(g.MaxLoaded)
		}
		idle := ""
		if g.IdleUnloadTriggerMin > 0 {
			idle = strconv.Itoa(g.IdleUnloadTriggerMin)
		}
		gt.Append(g.Name, strconv.Itoa(g.Running), strconv.Itoa(g.Total), max, idle)
	}
	gt.Render()
}
