package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	startsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "workers",
		Name:      "starts_total",
		Help:      "Total worker processes started",
	})

	stopsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "workers",
		Name:      "stops_total",
		Help:      "Total worker processes stopped on request",
	})

	crashesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "workers",
		Name:      "crashes_total",
		Help:      "Total unsolicited worker exits",
	})

	restartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "workers",
		Name:      "restarts_total",
		Help:      "Total automatic restarts of crashed always-on workers",
	})

	evictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "groups",
		Name:      "evictions_total",
		Help:      "Total group-capacity evictions",
	})

	idleUnloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "groups",
		Name:      "idle_unloads_total",
		Help:      "Total idle-triggered automatic unloads",
	})

	reloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlxhub",
		Subsystem: "config",
		Name:      "reloads_total",
		Help:      "Total config reload attempts",
	}, []string{"result"})

	workersByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mlxhub",
		Subsystem: "workers",
		Name:      "state",
		Help:      "Number of workers per lifecycle state",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(startsTotal, stopsTotal, crashesTotal, restartsTotal,
		evictionsTotal, idleUnloadsTotal, reloadsTotal, workersByStatus)
}

// updateStateGauges refreshes the per-status gauge. Caller holds Hub.mu.
func (h *Hub) updateStateGaugesLocked() {
	counts := map[Status]int{}
	for _, w := range h.workers {
		counts[w.status]++
	}
	for _, s := range []Status{StatusStopped, StatusStarting, StatusRunning,
		StatusStopping, StatusCrashed, StatusUnloading} {
		workersByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
