package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mlxhub/pkg/types"
)

// Defaults applied when corresponding Options fields are unset.
const (
	defaultPollInterval   = 2 * time.Second
	defaultReadyTimeout   = 30 * time.Second
	defaultStopTimeout    = 10 * time.Second
	defaultMaxRestarts    = 3
	defaultRestartBackoff = 2 * time.Second
)

// ReadinessProbe decides when a freshly spawned worker counts as running.
// It is polled until it returns true or the ready timeout elapses. The
// default probes the worker's /health endpoint; tests inject their own.
type ReadinessProbe func(ctx context.Context, baseURL string) bool

// Options encapsulates all tunables for Hub construction.
type Options struct {
	Config     types.HubConfig
	ConfigPath string

	Logger zerolog.Logger

	// Monitor tick interval; also paces readiness/stop polling.
	PollInterval time.Duration
	// How long a spawned process may take to pass the readiness probe.
	ReadyTimeout time.Duration
	// Graceful-stop window before escalating to SIGKILL.
	StopTimeout time.Duration

	// Crash-restart policy for always-on (non-JIT) workers.
	MaxRestarts    int
	RestartBackoff time.Duration

	ReadyProbe ReadinessProbe

	// now is swappable in tests for idle-timer evaluation.
	now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = defaultReadyTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaultStopTimeout
	}
	if o.MaxRestarts <= 0 {
		o.MaxRestarts = defaultMaxRestarts
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = defaultRestartBackoff
	}
	if o.ReadyProbe == nil {
		o.ReadyProbe = defaultReadyProbe
	}
	if o.now == nil {
		o.now = time.Now
	}
}
