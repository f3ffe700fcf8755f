package types

// LaunchOption is one pass-through worker launch flag. The hub never
// interprets these beyond forwarding them to the spawned command line.
// A flag without an argument leaves Value empty.
type LaunchOption struct {
	Key   string `json:"key" yaml:"key" toml:"key"`
	Value string `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

// ModelSpec is the static, per-config-load description of one worker.
type ModelSpec struct {
	// Unique worker name; the key for every control operation.
	// example: qwen3-8b
	Name string `json:"name" yaml:"name" toml:"name"`
	// Path to the model weights handed to the worker binary.
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	// Host the worker binds. Defaults to the hub host when empty.
	Host string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
	// Explicit TCP port. Zero means "allocate one for me".
	Port int `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
	// Worker binary to execute. Defaults to the hub-wide worker command.
	Command string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	// JIT workers start stopped and are only brought up via load.
	JITEnabled bool `json:"jit_enabled,omitempty" yaml:"jit_enabled,omitempty" toml:"jit_enabled,omitempty"`
	// Optional capacity/idle policy group.
	Group string `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	// Opaque ordered launch options, forwarded verbatim.
	Extra []LaunchOption `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra,omitempty"`
}

// Equal reports whether two specs describe the same launch, including the
// opaque option bag. Reconciliation keeps a worker's process only when its
// old and new specs are equal.
func (s ModelSpec) Equal(o ModelSpec) bool {
	if s.Name != o.Name || s.ModelPath != o.ModelPath || s.Host != o.Host ||
		s.Port != o.Port || s.Command != o.Command ||
		s.JITEnabled != o.JITEnabled || s.Group != o.Group {
		return false
	}
	if len(s.Extra) != len(o.Extra) {
		return false
	}
	for i := range s.Extra {
		if s.Extra[i] != o.Extra[i] {
			return false
		}
	}
	return true
}

// GroupSpec names a set of workers sharing capacity and idle policy.
type GroupSpec struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Maximum concurrently running members. Zero means unbounded.
	MaxLoaded int `json:"max_loaded,omitempty" yaml:"max_loaded,omitempty" toml:"max_loaded,omitempty"`
	// Idle minutes after which a fully-JIT group unloads a member. Zero disables.
	IdleUnloadTriggerMin int `json:"idle_unload_trigger_min,omitempty" yaml:"idle_unload_trigger_min,omitempty" toml:"idle_unload_trigger_min,omitempty"`
}

// HubConfig is the validated configuration consumed by the hub core.
// The loader owns file parsing; the core treats this as read-only input.
type HubConfig struct {
	// Control API bind address parts.
	Host string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
	// First port handed out to workers that omit an explicit port.
	ModelStartingPort int `json:"model_starting_port,omitempty" yaml:"model_starting_port,omitempty" toml:"model_starting_port,omitempty"`
	// Serve the HTML status page (and permissive CORS for it).
	EnableStatusPage bool `json:"enable_status_page,omitempty" yaml:"enable_status_page,omitempty" toml:"enable_status_page,omitempty"`
	// Default worker binary when a spec omits command.
	WorkerCommand string `json:"worker_command,omitempty" yaml:"worker_command,omitempty" toml:"worker_command,omitempty"`
	// Directory for worker logs and persisted hub state (port assignments).
	LogPath string `json:"log_path,omitempty" yaml:"log_path,omitempty" toml:"log_path,omitempty"`
	// Zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level,omitempty"`

	Models []ModelSpec `json:"models" yaml:"models" toml:"models"`
	Groups []GroupSpec `json:"groups,omitempty" yaml:"groups,omitempty" toml:"groups,omitempty"`
}
