package types

// WorkerStatus summarizes one supervised worker for /hub/status.
type WorkerStatus struct {
	// example: qwen3-8b
	Name string `json:"name" example:"qwen3-8b"`
	Host string `json:"host"`
	// Resolved TCP port the worker binds.
	// example: 5005
	Port       int    `json:"port" example:"5005"`
	JITEnabled bool   `json:"jit_enabled"`
	Group      string `json:"group,omitempty"`
	// Lifecycle state: stopped, starting, running, stopping, crashed, unloading.
	// example: running
	Status string `json:"status" example:"running"`
	// OS process id while a process is owned; zero otherwise.
	PID int `json:"pid,omitempty"`
	// Exit code of the last terminated process, if any.
	ExitCode *int `json:"exit_code,omitempty"`
	// Last spawn/stop/crash error observed for this worker.
	LastError string `json:"last_error,omitempty"`
	// Unix seconds; zero when never started.
	StartedAt    int64 `json:"started_at_unix,omitempty"`
	LastActiveAt int64 `json:"last_active_unix,omitempty"`
	// example: 3600
	UptimeSeconds int64  `json:"uptime_seconds,omitempty" example:"3600"`
	LogPath       string `json:"log_path,omitempty"`
	// Live resource usage sampled from the OS when running.
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	MemoryRSS  uint64  `json:"memory_rss_bytes,omitempty"`
}

// GroupStatus reports occupancy for one configured group.
type GroupStatus struct {
	Name                 string `json:"name"`
	MaxLoaded            int    `json:"max_loaded,omitempty"`
	IdleUnloadTriggerMin int    `json:"idle_unload_trigger_min,omitempty"`
	Running              int    `json:"running"`
	Total                int    `json:"total"`
}

// StatusResponse is the full fleet snapshot returned by GET /hub/status.
type StatusResponse struct {
	Host              string         `json:"host"`
	Port              int            `json:"port"`
	ModelStartingPort int            `json:"model_starting_port"`
	EnableStatusPage  bool           `json:"enable_status_page"`
	StartedAt         int64          `json:"started_at_unix"`
	UptimeSeconds     int64          `json:"uptime_seconds"`
	ServerTimeUnix    int64          `json:"server_time_unix"`
	Workers           []WorkerStatus `json:"workers"`
	Groups            []GroupStatus  `json:"groups"`
}

// ActionResponse acknowledges a mutating control call.
type ActionResponse struct {
	// example: start requested for 'qwen3-8b'
	Detail string `json:"detail" example:"start requested for 'qwen3-8b'"`
	// Name of the group member stopped to admit this one, when eviction ran.
	Evicted string `json:"evicted,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unknown worker 'nope'
	Error string `json:"error" example:"unknown worker 'nope'"`
	// Stable machine-readable error kind.
	// example: not_found
	Kind string `json:"kind,omitempty" example:"not_found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
