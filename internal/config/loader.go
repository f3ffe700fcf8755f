package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"mlxhub/internal/common/fsutil"
	"mlxhub/pkg/types"
)

// Defaults applied by Load when the file leaves fields unset.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8800
	DefaultStartingPort  = 5005
	DefaultWorkerCommand = "mlx-openai-server"
	DefaultLogPath       = "~/.mlxhub"
)

// Load reads a hub configuration file based on its extension and validates it.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (types.HubConfig, error) {
	var cfg types.HubConfig
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *types.HubConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ModelStartingPort == 0 {
		cfg.ModelStartingPort = DefaultStartingPort
	}
	if cfg.WorkerCommand == "" {
		cfg.WorkerCommand = DefaultWorkerCommand
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath
	}
	if p, err := fsutil.ExpandHome(cfg.LogPath); err == nil {
		cfg.LogPath = p
	}
	for i := range cfg.Models {
		if cfg.Models[i].Host == "" {
			cfg.Models[i].Host = cfg.Host
		}
		if cfg.Models[i].Command == "" {
			cfg.Models[i].Command = cfg.WorkerCommand
		}
	}
}

// Validate checks structural invariants the hub core relies on: unique
// non-empty worker names, model paths present, explicit ports pairwise
// distinct, and group references resolving to a defined group.
func Validate(cfg types.HubConfig) error {
	if len(cfg.Models) == 0 {
		return fmt.Errorf("config defines no models")
	}
	groups := make(map[string]bool, len(cfg.Groups))
	for _, g := range cfg.Groups {
		if g.Name == "" {
			return fmt.Errorf("group with empty name")
		}
		if groups[g.Name] {
			return fmt.Errorf("duplicate group %q", g.Name)
		}
		if g.MaxLoaded < 0 {
			return fmt.Errorf("group %q: negative max_loaded", g.Name)
		}
		if g.IdleUnloadTriggerMin < 0 {
			return fmt.Errorf("group %q: negative idle_unload_trigger_min", g.Name)
		}
		groups[g.Name] = true
	}
	names := make(map[string]bool, len(cfg.Models))
	ports := make(map[int]string)
	for _, m := range cfg.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name")
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		names[m.Name] = true
		if m.ModelPath == "" {
			return fmt.Errorf("model %q: model_path is required", m.Name)
		}
		if m.Port < 0 || m.Port > 65535 {
			return fmt.Errorf("model %q: port %d out of range", m.Name, m.Port)
		}
		if m.Port != 0 {
			if other, taken := ports[m.Port]; taken {
				return fmt.Errorf("model %q: port %d already claimed by %q", m.Name, m.Port, other)
			}
			ports[m.Port] = m.Name
		}
		if m.Group != "" && !groups[m.Group] {
			return fmt.Errorf("model %q: unknown group %q", m.Name, m.Group)
		}
	}
	return nil
}
