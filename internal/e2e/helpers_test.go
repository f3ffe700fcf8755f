package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mlxhub/internal/config"
	"mlxhub/internal/httpapi"
	"mlxhub/internal/hub"
	"mlxhub/pkg/types"
)

// writeWorkerScript writes a stand-in worker binary that runs until
// terminated and returns its path.
func writeWorkerScript(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexec sleep 60\n"), 0o755); err != nil {
		t.Fatalf("write worker script: %v", err)
	}
	return p
}

// writeHubConfig renders a YAML hub config into dir and returns its path.
func writeHubConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "hub.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

// reloadingService is the same adapter the daemon wires between the hub
// core and the HTTP mux: reload re-reads the config file from disk.
type reloadingService struct {
	*hub.Hub
	configPath string
}

func (s *reloadingService) ReloadConfig() error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return hub.ErrConfigInvalid(err.Error())
	}
	return s.Hub.Reload(cfg)
}

// newHubServer loads the config file, boots a hub with an instant readiness
// probe, and serves the control API from an in-process listener.
func newHubServer(t *testing.T, configPath string) (*httptest.Server, *hub.Hub) {
	t.Helper()
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	h, err := hub.New(hub.Options{
		Config:       cfg,
		ConfigPath:   configPath,
		Logger:       zerolog.Nop(),
		PollInterval: 100 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
		StopTimeout:  5 * time.Second,
		ReadyProbe:   func(context.Context, string) bool { return true },
	})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})

	srv := httptest.NewServer(httpapi.NewMux(&reloadingService{Hub: h, configPath: configPath}))
	t.Cleanup(srv.Close)
	return srv, h
}

func getStatus(t *testing.T, srv *httptest.Server) types.StatusResponse {
	t.Helper()
	resp, err := http.Get(srv.URL + "/hub/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func postAction(t *testing.T, srv *httptest.Server, path string) (int, types.ActionResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	var ack types.ActionResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	return resp.StatusCode, ack
}

func findWorker(t *testing.T, st types.StatusResponse, name string) types.WorkerStatus {
	t.Helper()
	for _, w := range st.Workers {
		if w.Name == name {
			return w
		}
	}
	t.Fatalf("worker %q not in status", name)
	return types.WorkerStatus{}
}
