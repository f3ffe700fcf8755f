package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mlxhub/internal/config"
	"mlxhub/internal/httpapi"
	"mlxhub/internal/hub"
)

// shutdownTimeout bounds how long daemon exit waits for worker stops.
const shutdownTimeout = 30 * time.Second

// daemonService adapts the hub for the HTTP layer, adding the config
// re-read that POST /hub/reload triggers. Parsing failures surface as
// ConfigInvalid and leave the fleet untouched.
type daemonService struct {
	*hub.Hub
	configPath string
}

func (d *daemonService) ReloadConfig() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return hub.ErrConfigInvalid(err.Error())
	}
	return d.Hub.Reload(cfg)
}

func main() {
	configPath := flag.String("config", "hub.yaml", "Path to the hub configuration file (yaml/json/toml)")
	addr := flag.String("addr", "", "Override control API listen address, e.g. 127.0.0.1:8800")
	logFormat := flag.String("log-format", "console", "Log output format: console or json")
	flag.Parse()

	logger := newLogger(*logFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config", *configPath).Msg("failed to load config")
	}
	if lvl, perr := zerolog.ParseLevel(cfg.LogLevel); perr == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	h, err := hub.New(hub.Options{
		Config:     cfg,
		ConfigPath: *configPath,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize hub")
	}
	go h.StartInitial()

	svc := &daemonService{Hub: h, configPath: *configPath}
	httpapi.SetLogger(logger)
	httpapi.SetStatusPageEnabled(cfg.EnableStatusPage)
	if cfg.EnableStatusPage {
		httpapi.SetCORSOptions(true, []string{"*"}, []string{"GET", "POST"}, []string{"*"})
	}
	mux := httpapi.NewMux(svc)

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		logger.Info().Str("addr", listen).Int("models", len(cfg.Models)).
			Msg("mlxhubd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Exit on Ctrl+C / SIGTERM or an API-requested shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-h.Done():
		logger.Info().Msg("shutdown requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("worker shutdown incomplete")
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

func newLogger(format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
