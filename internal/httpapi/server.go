package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlxhub/pkg/types"
)

// Service defines the hub operations required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Start(name string) (evicted string, err error)
	Stop(name string) error
	Load(name string) (evicted string, err error)
	Unload(name string) error
	StopAll() error
	RecordActivity(name string, at time.Time) error
	ReloadConfig() error
	RequestShutdown()
}

// NewMux builds the control/status API router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/hub", func(r chi.Router) {
		if statusPageEnabled {
			r.Get("/", serveStatusPage)
		}

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})

		r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.ReloadConfig(); err != nil {
				writeHubError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, svc.Status())
		})

		r.Post("/shutdown", func(w http.ResponseWriter, r *http.Request) {
			// Reply first; the daemon tears down after the flag flips.
			writeJSON(w, http.StatusOK, types.ActionResponse{Detail: "shutdown requested"})
			svc.RequestShutdown()
		})

		r.Route("/models", func(r chi.Router) {
			r.Post("/stop-all", func(w http.ResponseWriter, r *http.Request) {
				if err := svc.StopAll(); err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{Detail: "stop requested for all workers"})
			})

			r.Post("/{name}/start", func(w http.ResponseWriter, r *http.Request) {
				name := chi.URLParam(r, "name")
				evicted, err := svc.Start(name)
				if err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{
					Detail:  "start requested for '" + name + "'",
					Evicted: evicted,
				})
			})

			r.Post("/{name}/stop", func(w http.ResponseWriter, r *http.Request) {
				name := chi.URLParam(r, "name")
				if err := svc.Stop(name); err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{Detail: "stop requested for '" + name + "'"})
			})

			r.Post("/{name}/load", func(w http.ResponseWriter, r *http.Request) {
				name := chi.URLParam(r, "name")
				evicted, err := svc.Load(name)
				if err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{
					Detail:  "load requested for '" + name + "'",
					Evicted: evicted,
				})
			})

			r.Post("/{name}/unload", func(w http.ResponseWriter, r *http.Request) {
				name := chi.URLParam(r, "name")
				if err := svc.Unload(name); err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{Detail: "unload requested for '" + name + "'"})
			})

			r.Post("/{name}/activity", func(w http.ResponseWriter, r *http.Request) {
				name := chi.URLParam(r, "name")
				if err := svc.RecordActivity(name, time.Now()); err != nil {
					writeHubError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.ActionResponse{Detail: "activity recorded for '" + name + "'"})
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError(err, "encode response")
	}
}
