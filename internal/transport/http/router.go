// Package httptransport assembles the HTTP surface: shared middleware, the
// protected form pages, the admin API and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spamgate/internal/platform/metrics"
	"spamgate/pkg/platform/httputil"
	"spamgate/pkg/platform/middleware/admin"
	authmw "spamgate/pkg/platform/middleware/auth"
	"spamgate/pkg/platform/middleware/logging"
	"spamgate/pkg/platform/middleware/metadata"
	"spamgate/pkg/platform/middleware/request"
	"spamgate/pkg/platform/middleware/requesttime"
)

// Routes mounts a group of routes on a router.
type Routes interface {
	Register(r chi.Router)
}

// RoutesFunc adapts a function to Routes.
type RoutesFunc func(r chi.Router)

func (f RoutesFunc) Register(r chi.Router) { f(r) }

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger        *slog.Logger
	AdminToken    string
	Sessions      authmw.SessionValidator
	SessionCookie string
	// Public routes see the signed-in user, if any.
	Public []Routes
	// Admin routes are mounted under /admin behind the admin token.
	Admin  []Routes
	Health map[string]HealthCheck
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
}

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(logging.Requests(cfg.Logger))
	r.Use(cfg.Metrics.LatencyMiddleware)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", metricsHandler(cfg.Gatherer))

	r.Group(func(r chi.Router) {
		if cfg.Sessions != nil {
			r.Use(authmw.LoadSession(cfg.Sessions, cfg.SessionCookie, cfg.Logger))
		}
		for _, routes := range cfg.Public {
			routes.Register(r)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		for _, routes := range cfg.Admin {
			routes.Register(r)
		}
	})
	return r
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": results})
	}
}
