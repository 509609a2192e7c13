package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/visadesk/visadesk/internal/applications"
	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/internal/observability"
	"github.com/visadesk/visadesk/internal/platform/httpx"
	"github.com/visadesk/visadesk/jobs"
)

// ReadinessCheck probes one dependency for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Auth                 authz.Middleware
	ApplicationsHandler  *applications.Handler
	NotificationsHandler *notify.Handler
	PermissionsHandler   *authz.PermissionsHandler
	JobHandler           *jobs.Handler
	Readiness            []ReadinessCheck
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(requestLogger(os.Stdout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", readinessHandler(params.Readiness, logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		if params.ApplicationsHandler != nil {
			r.Route("/applications", params.ApplicationsHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			params.PermissionsHandler.MountRoutes(r)
		}
	})

	return r
}

// readinessHandler runs every check concurrently and reports the failures.
func readinessHandler(checks []ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]string, len(checks))
		g, gctx := errgroup.WithContext(ctx)
		for i, check := range checks {
			i, check := i, check
			g.Go(func() error {
				if err := check.Check(gctx); err != nil {
					logger.Warn("readiness check failed", slog.String("check", check.Name), slog.Any("error", err))
					results[i] = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		failed := make(map[string]string)
		for i, check := range checks {
			if results[i] != "" {
				failed[check.Name] = results[i]
			}
		}
		if len(failed) > 0 {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
