package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	draftshttp "github.com/odyssey-erp/quotewizard/internal/drafts/http"
	"github.com/odyssey-erp/quotewizard/internal/observability"
	"github.com/odyssey-erp/quotewizard/internal/platform/httpx"
	"github.com/odyssey-erp/quotewizard/jobs"
)

// Check is a named readiness probe, e.g. a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	DraftHandler *draftshttp.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
	Checks       []Check
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(params.Checks, params.Logger))

	if params.DraftHandler != nil {
		r.Route("/api/v1", params.DraftHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

func readiness(checks []Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		ready := true
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				if logger != nil {
					logger.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
				}
				status[c.Name] = "down"
				ready = false
				continue
			}
			status[c.Name] = "ok"
		}
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, status)
	}
}
