package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	notaryhandler "arkv/internal/notary/handler"
	"arkv/internal/platform/metrics"
	"arkv/internal/platform/middleware"
	"arkv/internal/ratelimit"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/httputil"
	"arkv/pkg/platform/middleware/metadata"
	"arkv/pkg/platform/middleware/requestid"
	"arkv/pkg/platform/middleware/requesttime"
	"arkv/pkg/platform/middleware/version"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router mounts.
type Config struct {
	Notary       *notaryhandler.Handler
	CallbackAuth func(http.Handler) http.Handler
	RateLimit    *ratelimit.Middleware
	Metrics      *metrics.Metrics
	Health       map[string]HealthCheck
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewRouter wires all public endpoints. Transport concerns stay here; the
// notary handler owns the /v1 routes.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(cfg.Metrics.Middleware)

	r.Get("/healthz", healthz(cfg.Health))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(timeout))
		api.Use(version.ExtractVersion(id.APIVersionV1))
		api.Use(cfg.RateLimit.Handler)
		if cfg.Notary != nil {
			cfg.Notary.Register(api, cfg.CallbackAuth)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
