package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quorum/internal/membership/handler"
	"quorum/internal/platform/metrics"
	"quorum/internal/platform/middleware"
	"quorum/pkg/platform/middleware/metadata"
	"quorum/pkg/platform/middleware/requesttime"
)

// RouterConfig carries the dependencies the HTTP surface needs.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Membership     handler.Service
	RequestTimeout time.Duration
}

// NewRouter assembles the full HTTP routing tree with the standard
// middleware chain applied to every route.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		handler.New(cfg.Membership, cfg.Logger).Register(r)
	})

	return r
}
