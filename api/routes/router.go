package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/posync/api/controllers"
	"github.com/angelmondragon/posync/api/middleware"
	"github.com/angelmondragon/posync/pkg/config"
	"github.com/angelmondragon/posync/pkg/logger"
)

// Params wires the ops listener. DB and Redis back the readiness probe.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Ledger   controllers.ControlLister
	LastRuns controllers.LastRunReader
	Tenants  []string
	Gatherer prometheus.Gatherer
}

// NewRouter builds the ops HTTP surface: health probes, prometheus metrics and read-only
// ledger triage endpoints.
func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	ready := controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis)
	r.Get("/healthz", ready)
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", ready)
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/ops/v1", func(r chi.Router) {
		if p.Ledger != nil {
			r.Get("/controls", controllers.ListControls(p.Ledger, p.Logger))
		}
		if p.LastRuns != nil {
			r.Get("/tenants", controllers.ListTenants(p.Config.App.Env, p.Tenants, p.LastRuns, p.Logger))
		}
	})

	return r
}
