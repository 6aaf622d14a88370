// Package api serves the expediente and transition endpoints over HTTP,
// plus a websocket stream of transition events.
package api

import (
	"context"
	"net/http"
	"time"

	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/engine/statemachine"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/report"
	"motocredito-workers/internal/repository"
	"motocredito-workers/internal/search"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ExpedienteAssembler interface {
	Assemble(ctx context.Context, id string) (*models.ExpedienteCompleto, error)
}

type TransitionApplier interface {
	ApplyTransition(ctx context.Context, id string, next models.Estado, actor, reason string) (*statemachine.TransitionResult, error)
	AllowedTransitions(current models.Estado) []models.Estado
}

type ReportExporter interface {
	Export(ctx context.Context, id string) (*report.Report, error)
}

type ExpedienteIndex interface {
	IndexBestEffort(ctx context.Context, exp *models.ExpedienteCompleto)
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// CheckFunc is one readiness probe.
type CheckFunc func(ctx context.Context) error

// Dependencies wires the router. Index, Reports and Events are optional;
// their routes answer 503 when unset.
type Dependencies struct {
	Gateway     repository.Gateway
	Expedientes ExpedienteAssembler
	Transitions TransitionApplier
	Reports     ReportExporter
	Index       ExpedienteIndex
	Events      repository.EventSubscriber
	Checks      map[string]CheckFunc
	MetricsPath string
	Version     string
	Logger      logger.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Dependencies) http.Handler {
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	log := deps.Logger.WithFields(map[string]interface{}{"component": "api"})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(log))
	r.Use(middleware.Recoverer)

	health := &HealthHandler{checks: deps.Checks, version: deps.Version}
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Method(http.MethodGet, deps.MetricsPath, promhttp.Handler())

	h := &Handler{deps: deps, logger: log}
	streams := &EventStream{events: deps.Events, logger: log}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/expedientes", h.SearchExpedientes)

		r.Route("/solicitudes/{id}", func(r chi.Router) {
			r.With(middleware.Timeout(30*time.Second)).Get("/expediente", h.GetExpediente)
			r.With(middleware.Timeout(60*time.Second)).Get("/expediente/reporte", h.ExportReport)
			r.Get("/transiciones", h.AllowedTransitions)
			r.Post("/transiciones", h.ApplyTransition)
			r.Get("/eventos", streams.Serve)
		})
	})

	return r
}
