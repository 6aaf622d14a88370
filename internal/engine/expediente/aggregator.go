// Package expediente assembles the read-only case file of a solicitud and
// fills in its scoring, alert and metric blocks.
package expediente

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/metrics"
	"motocredito-workers/internal/engine/alerts"
	"motocredito-workers/internal/engine/decision"
	"motocredito-workers/internal/engine/scoring"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Sources fetched concurrently for one expediente.
const (
	SourceTitular      = "titular"
	SourceFiador       = "fiador"
	SourceVehiculo     = "vehiculo"
	SourceReferencias  = "referencias"
	SourceHistorial    = "historial"
	SourceEvaluaciones = "evaluaciones"
	SourceDocumentos   = "documentos"
	SourceTerminos     = "terminos"
)

// Assembly outcomes, used as the metric label.
const (
	OutcomeComplete    = "completo"
	OutcomePartial     = "parcial"
	OutcomeMissingCore = "sin_entidad_principal"
	OutcomeCancelled   = "cancelado"
	OutcomeError       = "error"
)

// Presigner turns a storage key into a temporary download URL.
type Presigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Aggregator struct {
	def        *workflow.Definition
	gateway    repository.Gateway
	scoring    *scoring.Engine
	decision   *decision.Engine
	presigner  Presigner
	presignTTL time.Duration
	tracer     trace.Tracer
	now        func() time.Time
	logger     logger.Logger
}

type Option func(*Aggregator)

func WithPresigner(p Presigner, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.presigner = p
		a.presignTTL = ttl
	}
}

func WithTracer(t trace.Tracer) Option { return func(a *Aggregator) { a.tracer = t } }

// WithClock fixes the time used for alerts, metrics and FechaGeneracion.
func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func NewAggregator(def *workflow.Definition, gw repository.Gateway, log logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		def:        def,
		gateway:    gw,
		scoring:    scoring.NewEngine(def),
		decision:   decision.NewEngine(def),
		presignTTL: 15 * time.Minute,
		tracer:     otel.Tracer("motocredito-workers/expediente"),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     log.WithFields(map[string]interface{}{"component": "expediente"}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fetched collects the fan-out results. Each goroutine writes its own
// field; failures go through fail.
type fetched struct {
	titular      *models.Cliente
	fiador       *models.Cliente
	vehiculo     *models.Vehiculo
	referencias  []models.Referencia
	historial    []models.HistorialEstado
	evaluaciones []models.Evaluacion
	documentos   []models.DocumentoProceso
	terminos     *models.TerminosAprobados

	mu       sync.Mutex
	failures map[string]error
}

func (f *fetched) fail(source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[source] = err
}

func (f *fetched) failedSources() []string {
	out := make([]string, 0, len(f.failures))
	for s := range f.failures {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Assemble loads solicitud id and everything tied to it. Errors are
// returned only when the solicitud itself cannot be loaded or ctx ends;
// any other failure yields a best-effort expediente with DatosCompletos
// false and the reason in ErrorCarga.
func (a *Aggregator) Assemble(ctx context.Context, id string) (*models.ExpedienteCompleto, error) {
	started := time.Now()
	ctx, span := a.tracer.Start(ctx, "expediente.Assemble", trace.WithAttributes(attribute.String("solicitud.id", id)))
	defer span.End()

	exp, outcome, err := a.assemble(ctx, id)
	metrics.AssemblyDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.String("expediente.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return exp, nil
}

func (a *Aggregator) assemble(ctx context.Context, id string) (*models.ExpedienteCompleto, string, error) {
	log := a.logger.WithFields(map[string]interface{}{"solicitudId": id})

	if err := ctx.Err(); err != nil {
		return nil, OutcomeCancelled, apperrors.NewCancelledError("assemble expediente", err)
	}

	sol, err := a.gateway.GetApplication(ctx, id)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, OutcomeCancelled, apperrors.NewCancelledError("assemble expediente", ctx.Err())
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, OutcomeError, apperrors.NewSolicitudNotFoundError(id)
		default:
			return nil, OutcomeError, apperrors.NewRepositoryError("get solicitud", err)
		}
	}

	f := a.fanOut(ctx, sol)
	if err := ctx.Err(); err != nil {
		return nil, OutcomeCancelled, apperrors.NewCancelledError("assemble expediente", err)
	}

	now := a.now()
	exp := &models.ExpedienteCompleto{
		Solicitud:         *sol,
		Titular:           f.titular,
		Fiador:            f.fiador,
		Vehiculo:          f.vehiculo,
		Referencias:       nonNil(f.referencias),
		Historial:         nonNil(f.historial),
		Evaluaciones:      nonNil(f.evaluaciones),
		Documentos:        a.presign(ctx, nonNil(f.documentos), log),
		TerminosAprobados: f.terminos,
		DatosCompletos:    true,
		FechaGeneracion:   now,
	}

	exp.Alertas = alerts.Evaluate(alerts.Input{
		Solicitud:   *sol,
		Titular:     f.titular,
		Fiador:      f.fiador,
		Referencias: exp.Referencias,
		Now:         now,
	})
	exp.Metricas = ComputeMetricas(a.def, *sol, exp.Historial, now)

	if coreErr := a.missingCore(sol, f); coreErr != nil {
		if others := f.failedSources(); len(others) > 0 {
			coreErr.Details += "; also failed: " + strings.Join(others, ",")
		}
		exp.ResumenEvaluacion = a.conservativeResumen()
		exp.DatosCompletos = false
		exp.CodigoError = string(coreErr.Code)
		exp.ErrorCarga = coreErr.Error()
		exp.Alertas.RequiereAtencionUrgente = true
		log.Warn("expediente missing core entity", map[string]interface{}{"error": coreErr.Details})
		return exp, OutcomeMissingCore, nil
	}

	in := scoring.Input{
		Solicitud:    *sol,
		Titular:      f.titular,
		Fiador:       f.fiador,
		Vehiculo:     f.vehiculo,
		Referencias:  exp.Referencias,
		Evaluaciones: exp.Evaluaciones,
		Now:          now,
	}
	exp.ResumenEvaluacion = a.resumen(in)
	metrics.ConsolidatedScore.Observe(float64(exp.ResumenEvaluacion.ScoreConsolidado))

	if len(f.failures) > 0 {
		sources := f.failedSources()
		partial := apperrors.NewPartialAggregationError(sources, f.failures[sources[0]])
		exp.DatosCompletos = false
		exp.CodigoError = string(partial.Code)
		exp.ErrorCarga = partial.Error()
		exp.Alertas.RequiereAtencionUrgente = true
		if exp.ResumenEvaluacion.NivelRiesgoCalculado != models.RiesgoMuyAlto {
			exp.ResumenEvaluacion.NivelRiesgoCalculado = models.RiesgoAlto
		}
		log.Warn("expediente assembled with missing sources", map[string]interface{}{"sources": strings.Join(sources, ",")})
		return exp, OutcomePartial, nil
	}

	return exp, OutcomeComplete, nil
}

// fanOut issues the independent fetches concurrently. Fetch errors are
// recorded, never returned, so one failure does not cancel the others.
func (a *Aggregator) fanOut(ctx context.Context, sol *models.Solicitud) *fetched {
	f := &fetched{failures: map[string]error{}}
	var g errgroup.Group

	run := func(source string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			ctx, span := a.tracer.Start(ctx, "expediente.fetch."+source)
			defer span.End()
			if err := fn(ctx); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				f.fail(source, err)
			}
			return nil
		})
	}

	run(SourceTitular, func(ctx context.Context) (err error) {
		f.titular, err = a.gateway.GetPerson(ctx, sol.ClienteID)
		return err
	})
	if sol.FiadorID != "" {
		run(SourceFiador, func(ctx context.Context) (err error) {
			f.fiador, err = a.gateway.GetPerson(ctx, sol.FiadorID)
			return err
		})
	}
	run(SourceVehiculo, func(ctx context.Context) (err error) {
		f.vehiculo, err = a.gateway.GetVehicle(ctx, sol.VehiculoID)
		return err
	})
	run(SourceReferencias, func(ctx context.Context) (err error) {
		f.referencias, err = a.gateway.GetReferences(ctx, sol.ReferenciaIDs)
		return err
	})
	run(SourceHistorial, func(ctx context.Context) (err error) {
		f.historial, err = a.gateway.GetHistory(ctx, sol.ID)
		return err
	})
	run(SourceEvaluaciones, func(ctx context.Context) (err error) {
		f.evaluaciones, err = a.gateway.GetEvaluations(ctx, sol.ID)
		return err
	})
	run(SourceDocumentos, func(ctx context.Context) (err error) {
		f.documentos, err = a.gateway.GetDocuments(ctx, sol.ID)
		return err
	})
	run(SourceTerminos, func(ctx context.Context) error {
		t, err := a.gateway.GetApprovedTerms(ctx, sol.ID)
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil
		}
		f.terminos = t
		return err
	})

	_ = g.Wait()
	return f
}

// missingCore reports an absent titular or vehiculo and removes them from
// the partial failure set.
func (a *Aggregator) missingCore(sol *models.Solicitud, f *fetched) *apperrors.StandardError {
	check := func(source, id string, found bool) *apperrors.StandardError {
		if _, failed := f.failures[source]; failed || !found {
			delete(f.failures, source)
			return apperrors.NewMissingCoreEntityError(source, id)
		}
		return nil
	}
	if err := check(SourceTitular, sol.ClienteID, f.titular != nil); err != nil {
		return err
	}
	return check(SourceVehiculo, sol.VehiculoID, f.vehiculo != nil)
}

func (a *Aggregator) resumen(in scoring.Input) models.ResumenEvaluacion {
	res := a.scoring.Evaluate(in)
	rec := a.decision.Recommend(res.Consolidado, decision.FactorsFrom(in, res.Breakdown))
	return models.ResumenEvaluacion{
		PorcentajeDocumental:       res.Breakdown.Documental,
		PorcentajeGarantes:         res.Breakdown.Garantes,
		PorcentajeEntrevista:       res.Breakdown.Entrevista,
		PorcentajeReferencias:      res.Breakdown.Referencias,
		PorcentajeFinanciero:       res.Breakdown.Financiero,
		ScoreConsolidado:           res.Consolidado,
		Banda:                      string(a.def.Thresholds.Band(res.Consolidado)),
		Criterios:                  res.Criterios,
		NivelRiesgoCalculado:       rec.NivelRiesgo,
		ProbabilidadAprobacion:     rec.ProbabilidadAprobacion,
		RecomendacionSistema:       rec.Decision,
		Confianza:                  rec.Confianza,
		Fortalezas:                 rec.Fortalezas,
		Debilidades:                rec.Debilidades,
		Riesgos:                    rec.Riesgos,
		Condiciones:                rec.Condiciones,
		ProbabilidadIncumplimiento: rec.ProbabilidadIncumplimiento,
	}
}

// conservativeResumen is used when the expediente cannot be scored.
func (a *Aggregator) conservativeResumen() models.ResumenEvaluacion {
	return models.ResumenEvaluacion{
		Criterios:                  scoring.Criteria(scoring.Breakdown{}, a.def.Weights),
		NivelRiesgoCalculado:       models.RiesgoAlto,
		RecomendacionSistema:       models.RecomendacionCondicional,
		ProbabilidadIncumplimiento: 20,
		Fortalezas:                 []string{},
		Debilidades:                []string{"Expediente incompleto"},
		Riesgos:                    []string{"Información principal no disponible"},
		Condiciones:                []string{"Completar los datos del titular y del vehículo antes de decidir"},
	}
}

// presign fills URL for documents with a storage key. A failed presign
// leaves the URL empty.
func (a *Aggregator) presign(ctx context.Context, docs []models.DocumentoProceso, log logger.Logger) []models.DocumentoProceso {
	if a.presigner == nil {
		return docs
	}
	for i := range docs {
		if docs[i].ClaveAlmacenamiento == "" {
			continue
		}
		url, err := a.presigner.PresignedURL(ctx, docs[i].ClaveAlmacenamiento, a.presignTTL)
		if err != nil {
			log.Warn("failed to presign document", map[string]interface{}{
				"documentoId": docs[i].ID,
				"error":       err,
			})
			continue
		}
		docs[i].URL = url
	}
	return docs
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
