// Package statemachine validates and applies lifecycle transitions of a
// solicitud against the workflow definition.
package statemachine

import (
	"context"
	stderrors "errors"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/metrics"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/google/uuid"
)

// ValidateTransition reports whether next is an exit of current in the
// default workflow definition. It has no side effects.
func ValidateTransition(current, next models.Estado) bool {
	return workflow.Default().CanTransition(current, next)
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	Solicitud      models.Solicitud `json:"solicitud"`
	EstadoAnterior models.Estado    `json:"estadoAnterior"`
	FechaCambio    time.Time        `json:"fechaCambio"`
	FechaLimite    *time.Time       `json:"fechaLimite,omitempty"`
}

// Dispatcher runs the best-effort actions that follow a committed transition.
type Dispatcher interface {
	Dispatch(evt models.EventoTransicion)
}

type Machine struct {
	def       *workflow.Definition
	gateway   repository.Gateway
	locker    repository.Locker
	auth      Authorizer
	followUps Dispatcher
	lockTTL   time.Duration
	now       func() time.Time
	logger    logger.Logger
}

// Option customizes a Machine.
type Option func(*Machine)

func WithAuthorizer(a Authorizer) Option { return func(m *Machine) { m.auth = a } }

func WithFollowUps(d Dispatcher) Option { return func(m *Machine) { m.followUps = d } }

func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

func WithLockTTL(ttl time.Duration) Option { return func(m *Machine) { m.lockTTL = ttl } }

func NewMachine(def *workflow.Definition, gw repository.Gateway, locker repository.Locker, log logger.Logger, opts ...Option) *Machine {
	m := &Machine{
		def:     def,
		gateway: gw,
		locker:  locker,
		auth:    AllowAll{},
		lockTTL: 10 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  log.WithFields(map[string]interface{}{"component": "statemachine"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) ValidateTransition(current, next models.Estado) bool {
	return m.def.CanTransition(current, next)
}

func (m *Machine) AllowedTransitions(current models.Estado) []models.Estado {
	return m.def.AllowedTransitions(current)
}

// ApplyTransition moves solicitud id to next. The estado update and the
// history row are written as one unit; follow-up actions run after the
// commit and never undo it.
func (m *Machine) ApplyTransition(ctx context.Context, id string, next models.Estado, actor, reason string) (*TransitionResult, error) {
	log := m.logger.WithFields(map[string]interface{}{
		"solicitudId": id,
		"to":          string(next),
		"actor":       actor,
	})

	if !next.Valid() {
		return nil, apperrors.NewInvalidTransitionError("", string(next))
	}

	release, err := m.locker.Acquire(ctx, id, m.lockTTL)
	if err != nil {
		if stderrors.Is(err, repository.ErrLockHeld) {
			metrics.Transitions.WithLabelValues("", string(next), "conflict").Inc()
			return nil, apperrors.NewConcurrencyConflictError(id, err)
		}
		return nil, m.storageError(ctx, "acquire lock", err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Warn("failed to release transition lock", map[string]interface{}{"error": err})
		}
	}()

	sol, err := m.gateway.GetApplication(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewSolicitudNotFoundError(id)
		}
		return nil, m.storageError(ctx, "get solicitud", err)
	}

	from := sol.Estado
	if !m.def.CanTransition(from, next) {
		metrics.Transitions.WithLabelValues(string(from), string(next), "rejected").Inc()
		log.Warn("transition rejected", map[string]interface{}{"from": string(from)})
		return nil, apperrors.NewInvalidTransitionError(string(from), string(next))
	}

	if err := m.auth.CanTransition(actor, from, next); err != nil {
		metrics.Transitions.WithLabelValues(string(from), string(next), "denied").Inc()
		return nil, err
	}

	deadline := m.def.Deadline(next, m.now())
	changedAt, err := m.gateway.ApplyTransition(ctx, repository.TransitionWrite{
		SolicitudID:     id,
		Expected:        from,
		ExpectedVersion: sol.Version,
		Nuevo:           next,
		FechaLimite:     deadline,
		Historial: models.HistorialEstado{
			ID:          uuid.New().String(),
			SolicitudID: id,
			Actor:       actor,
			Motivo:      reason,
		},
	})
	if err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			metrics.Transitions.WithLabelValues(string(from), string(next), "conflict").Inc()
			return nil, apperrors.NewConcurrencyConflictError(id, err)
		}
		metrics.Transitions.WithLabelValues(string(from), string(next), "error").Inc()
		return nil, m.storageError(ctx, "apply transition", err)
	}
	metrics.Transitions.WithLabelValues(string(from), string(next), "applied").Inc()

	sol.Estado = next
	sol.FechaLimiteEvaluacion = deadline
	sol.FechaCambioEstado = changedAt
	sol.FechaActualizacion = changedAt
	sol.ActualizadoPor = actor
	sol.Version++

	log.Info("transition applied", map[string]interface{}{
		"from":    string(from),
		"version": sol.Version,
	})

	if m.followUps != nil {
		m.followUps.Dispatch(models.EventoTransicion{
			SolicitudID:    id,
			EstadoAnterior: from,
			EstadoNuevo:    next,
			Actor:          actor,
			Motivo:         reason,
			Fecha:          changedAt,
			FechaLimite:    deadline,
		})
	}

	return &TransitionResult{
		Solicitud:      *sol,
		EstadoAnterior: from,
		FechaCambio:    changedAt,
		FechaLimite:    deadline,
	}, nil
}

func (m *Machine) storageError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.NewCancelledError(op, ctxErr)
	}
	return apperrors.NewRepositoryError(op, err)
}
