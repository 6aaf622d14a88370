// Package repository is the storage boundary of the credit engine: the
// Gateway contract, its PostgreSQL and in-memory implementations, the
// per-solicitud transition lock and the transition event bus.
package repository

import (
	"context"
	"errors"
	"time"

	"motocredito-workers/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned by ApplyTransition when the stored estado or
	// version no longer matches the expected one.
	ErrConflict = errors.New("repository: optimistic concurrency conflict")
)

// TransitionWrite is the single atomic unit of a state change: the
// solicitud update plus its history row.
type TransitionWrite struct {
	SolicitudID     string
	Expected        models.Estado
	ExpectedVersion int
	Nuevo           models.Estado
	FechaLimite     *time.Time
	Historial       models.HistorialEstado
}

// Scores are the per-stage scores persisted on the solicitud.
type Scores struct {
	Documental int
	Garantes   int
	Entrevista int
	Final      int
}

// Gateway fetches and mutates the entities behind an expediente.
type Gateway interface {
	GetApplication(ctx context.Context, id string) (*models.Solicitud, error)
	GetPerson(ctx context.Context, id string) (*models.Cliente, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehiculo, error)
	// GetReferences returns the references that exist; unknown ids are skipped.
	GetReferences(ctx context.Context, ids []string) ([]models.Referencia, error)
	GetHistory(ctx context.Context, solicitudID string) ([]models.HistorialEstado, error)
	GetEvaluations(ctx context.Context, solicitudID string) ([]models.Evaluacion, error)
	GetDocuments(ctx context.Context, solicitudID string) ([]models.DocumentoProceso, error)
	// GetApprovedTerms returns ErrNotFound when the committee has not set terms.
	GetApprovedTerms(ctx context.Context, solicitudID string) (*models.TerminosAprobados, error)

	// ApplyTransition updates estado/deadline and appends the history row
	// atomically. It returns the server-assigned timestamp of the change.
	ApplyTransition(ctx context.Context, w TransitionWrite) (time.Time, error)
	UpdateScores(ctx context.Context, solicitudID string, s Scores) error
	// ListOverdue returns solicitudes whose deadline is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Solicitud, error)
}
