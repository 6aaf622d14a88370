// internal/models/proceso.go
package models

import "time"

// HistorialEstado is an append-only record of one transition.
type HistorialEstado struct {
	ID             string    `json:"id"`
	SolicitudID    string    `json:"solicitudId"`
	EstadoAnterior Estado    `json:"estadoAnterior"`
	EstadoNuevo    Estado    `json:"estadoNuevo"`
	Actor          string    `json:"actor"`
	Motivo         string    `json:"motivo,omitempty"`
	Fecha          time.Time `json:"fecha"`
}

type TipoEvaluacion string

const (
	EvaluacionEntrevista TipoEvaluacion = "entrevista"
	EvaluacionDocumental TipoEvaluacion = "documental"
	EvaluacionGarantes   TipoEvaluacion = "garantes"
	EvaluacionDecision   TipoEvaluacion = "decision"
)

type EstadoEvaluacion string

const (
	EvaluacionPendiente  EstadoEvaluacion = "pendiente"
	EvaluacionEnProceso  EstadoEvaluacion = "en_proceso"
	EvaluacionCompletada EstadoEvaluacion = "completada"
	EvaluacionObservada  EstadoEvaluacion = "observada"
	EvaluacionRechazada  EstadoEvaluacion = "rechazada"
)

// Evaluacion is one evaluation act on a solicitud.
type Evaluacion struct {
	ID            string           `json:"id"`
	SolicitudID   string           `json:"solicitudId"`
	Tipo          TipoEvaluacion   `json:"tipo"`
	EvaluadorID   string           `json:"evaluadorId"`
	Puntaje       *int             `json:"puntaje,omitempty"`
	Estado        EstadoEvaluacion `json:"estado"`
	Observaciones string           `json:"observaciones,omitempty"`
	FechaInicio   time.Time        `json:"fechaInicio"`
	FechaFin      *time.Time       `json:"fechaFin,omitempty"`
}

// DocumentoProceso is an uploaded or generated artifact.
type DocumentoProceso struct {
	ID                  string           `json:"id"`
	SolicitudID         string           `json:"solicitudId"`
	Tipo                string           `json:"tipo"`
	Nombre              string           `json:"nombre"`
	ClaveAlmacenamiento string           `json:"claveAlmacenamiento"`
	URL                 string           `json:"url,omitempty"`
	EstadoValidacion    EstadoValidacion `json:"estadoValidacion"`
	Version             int              `json:"version"`
	FechaSubida         time.Time        `json:"fechaSubida"`
}

// EventoTransicion is published after a transition commits.
type EventoTransicion struct {
	SolicitudID    string     `json:"solicitudId"`
	EstadoAnterior Estado     `json:"estadoAnterior"`
	EstadoNuevo    Estado     `json:"estadoNuevo"`
	Actor          string     `json:"actor"`
	Motivo         string     `json:"motivo,omitempty"`
	Fecha          time.Time  `json:"fecha"`
	FechaLimite    *time.Time `json:"fechaLimite,omitempty"`
}
