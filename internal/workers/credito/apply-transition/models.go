// internal/workers/credito/apply-transition/models.go
package applytransition

import (
	"time"

	"motocredito-workers/internal/models"
)

type Input struct {
	SolicitudID string        `json:"solicitudId"`
	Estado      models.Estado `json:"estado"`
	Actor       string        `json:"actor"`
	Motivo      string        `json:"motivo,omitempty"`
}

type Output struct {
	SolicitudID    string           `json:"solicitudId"`
	EstadoAnterior models.Estado    `json:"estadoAnterior"`
	EstadoNuevo    models.Estado    `json:"estadoNuevo"`
	Prioridad      models.Prioridad `json:"prioridad"`
	FechaCambio    time.Time        `json:"fechaCambio"`
	FechaLimite    *time.Time       `json:"fechaLimite,omitempty"`
	Version        int              `json:"version"`
}
