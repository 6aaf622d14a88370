// internal/workers/credito/assemble-expediente/models.go
package assembleexpediente

import "motocredito-workers/internal/models"

type Input struct {
	SolicitudID string `json:"solicitudId"`
}

// Output is the slice of the expediente the process gateways route on.
// The full case file stays behind the HTTP API.
type Output struct {
	SolicitudID             string               `json:"solicitudId"`
	Estado                  models.Estado        `json:"estado"`
	DatosCompletos          bool                 `json:"datosCompletos"`
	CodigoError             string               `json:"codigoError,omitempty"`
	ErrorCarga              string               `json:"errorCarga,omitempty"`
	ScoreConsolidado        int                  `json:"scoreConsolidado"`
	Banda                   string               `json:"banda,omitempty"`
	Recomendacion           models.Recomendacion `json:"recomendacion"`
	NivelRiesgo             models.NivelRiesgo   `json:"nivelRiesgo"`
	RequiereAtencionUrgente bool                 `json:"requiereAtencionUrgente"`
	TotalAlertas            int                  `json:"totalAlertas"`
	EtapasCompletadas       int                  `json:"etapasCompletadas"`
}
