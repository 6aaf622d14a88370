// internal/workers/credito/evaluate-credit/models.go
package evaluatecredit

import "motocredito-workers/internal/models"

type Input struct {
	SolicitudID string `json:"solicitudId"`
}

type Output struct {
	SolicitudID            string               `json:"solicitudId"`
	ScoreDocumental        int                  `json:"scoreDocumental"`
	ScoreGarantes          int                  `json:"scoreGarantes"`
	ScoreEntrevista        int                  `json:"scoreEntrevista"`
	ScoreReferencias       int                  `json:"scoreReferencias"`
	ScoreFinanciero        int                  `json:"scoreFinanciero"`
	ScoreFinal             int                  `json:"scoreFinal"`
	Recomendacion          models.Recomendacion `json:"recomendacion"`
	Confianza              int                  `json:"confianza"`
	NivelRiesgo            models.NivelRiesgo   `json:"nivelRiesgo"`
	ProbabilidadAprobacion int                  `json:"probabilidadAprobacion"`
	Condiciones            []string             `json:"condiciones"`
	DatosCompletos         bool                 `json:"datosCompletos"`
}
