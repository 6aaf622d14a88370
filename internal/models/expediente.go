// internal/models/expediente.go
package models

import "time"

type Recomendacion string

const (
	RecomendacionAprobar     Recomendacion = "aprobar"
	RecomendacionRechazar    Recomendacion = "rechazar"
	RecomendacionCondicional Recomendacion = "condicional"
)

type NivelRiesgo string

const (
	RiesgoBajo    NivelRiesgo = "bajo"
	RiesgoMedio   NivelRiesgo = "medio"
	RiesgoAlto    NivelRiesgo = "alto"
	RiesgoMuyAlto NivelRiesgo = "muy_alto"
)

type EstadoCriterio string

const (
	CriterioFavorable    EstadoCriterio = "favorable"
	CriterioNeutral      EstadoCriterio = "neutral"
	CriterioDesfavorable EstadoCriterio = "desfavorable"
)

// CriterioEvaluacion is one weighted criterion of the consolidated score.
type CriterioEvaluacion struct {
	Nombre  string         `json:"nombre"`
	Puntaje int            `json:"puntaje"`
	Peso    int            `json:"peso"`
	Estado  EstadoCriterio `json:"estado"`
}

// ResumenEvaluacion is the scoring and decision block of an expediente.
type ResumenEvaluacion struct {
	PorcentajeDocumental       int                  `json:"porcentajeDocumental"`
	PorcentajeGarantes         int                  `json:"porcentajeGarantes"`
	PorcentajeEntrevista       int                  `json:"porcentajeEntrevista"`
	PorcentajeReferencias      int                  `json:"porcentajeReferencias"`
	PorcentajeFinanciero       int                  `json:"porcentajeFinanciero"`
	ScoreConsolidado           int                  `json:"scoreConsolidado"`
	Banda                      string               `json:"banda,omitempty"`
	Criterios                  []CriterioEvaluacion `json:"criterios"`
	NivelRiesgoCalculado       NivelRiesgo          `json:"nivelRiesgoCalculado"`
	ProbabilidadAprobacion     int                  `json:"probabilidadAprobacion"`
	RecomendacionSistema       Recomendacion        `json:"recomendacionSistema"`
	Confianza                  int                  `json:"confianza"`
	Fortalezas                 []string             `json:"fortalezas"`
	Debilidades                []string             `json:"debilidades"`
	Riesgos                    []string             `json:"riesgos"`
	Condiciones                []string             `json:"condiciones"`
	ProbabilidadIncumplimiento float64              `json:"probabilidadIncumplimiento"`
}

// Alertas are derived from the solicitud, the parties and the clock.
type Alertas struct {
	DocumentosVencidos      []string `json:"documentosVencidos"`
	TiemposExcedidos        []string `json:"tiemposExcedidos"`
	Inconsistencias         []string `json:"inconsistencias"`
	Anomalias               []string `json:"anomalias"`
	RequiereAtencionUrgente bool     `json:"requiereAtencionUrgente"`
}

// Metricas describe how the process has moved so far.
type Metricas struct {
	TiempoPromedioRespuestaHoras float64 `json:"tiempoPromedioRespuestaHoras"`
	EficienciaProceso            int     `json:"eficienciaProceso"`
	TiempoEnEstadoActualHoras    float64 `json:"tiempoEnEstadoActualHoras"`
	EtapasCompletadas            int     `json:"etapasCompletadas"`
}

// ExpedienteCompleto is the assembled, read-only case file. It is
// recomputed on every load.
type ExpedienteCompleto struct {
	Solicitud         Solicitud          `json:"solicitud"`
	Titular           *Cliente           `json:"titular,omitempty"`
	Fiador            *Cliente           `json:"fiador,omitempty"`
	Vehiculo          *Vehiculo          `json:"vehiculo,omitempty"`
	Referencias       []Referencia       `json:"referencias"`
	Historial         []HistorialEstado  `json:"historial"`
	Evaluaciones      []Evaluacion       `json:"evaluaciones"`
	Documentos        []DocumentoProceso `json:"documentos"`
	TerminosAprobados *TerminosAprobados `json:"terminosAprobados,omitempty"`

	ResumenEvaluacion ResumenEvaluacion `json:"resumenEvaluacion"`
	Alertas           Alertas           `json:"alertas"`
	Metricas          Metricas          `json:"metricas"`

	DatosCompletos  bool      `json:"datosCompletos"`
	ErrorCarga      string    `json:"errorCarga,omitempty"`
	CodigoError     string    `json:"codigoError,omitempty"`
	FechaGeneracion time.Time `json:"fechaGeneracion"`
}
