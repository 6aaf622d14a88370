// internal/models/solicitud.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prioridad is derived from the financed amount.
type Prioridad string

const (
	PrioridadAlta  Prioridad = "alta"
	PrioridadMedia Prioridad = "media"
	PrioridadBaja  Prioridad = "baja"
)

var (
	montoPrioridadAlta  = decimal.NewFromInt(15000)
	montoPrioridadMedia = decimal.NewFromInt(8000)
)

// PrioridadPorMonto maps a financed amount to a queue priority.
func PrioridadPorMonto(monto decimal.Decimal) Prioridad {
	switch {
	case monto.GreaterThanOrEqual(montoPrioridadAlta):
		return PrioridadAlta
	case monto.GreaterThanOrEqual(montoPrioridadMedia):
		return PrioridadMedia
	default:
		return PrioridadBaja
	}
}

// Solicitud is the credit application aggregate root. The monetary
// terms are the ones requested at intake and are never rewritten; the
// committee's terms live in TerminosAprobados.
type Solicitud struct {
	ID              string    `json:"id"`
	NumeroSolicitud string    `json:"numeroSolicitud"`
	Estado          Estado    `json:"estado"`
	Prioridad       Prioridad `json:"prioridad"`

	ClienteID     string   `json:"clienteId"`
	FiadorID      string   `json:"fiadorId,omitempty"`
	VehiculoID    string   `json:"vehiculoId"`
	ReferenciaIDs []string `json:"referenciasIds"`

	PrecioCompraMoto decimal.Decimal `json:"precioCompraMoto"`
	Inicial          decimal.Decimal `json:"inicial"`
	MontoFinanciado  decimal.Decimal `json:"montoFinanciado"`
	MontoCuota       decimal.Decimal `json:"montoCuota"`
	PlazoQuincenas   int             `json:"plazoQuincenas"`
	TotalAPagar      decimal.Decimal `json:"totalAPagar"`

	ScoreDocumental *int `json:"scoreDocumental,omitempty"`
	ScoreGarantes   *int `json:"scoreGarantes,omitempty"`
	ScoreEntrevista *int `json:"scoreEntrevista,omitempty"`
	ScoreFinal      *int `json:"scoreFinal,omitempty"`

	FechaLimiteEvaluacion    *time.Time `json:"fechaLimiteEvaluacion,omitempty"`
	FechaCambioEstado        time.Time  `json:"fechaCambioEstado"`
	RequiereAtencionEspecial bool       `json:"requiereAtencionEspecial"`
	Observaciones            string     `json:"observaciones,omitempty"`

	Version            int       `json:"version"`
	CreadoPor          string    `json:"creadoPor,omitempty"`
	FechaCreacion      time.Time `json:"fechaCreacion"`
	ActualizadoPor     string    `json:"actualizadoPor,omitempty"`
	FechaActualizacion time.Time `json:"fechaActualizacion"`
}

// Recalcular re-derives the financed amount, the total payable and the
// priority from the requested terms.
func (s *Solicitud) Recalcular() {
	s.MontoFinanciado = s.PrecioCompraMoto.Sub(s.Inicial)
	s.TotalAPagar = s.MontoCuota.Mul(decimal.NewFromInt(int64(s.PlazoQuincenas)))
	s.Prioridad = PrioridadPorMonto(s.MontoFinanciado)
}

// RatioInicial is inicial/precio, or 0 when the price is unknown.
func (s Solicitud) RatioInicial() float64 {
	if !s.PrecioCompraMoto.IsPositive() {
		return 0
	}
	r, _ := s.Inicial.Div(s.PrecioCompraMoto).Float64()
	return r
}

func (s Solicitud) TieneFiador() bool { return s.FiadorID != "" }

// Vencida reports whether the SLA deadline has passed at now.
func (s Solicitud) Vencida(now time.Time) bool {
	return s.FechaLimiteEvaluacion != nil && now.After(*s.FechaLimiteEvaluacion)
}

// TerminosAprobados are the committee-set terms recorded on approval.
type TerminosAprobados struct {
	SolicitudID    string          `json:"solicitudId"`
	Tasa           decimal.Decimal `json:"tasa"`
	PlazoQuincenas int             `json:"plazoQuincenas"`
	MontoCuota     decimal.Decimal `json:"montoCuota"`
	AprobadoPor    string          `json:"aprobadoPor"`
	Fecha          time.Time       `json:"fecha"`
}
