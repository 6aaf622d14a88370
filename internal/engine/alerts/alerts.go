// Package alerts derives SLA, document and consistency alerts from an
// assembled expediente.
package alerts

import (
	"fmt"
	"math"
	"time"

	"motocredito-workers/internal/models"
)

const maxInconsistencias = 2

// Input is everything the alert rules read.
type Input struct {
	Solicitud   models.Solicitud
	Titular     *models.Cliente
	Fiador      *models.Cliente
	Referencias []models.Referencia
	Now         time.Time
}

// Evaluate is a pure function of its input.
func Evaluate(in Input) models.Alertas {
	out := models.Alertas{
		DocumentosVencidos: []string{},
		TiemposExcedidos:   []string{},
		Inconsistencias:    []string{},
		Anomalias:          []string{},
	}

	vencida := in.Solicitud.Vencida(in.Now)
	if vencida {
		limite := *in.Solicitud.FechaLimiteEvaluacion
		horas := math.Floor(in.Now.Sub(limite).Hours())
		out.TiemposExcedidos = append(out.TiemposExcedidos, fmt.Sprintf(
			"Estado %s excedió su límite de evaluación (%s) por %.0f horas",
			in.Solicitud.Estado, limite.UTC().Format(time.RFC3339), horas,
		))
	}

	if observado(in.Titular) {
		out.DocumentosVencidos = append(out.DocumentosVencidos, "Documentos del titular observados")
	}
	if observado(in.Fiador) {
		out.DocumentosVencidos = append(out.DocumentosVencidos, "Documentos del fiador observados")
	}

	if in.Titular != nil {
		out.Inconsistencias = append(out.Inconsistencias, in.Titular.Inconsistencias...)
	}
	if in.Fiador != nil {
		out.Inconsistencias = append(out.Inconsistencias, in.Fiador.Inconsistencias...)
	}

	for _, r := range in.Referencias {
		if r.Estado == models.ReferenciaRechazado {
			out.Anomalias = append(out.Anomalias, fmt.Sprintf("Referencia %s rechazada", r.Nombre))
		}
	}

	out.RequiereAtencionUrgente = vencida ||
		len(out.Inconsistencias) > maxInconsistencias ||
		in.Solicitud.RequiereAtencionEspecial
	return out
}

func observado(c *models.Cliente) bool {
	return c != nil && c.EstadoValidacionDocumentos == models.ValidacionObservado
}

// Overdue reports whether the solicitud's SLA deadline has passed. The
// periodic SLA sweep uses it without assembling a full expediente.
func Overdue(sol models.Solicitud, now time.Time) bool {
	return sol.Vencida(now)
}
