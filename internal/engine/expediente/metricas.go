package expediente

import (
	"math"
	"sort"
	"time"

	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
)

type stage struct {
	estado   models.Estado
	duration time.Duration
}

// completedStages walks the history in order. The first stage runs from
// the solicitud's creation to the first transition.
func completedStages(sol models.Solicitud, historial []models.HistorialEstado) []stage {
	if len(historial) == 0 {
		return nil
	}
	hist := append([]models.HistorialEstado(nil), historial...)
	sort.SliceStable(hist, func(i, j int) bool { return hist[i].Fecha.Before(hist[j].Fecha) })

	stages := make([]stage, 0, len(hist))
	if !sol.FechaCreacion.IsZero() && !hist[0].Fecha.Before(sol.FechaCreacion) {
		stages = append(stages, stage{estado: hist[0].EstadoAnterior, duration: hist[0].Fecha.Sub(sol.FechaCreacion)})
	}
	for i := 0; i+1 < len(hist); i++ {
		stages = append(stages, stage{estado: hist[i].EstadoNuevo, duration: hist[i+1].Fecha.Sub(hist[i].Fecha)})
	}
	return stages
}

// ComputeMetricas derives response time and efficiency from the history.
// Efficiency is the mean of min(expected/actual, 1) over completed stages
// that have an expected duration, as a percentage; 100 when there are none.
func ComputeMetricas(def *workflow.Definition, sol models.Solicitud, historial []models.HistorialEstado, now time.Time) models.Metricas {
	stages := completedStages(sol, historial)

	m := models.Metricas{EficienciaProceso: 100, EtapasCompletadas: len(stages)}
	if len(stages) > 0 {
		var total time.Duration
		for _, s := range stages {
			total += s.duration
		}
		m.TiempoPromedioRespuestaHoras = roundHours(total / time.Duration(len(stages)))
	}

	var sum float64
	var n int
	for _, s := range stages {
		expected, ok := def.Expected(s.estado)
		if !ok {
			continue
		}
		ratio := 1.0
		if s.duration > expected {
			ratio = float64(expected) / float64(s.duration)
		}
		sum += ratio
		n++
	}
	if n > 0 {
		m.EficienciaProceso = int(math.Round(sum / float64(n) * 100))
	}

	if entered := enteredCurrent(sol, historial); !entered.IsZero() && now.After(entered) {
		m.TiempoEnEstadoActualHoras = roundHours(now.Sub(entered))
	}
	return m
}

func enteredCurrent(sol models.Solicitud, historial []models.HistorialEstado) time.Time {
	if !sol.FechaCambioEstado.IsZero() {
		return sol.FechaCambioEstado
	}
	var last time.Time
	for _, h := range historial {
		if h.Fecha.After(last) {
			last = h.Fecha
		}
	}
	if !last.IsZero() {
		return last
	}
	return sol.FechaCreacion
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}
