// Package scoring computes the five credit criteria and the weighted
// consolidated score. Every function here is pure.
package scoring

import (
	"math"
	"time"

	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
)

// Criterion names as they appear in the expediente.
const (
	CriterioDocumental  = "documental"
	CriterioGarantes    = "garantes"
	CriterioEntrevista  = "entrevista"
	CriterioReferencias = "referencias"
	CriterioFinanciero  = "financiero"
)

// Input is the already-fetched data the criteria are computed from.
type Input struct {
	Solicitud    models.Solicitud
	Titular      *models.Cliente
	Fiador       *models.Cliente
	Vehiculo     *models.Vehiculo
	Referencias  []models.Referencia
	Evaluaciones []models.Evaluacion
	Now          time.Time
}

// Breakdown holds the five sub-scores, each in [0,100].
type Breakdown struct {
	Documental  int `json:"documental"`
	Garantes    int `json:"garantes"`
	Entrevista  int `json:"entrevista"`
	Referencias int `json:"referencias"`
	Financiero  int `json:"financiero"`
}

type Result struct {
	Breakdown   Breakdown
	Consolidado int
	Criterios   []models.CriterioEvaluacion
}

type Engine struct {
	weights workflow.Weights
}

func NewEngine(def *workflow.Definition) *Engine {
	return &Engine{weights: def.Weights}
}

// Evaluate computes every criterion and the consolidated score.
func (e *Engine) Evaluate(in Input) Result {
	b := Compute(in)
	return Result{
		Breakdown:   b,
		Consolidado: Consolidate(b, e.weights),
		Criterios:   Criteria(b, e.weights),
	}
}

// Compute runs the five criteria.
func Compute(in Input) Breakdown {
	return Breakdown{
		Documental:  Documentary(in.Titular, in.Fiador),
		Garantes:    Guarantor(in.Solicitud, in.Fiador, in.Vehiculo, in.Now),
		Entrevista:  Interview(in.Evaluaciones),
		Referencias: References(in.Referencias),
		Financiero:  Financial(in.Solicitud, in.Titular),
	}
}

// Consolidate is the weighted mean of the breakdown, rounded half up.
func Consolidate(b Breakdown, w workflow.Weights) int {
	total := w.Total()
	if total == 0 {
		return 0
	}
	sum := w.Documental*b.Documental +
		w.Garantes*b.Garantes +
		w.Entrevista*b.Entrevista +
		w.Referencias*b.Referencias +
		w.Financiero*b.Financiero
	return clamp((sum*2+total)/(total*2), 0, 100)
}

// Criteria lists each criterion with its weight and status.
func Criteria(b Breakdown, w workflow.Weights) []models.CriterioEvaluacion {
	return []models.CriterioEvaluacion{
		criterio(CriterioDocumental, b.Documental, w.Documental),
		criterio(CriterioGarantes, b.Garantes, w.Garantes),
		criterio(CriterioEntrevista, b.Entrevista, w.Entrevista),
		criterio(CriterioReferencias, b.Referencias, w.Referencias),
		criterio(CriterioFinanciero, b.Financiero, w.Financiero),
	}
}

func criterio(nombre string, puntaje, peso int) models.CriterioEvaluacion {
	return models.CriterioEvaluacion{
		Nombre:  nombre,
		Puntaje: puntaje,
		Peso:    peso,
		Estado:  EstadoCriterio(puntaje),
	}
}

// EstadoCriterio flags a sub-score as favorable (>=70), neutral (50-69)
// or desfavorable (<50).
func EstadoCriterio(score int) models.EstadoCriterio {
	switch {
	case score >= 70:
		return models.CriterioFavorable
	case score >= 50:
		return models.CriterioNeutral
	default:
		return models.CriterioDesfavorable
	}
}

// Documentary gives 60 points for the titular's documents and 40 for the
// fiador's. Without a fiador a baseline of 15 is credited.
func Documentary(titular, fiador *models.Cliente) int {
	score := 0
	if titular != nil {
		switch titular.EstadoValidacionDocumentos {
		case models.ValidacionAprobado:
			score += 60
		case models.ValidacionObservado:
			score += 30
		}
	}
	if fiador == nil {
		score += 15
	} else {
		switch fiador.EstadoValidacionDocumentos {
		case models.ValidacionAprobado:
			score += 40
		case models.ValidacionObservado:
			score += 20
		}
	}
	return clamp(score, 0, 100)
}

// Guarantor scores the fiador (or, without one, the down payment) plus
// a credit for the vehicle's age.
func Guarantor(sol models.Solicitud, fiador *models.Cliente, vehiculo *models.Vehiculo, now time.Time) int {
	var score int
	if fiador == nil {
		ratio := sol.RatioInicial()
		switch {
		case ratio >= 0.35:
			score = 40
		case ratio >= 0.30:
			score = 30
		default:
			score = 15
		}
	} else {
		switch {
		case fiador.EsAptoCrediticiamente:
			score = 70
		case fiador.DatosVerificados:
			score = 50
		case fiador.EstadoValidacionDocumentos == models.ValidacionAprobado:
			score = 35
		default:
			score = 20
		}
	}
	return clamp(score+vehicleCredit(vehiculo, now), 0, 100)
}

func vehicleCredit(v *models.Vehiculo, now time.Time) int {
	if v == nil {
		return 15
	}
	age, known := v.AntiguedadEn(now)
	switch {
	case !known:
		return 15
	case age == 0:
		return 30
	case age <= 3:
		return 25
	case age <= 5:
		return 20
	default:
		return 15
	}
}

// Interview averages completed interview scores. A completed interview
// with no score counts as 50; no completed interview gives 0.
func Interview(evals []models.Evaluacion) int {
	completed, scored, sum := 0, 0, 0
	for _, ev := range evals {
		if ev.Tipo != models.EvaluacionEntrevista || ev.Estado != models.EvaluacionCompletada {
			continue
		}
		completed++
		if ev.Puntaje != nil {
			scored++
			sum += clamp(*ev.Puntaje, 0, 100)
		}
	}
	switch {
	case completed == 0:
		return 0
	case scored == 0:
		return 50
	default:
		return clamp(roundHalfUp(float64(sum)/float64(scored)), 0, 100)
	}
}

// References needs at least two verified references; the average score
// is scaled by min(verified/3, 1).
func References(refs []models.Referencia) int {
	verified, sum := 0, 0
	for _, r := range refs {
		if !r.Verificada() {
			continue
		}
		verified++
		sum += clamp(r.PuntajeReferencia, 0, 100)
	}
	if verified < 2 {
		return 0
	}
	avg := float64(sum) / float64(verified)
	factor := math.Min(float64(verified)/3, 1)
	return clamp(roundHalfUp(avg*factor), 0, 100)
}

// Financial adds down-payment (max 30), installment burden (max 40) and
// payment history (max 30) points.
func Financial(sol models.Solicitud, titular *models.Cliente) int {
	score := downPaymentPoints(sol.RatioInicial())

	ratio, known := InstallmentToIncome(sol, titular)
	switch {
	case !known:
		score += 10
	case ratio <= 0.3:
		score += 40
	case ratio <= 0.4:
		score += 30
	case ratio <= 0.5:
		score += 20
	default:
		score += 10
	}

	var hist models.HistorialPagos
	if titular != nil {
		hist = titular.Buro.HistorialPagos
	}
	score += paymentHistoryPoints(hist)

	return clamp(score, 0, 100)
}

func downPaymentPoints(ratio float64) int {
	switch {
	case ratio >= 0.30:
		return 30
	case ratio >= 0.20:
		return 25
	case ratio >= 0.10:
		return 15
	default:
		return 5
	}
}

func paymentHistoryPoints(h models.HistorialPagos) int {
	switch h {
	case models.HistorialExcelente:
		return 30
	case models.HistorialBueno:
		return 22
	case models.HistorialRegular:
		return 15
	case models.HistorialMalo:
		return 5
	default:
		return 10
	}
}

// InstallmentToIncome is (cuota*2)/monthly income. The second result is
// false when the titular's income is unknown.
func InstallmentToIncome(sol models.Solicitud, titular *models.Cliente) (float64, bool) {
	if titular == nil {
		return 0, false
	}
	income := titular.IngresoEstimado()
	if income <= 0 {
		return 0, false
	}
	cuota, _ := sol.MontoCuota.Float64()
	return cuota * 2 / income, true
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
