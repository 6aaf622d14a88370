// Package decision turns a consolidated score and its supporting factors
// into a committee recommendation.
package decision

import (
	"fmt"
	"math"

	"motocredito-workers/internal/engine/scoring"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
)

const maxFactors = 5

// Factors are the facts the rules look at besides the score.
type Factors struct {
	Breakdown              scoring.Breakdown
	TieneFiador            bool
	FiadorApto             bool
	RatioInicial           float64
	RatioCuotaIngreso      float64
	IngresoConocido        bool
	BuroConsultado         bool
	PuntajeBuro            int
	ReferenciasVerificadas int
	Edad                   int
}

// FactorsFrom derives Factors from the scoring input.
func FactorsFrom(in scoring.Input, b scoring.Breakdown) Factors {
	f := Factors{
		Breakdown:    b,
		TieneFiador:  in.Fiador != nil,
		RatioInicial: in.Solicitud.RatioInicial(),
	}
	if in.Fiador != nil {
		f.FiadorApto = in.Fiador.EsAptoCrediticiamente
	}
	f.RatioCuotaIngreso, f.IngresoConocido = scoring.InstallmentToIncome(in.Solicitud, in.Titular)
	if in.Titular != nil {
		f.BuroConsultado = in.Titular.Buro.Consultado
		f.PuntajeBuro = in.Titular.Buro.Puntaje
		f.Edad = in.Titular.EdadActual(in.Now)
	}
	for _, r := range in.Referencias {
		if r.Verificada() {
			f.ReferenciasVerificadas++
		}
	}
	return f
}

// Recommendation is the engine's output for one expediente.
type Recommendation struct {
	Decision                   models.Recomendacion `json:"decision"`
	Confianza                  int                  `json:"confianza"`
	NivelRiesgo                models.NivelRiesgo   `json:"nivelRiesgo"`
	ProbabilidadAprobacion     int                  `json:"probabilidadAprobacion"`
	ProbabilidadIncumplimiento float64              `json:"probabilidadIncumplimiento"`
	Fortalezas                 []string             `json:"fortalezas"`
	Debilidades                []string             `json:"debilidades"`
	Riesgos                    []string             `json:"riesgos"`
	Condiciones                []string             `json:"condiciones"`
}

type Engine struct {
	thresholds workflow.Thresholds
}

func NewEngine(def *workflow.Definition) *Engine {
	return &Engine{thresholds: def.Thresholds}
}

// Recommend maps the score through the shared thresholds and attaches
// factors, risks and, unless rejecting, conditions.
func (e *Engine) Recommend(score int, f Factors) Recommendation {
	d := e.Decide(score)
	riesgos := IdentifyRisks(f)
	fortalezas, debilidades := IdentifyKeyFactors(f)

	rec := Recommendation{
		Decision:                   d,
		Confianza:                  e.Confidence(score),
		NivelRiesgo:                e.RiskLevel(score),
		ProbabilidadAprobacion:     ApprovalProbability(score, len(riesgos)),
		ProbabilidadIncumplimiento: EstimateDefaultProbability(score, f),
		Fortalezas:                 fortalezas,
		Debilidades:                debilidades,
		Riesgos:                    riesgos,
		Condiciones:                []string{},
	}
	if d != models.RecomendacionRechazar {
		rec.Condiciones = SuggestConditions(f)
	}
	return rec
}

func (e *Engine) Decide(score int) models.Recomendacion {
	switch {
	case score >= e.thresholds.Aprobacion:
		return models.RecomendacionAprobar
	case score < e.thresholds.Rechazo:
		return models.RecomendacionRechazar
	default:
		return models.RecomendacionCondicional
	}
}

// Confidence grows with the distance from the nearest threshold.
func (e *Engine) Confidence(score int) int {
	t := e.thresholds
	s := float64(score)
	var c float64
	switch e.Decide(score) {
	case models.RecomendacionAprobar:
		c = 70 + 1.5*(s-float64(t.Aprobacion))
	case models.RecomendacionRechazar:
		c = 70 + 0.75*(float64(t.Rechazo)-s)
	default:
		c = 50 + 1.25*math.Min(s-float64(t.Rechazo), float64(t.Aprobacion)-s)
	}
	return clamp(int(math.Round(c)), 0, 100)
}

func (e *Engine) RiskLevel(score int) models.NivelRiesgo {
	t := e.thresholds
	switch {
	case score >= t.Aprobacion:
		return models.RiesgoBajo
	case score >= t.Condicional:
		return models.RiesgoMedio
	case score >= t.Rechazo:
		return models.RiesgoAlto
	default:
		return models.RiesgoMuyAlto
	}
}

// ApprovalProbability discounts 5 points per identified risk, at most 20.
func ApprovalProbability(score, risks int) int {
	penalty := 5 * risks
	if penalty > 20 {
		penalty = 20
	}
	return clamp(score-penalty, 0, 100)
}

// EstimateDefaultProbability starts from 100-score, adds penalties for a
// missing fiador, an age outside 25-60 and a down payment under 20%, and
// scales the result into a 0-20% band with one decimal.
func EstimateDefaultProbability(score int, f Factors) float64 {
	raw := float64(100 - clamp(score, 0, 100))
	if !f.TieneFiador {
		raw += 10
	}
	if f.Edad > 0 && (f.Edad < 25 || f.Edad > 60) {
		raw += 5
	}
	if f.RatioInicial < 0.20 {
		raw += 10
	}
	scaled := raw / 125 * 20
	return math.Round(scaled*10) / 10
}

type rule struct {
	applies   func(Factors) bool
	risk      func(Factors) string
	condition string
}

var rules = []rule{
	{
		applies: func(f Factors) bool { return f.IngresoConocido && f.RatioCuotaIngreso > 0.4 },
		risk: func(f Factors) string {
			return fmt.Sprintf("Relación cuota/ingreso elevada (%.0f%%)", f.RatioCuotaIngreso*100)
		},
		condition: "Reducir la cuota ampliando el plazo o elevando la inicial",
	},
	{
		applies:   func(f Factors) bool { return !f.TieneFiador && f.RatioInicial < 0.25 },
		risk:      func(Factors) string { return "Sin fiador y con inicial menor al 25%" },
		condition: "Incorporar un fiador o elevar la inicial al 25% del precio",
	},
	{
		applies:   func(f Factors) bool { return f.BuroConsultado && f.PuntajeBuro < 500 },
		risk:      func(f Factors) string { return fmt.Sprintf("Puntaje de buró bajo (%d)", f.PuntajeBuro) },
		condition: "Presentar constancia de no adeudo o garantía adicional",
	},
	{
		applies:   func(f Factors) bool { return f.ReferenciasVerificadas < 2 },
		risk:      func(Factors) string { return "Menos de 2 referencias verificadas" },
		condition: "Completar la verificación de al menos 2 referencias",
	},
}

// IdentifyRisks evaluates each rule independently, in a fixed order.
func IdentifyRisks(f Factors) []string {
	out := []string{}
	for _, r := range rules {
		if r.applies(f) {
			out = append(out, r.risk(f))
		}
	}
	return out
}

// SuggestConditions returns the condition paired with every risk found.
func SuggestConditions(f Factors) []string {
	out := []string{}
	for _, r := range rules {
		if r.applies(f) {
			out = append(out, r.condition)
		}
	}
	return out
}

// IdentifyKeyFactors lists up to five strengths and five weaknesses.
func IdentifyKeyFactors(f Factors) (fortalezas, debilidades []string) {
	fortalezas, debilidades = []string{}, []string{}
	criterios := []struct {
		nombre  string
		puntaje int
	}{
		{scoring.CriterioDocumental, f.Breakdown.Documental},
		{scoring.CriterioGarantes, f.Breakdown.Garantes},
		{scoring.CriterioEntrevista, f.Breakdown.Entrevista},
		{scoring.CriterioReferencias, f.Breakdown.Referencias},
		{scoring.CriterioFinanciero, f.Breakdown.Financiero},
	}

	for _, c := range criterios {
		if c.puntaje >= 85 {
			fortalezas = appendCapped(fortalezas, fmt.Sprintf("Criterio %s sobresaliente (%d)", c.nombre, c.puntaje))
		}
		if scoring.EstadoCriterio(c.puntaje) == models.CriterioDesfavorable {
			debilidades = appendCapped(debilidades, fmt.Sprintf("Criterio %s desfavorable (%d)", c.nombre, c.puntaje))
		}
	}
	if f.FiadorApto {
		fortalezas = appendCapped(fortalezas, "Fiador apto crediticiamente")
	}
	if f.RatioInicial >= 0.30 {
		fortalezas = appendCapped(fortalezas, fmt.Sprintf("Inicial de %.0f%% del precio", f.RatioInicial*100))
	}
	return fortalezas, debilidades
}

func appendCapped(list []string, item string) []string {
	if len(list) >= maxFactors {
		return list
	}
	return append(list, item)
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
