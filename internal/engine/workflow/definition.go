// Package workflow holds the static, versioned definition of the credit
// process: transition graph, SLA hours, expected stage durations, score
// thresholds and weights, and the legal document graph.
package workflow

import (
	"fmt"
	"sync"
	"time"

	"motocredito-workers/internal/engine/documents"
	"motocredito-workers/internal/models"
)

const Version = "2025.1"

// Thresholds are the consolidated-score bands shared by every consumer.
type Thresholds struct {
	Rechazo     int
	Condicional int
	Aprobacion  int
	Excelente   int
}

var DefaultThresholds = Thresholds{Rechazo: 40, Condicional: 65, Aprobacion: 80, Excelente: 90}

// Band names a score range.
type Band string

const (
	BandRechazo         Band = "rechazo"
	BandCondicionalBajo Band = "condicional_bajo"
	BandCondicional     Band = "condicional"
	BandAprobacion      Band = "aprobacion"
	BandExcelente       Band = "excelente"
)

// Band classifies a consolidated score.
func (t Thresholds) Band(score int) Band {
	switch {
	case score >= t.Excelente:
		return BandExcelente
	case score >= t.Aprobacion:
		return BandAprobacion
	case score >= t.Condicional:
		return BandCondicional
	case score >= t.Rechazo:
		return BandCondicionalBajo
	default:
		return BandRechazo
	}
}

// Weights of each criterion in the consolidated score. They add up to 100.
type Weights struct {
	Documental  int
	Garantes    int
	Entrevista  int
	Referencias int
	Financiero  int
}

var DefaultWeights = Weights{Documental: 25, Garantes: 20, Entrevista: 25, Referencias: 15, Financiero: 15}

func (w Weights) Total() int {
	return w.Documental + w.Garantes + w.Entrevista + w.Referencias + w.Financiero
}

// Legal documents generated after specific transitions.
const (
	DocCertificadoAprobacion = "certificado_aprobacion"
	DocConstanciaInicial     = "constancia_inicial"
	DocContratoCompraventa   = "contrato_compraventa"
	DocPagare                = "pagare"
	DocActaEntrega           = "acta_entrega"
)

// Definition is the single source of truth for the process.
type Definition struct {
	Version        string
	Initial        models.Estado
	Transitions    map[models.Estado][]models.Estado
	SLAHours       map[models.Estado]int
	ExpectedHours  map[models.Estado]int
	Thresholds     Thresholds
	Weights        Weights
	LegalDocuments map[string][]string
	// DocumentsOnEnter lists documents generated when a state is entered.
	DocumentsOnEnter map[models.Estado][]string

	graph *documents.Graph
}

var (
	defaultOnce sync.Once
	defaultDef  *Definition
)

// Default returns the process definition. It panics if the built-in
// tables are inconsistent, so a broken build fails at startup.
func Default() *Definition {
	defaultOnce.Do(func() {
		d := build()
		if err := d.Validate(); err != nil {
			panic(fmt.Sprintf("workflow: invalid definition: %v", err))
		}
		defaultDef = d
	})
	return defaultDef
}

func build() *Definition {
	return &Definition{
		Version: Version,
		Initial: models.EstadoPendiente,
		Transitions: map[models.Estado][]models.Estado{
			models.EstadoPendiente: {
				models.EstadoEnRevisionInicial, models.EstadoCancelado,
			},
			models.EstadoEnRevisionInicial: {
				models.EstadoEvaluacionDocumental, models.EstadoRechazado, models.EstadoSuspendido, models.EstadoCancelado,
			},
			models.EstadoEvaluacionDocumental: {
				models.EstadoEvaluacionGarantes, models.EstadoDocumentosObservados, models.EstadoRechazado,
			},
			models.EstadoDocumentosObservados: {
				models.EstadoEvaluacionDocumental, models.EstadoRechazado, models.EstadoCancelado,
			},
			models.EstadoEvaluacionGarantes: {
				models.EstadoEntrevistaProgramada, models.EstadoGaranteRechazado, models.EstadoRechazado,
			},
			models.EstadoGaranteRechazado: {
				models.EstadoEvaluacionGarantes, models.EstadoRechazado, models.EstadoCancelado,
			},
			models.EstadoEntrevistaProgramada: {
				models.EstadoEnEntrevista, models.EstadoSuspendido, models.EstadoCancelado,
			},
			models.EstadoEnEntrevista:         {models.EstadoEntrevistaCompletada},
			models.EstadoEntrevistaCompletada: {models.EstadoEnDecision},
			models.EstadoEnDecision: {
				models.EstadoAprobado, models.EstadoRechazado, models.EstadoCondicional,
			},
			models.EstadoCondicional: {
				models.EstadoAprobado, models.EstadoRechazado, models.EstadoCancelado,
			},
			models.EstadoAprobado:            {models.EstadoCertificadoGenerado},
			models.EstadoCertificadoGenerado: {models.EstadoEsperandoInicial},
			models.EstadoEsperandoInicial: {
				models.EstadoInicialConfirmada, models.EstadoSuspendido, models.EstadoCancelado,
			},
			models.EstadoInicialConfirmada: {models.EstadoContratoFirmado},
			models.EstadoContratoFirmado:   {models.EstadoEntregaCompletada},
			models.EstadoSuspendido: {
				models.EstadoEnRevisionInicial, models.EstadoCancelado,
			},
			models.EstadoEntregaCompletada: nil,
			models.EstadoRechazado:         nil,
			models.EstadoCancelado:         nil,
		},
		SLAHours: map[models.Estado]int{
			models.EstadoEvaluacionDocumental: 24,
			models.EstadoEvaluacionGarantes:   48,
			models.EstadoEntrevistaProgramada: 24,
			models.EstadoEnDecision:           72,
		},
		ExpectedHours: map[models.Estado]int{
			models.EstadoPendiente:            2,
			models.EstadoEnRevisionInicial:    4,
			models.EstadoEvaluacionDocumental: 24,
			models.EstadoDocumentosObservados: 48,
			models.EstadoEvaluacionGarantes:   48,
			models.EstadoGaranteRechazado:     24,
			models.EstadoEntrevistaProgramada: 24,
			models.EstadoEnEntrevista:         2,
			models.EstadoEntrevistaCompletada: 4,
			models.EstadoEnDecision:           72,
			models.EstadoCondicional:          48,
			models.EstadoAprobado:             4,
			models.EstadoCertificadoGenerado:  4,
			models.EstadoEsperandoInicial:     72,
			models.EstadoInicialConfirmada:    24,
			models.EstadoContratoFirmado:      48,
			models.EstadoSuspendido:           72,
		},
		Thresholds: DefaultThresholds,
		Weights:    DefaultWeights,
		LegalDocuments: map[string][]string{
			DocCertificadoAprobacion: nil,
			DocConstanciaInicial:     {DocCertificadoAprobacion},
			DocContratoCompraventa:   {DocCertificadoAprobacion},
			DocPagare:                {DocContratoCompraventa},
			DocActaEntrega:           {DocContratoCompraventa, DocPagare},
		},
		DocumentsOnEnter: map[models.Estado][]string{
			models.EstadoAprobado:          {DocCertificadoAprobacion},
			models.EstadoInicialConfirmada: {DocContratoCompraventa, DocPagare},
			models.EstadoContratoFirmado:   {DocActaEntrega},
		},
	}
}

// Validate checks that every table only names known states, that terminal
// states have no exits, that weights add to 100, that thresholds are
// ordered and that the legal document graph is acyclic.
func (d *Definition) Validate() error {
	for _, s := range models.Estados {
		if _, ok := d.Transitions[s]; !ok {
			return fmt.Errorf("state %s missing from transition table", s)
		}
	}
	for from, tos := range d.Transitions {
		if !from.Valid() {
			return fmt.Errorf("unknown state %s in transition table", from)
		}
		for _, to := range tos {
			if !to.Valid() {
				return fmt.Errorf("unknown target %s from %s", to, from)
			}
			if to == from {
				return fmt.Errorf("self transition on %s", from)
			}
		}
	}
	for s := range d.SLAHours {
		if !s.Valid() {
			return fmt.Errorf("unknown state %s in SLA table", s)
		}
	}
	for s := range d.ExpectedHours {
		if !s.Valid() {
			return fmt.Errorf("unknown state %s in expected duration table", s)
		}
	}
	if !d.Initial.Valid() {
		return fmt.Errorf("unknown initial state %s", d.Initial)
	}
	if d.Weights.Total() != 100 {
		return fmt.Errorf("weights add up to %d, want 100", d.Weights.Total())
	}
	t := d.Thresholds
	if !(0 < t.Rechazo && t.Rechazo < t.Condicional && t.Condicional < t.Aprobacion && t.Aprobacion < t.Excelente && t.Excelente <= 100) {
		return fmt.Errorf("thresholds out of order: %+v", t)
	}

	g, err := documents.NewGraph(d.LegalDocuments)
	if err != nil {
		return fmt.Errorf("legal documents: %w", err)
	}
	for s, docs := range d.DocumentsOnEnter {
		if !s.Valid() {
			return fmt.Errorf("unknown state %s in document table", s)
		}
		for _, doc := range docs {
			if !g.Has(doc) {
				return fmt.Errorf("state %s generates unknown document %s", s, doc)
			}
		}
	}
	d.graph = g
	return nil
}

// CanTransition is a pure lookup in the transition table.
func (d *Definition) CanTransition(from, to models.Estado) bool {
	for _, s := range d.Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the exits of from, in table order.
func (d *Definition) AllowedTransitions(from models.Estado) []models.Estado {
	return append([]models.Estado(nil), d.Transitions[from]...)
}

func (d *Definition) IsTerminal(s models.Estado) bool {
	tos, ok := d.Transitions[s]
	return ok && len(tos) == 0
}

// SLA returns the time allowed in s, if s carries a deadline.
func (d *Definition) SLA(s models.Estado) (time.Duration, bool) {
	h, ok := d.SLAHours[s]
	return time.Duration(h) * time.Hour, ok
}

// Deadline computes the SLA deadline for entering s at enteredAt, or nil
// when s carries none.
func (d *Definition) Deadline(s models.Estado, enteredAt time.Time) *time.Time {
	sla, ok := d.SLA(s)
	if !ok {
		return nil
	}
	t := enteredAt.Add(sla)
	return &t
}

// Expected returns the normal time spent in s.
func (d *Definition) Expected(s models.Estado) (time.Duration, bool) {
	h, ok := d.ExpectedHours[s]
	return time.Duration(h) * time.Hour, ok
}

// Documents returns the validated legal document graph.
func (d *Definition) Documents() *documents.Graph {
	return d.graph
}

// DocumentsFor lists the documents to generate on entering s.
func (d *Definition) DocumentsFor(s models.Estado) []string {
	return append([]string(nil), d.DocumentsOnEnter[s]...)
}
