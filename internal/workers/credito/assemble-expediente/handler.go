// internal/workers/credito/assemble-expediente/handler.go
package assembleexpediente

import (
	"context"
	"encoding/json"
	"fmt"

	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "assemble-expediente"
)

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["solicitudId"],
	"properties": {
		"solicitudId": {"type": "string", "minLength": 1}
	}
}`)

type Assembler interface {
	Assemble(ctx context.Context, id string) (*models.ExpedienteCompleto, error)
}

// Index receives every assembled expediente. It may be nil.
type Index interface {
	IndexBestEffort(ctx context.Context, exp *models.ExpedienteCompleto)
}

type Handler struct {
	config    *Config
	assembler Assembler
	index     Index
	results   *camunda.JobResults
	logger    logger.Logger
}

func NewHandler(config *Config, assembler Assembler, index Index, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		assembler: assembler,
		index:     index,
		results:   camunda.NewJobResults(TaskType, log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.results.Fail(ctx, client, job, errors.NewInputValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.results.Fail(ctx, client, job, err)
		return
	}
	h.results.Complete(ctx, client, job, output)
}

// Execute assembles the expediente and returns its routing summary. A
// partial or core-missing expediente still completes the job; the
// process branches on datosCompletos and codigoError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := inputSchema.Check(input); err != nil {
		return nil, err
	}

	exp, err := h.assembler.Assemble(ctx, input.SolicitudID)
	if err != nil {
		return nil, err
	}
	if h.index != nil {
		h.index.IndexBestEffort(ctx, exp)
	}

	if !exp.DatosCompletos {
		h.logger.Warn("expediente incomplete", map[string]interface{}{
			"solicitudId": input.SolicitudID,
			"codigoError": exp.CodigoError,
		})
	}

	return Summarize(exp), nil
}

// Summarize reduces an expediente to the variables a process instance needs.
func Summarize(exp *models.ExpedienteCompleto) *Output {
	a := exp.Alertas
	total := len(a.DocumentosVencidos) + len(a.TiemposExcedidos) + len(a.Inconsistencias) + len(a.Anomalias)
	r := exp.ResumenEvaluacion
	return &Output{
		SolicitudID:             exp.Solicitud.ID,
		Estado:                  exp.Solicitud.Estado,
		DatosCompletos:          exp.DatosCompletos,
		CodigoError:             exp.CodigoError,
		ErrorCarga:              exp.ErrorCarga,
		ScoreConsolidado:        r.ScoreConsolidado,
		Banda:                   r.Banda,
		Recomendacion:           r.RecomendacionSistema,
		NivelRiesgo:             r.NivelRiesgoCalculado,
		RequiereAtencionUrgente: a.RequiereAtencionUrgente,
		TotalAlertas:            total,
		EtapasCompletadas:       exp.Metricas.EtapasCompletadas,
	}
}
