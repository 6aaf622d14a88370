// internal/workers/credito/evaluate-credit/handler.go
package evaluatecredit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "evaluate-credit"
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

// ScoreWriter persists the evaluation on the solicitud row.
type ScoreWriter interface {
	UpdateScores(ctx context.Context, solicitudID string, s repository.Scores) error
}

type Handler struct {
	config    *Config
	assembler Assembler
	scores    ScoreWriter
	results   *camunda.JobResults
	logger    logger.Logger
}

func NewHandler(config *Config, assembler Assembler, scores ScoreWriter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		assembler: assembler,
		scores:    scores,
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

// Execute scores the solicitud from a fresh expediente and stores the
// sub-scores. An expediente without its titular or vehicle is not scored.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := inputSchema.Check(input); err != nil {
		return nil, err
	}

	exp, err := h.assembler.Assemble(ctx, input.SolicitudID)
	if err != nil {
		return nil, err
	}
	if exp.CodigoError == string(errors.ErrCodeMissingCoreEntity) {
		err := errors.NewMissingCoreEntityError("expediente", input.SolicitudID)
		err.Details = exp.ErrorCarga
		return nil, err
	}

	r := exp.ResumenEvaluacion
	err = h.scores.UpdateScores(ctx, input.SolicitudID, repository.Scores{
		Documental: r.PorcentajeDocumental,
		Garantes:   r.PorcentajeGarantes,
		Entrevista: r.PorcentajeEntrevista,
		Final:      r.ScoreConsolidado,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, errors.NewCancelledError("update scores", ctx.Err())
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NewSolicitudNotFoundError(input.SolicitudID)
		default:
			return nil, errors.NewRepositoryError("update scores", err)
		}
	}

	h.logger.Info("credit evaluated", map[string]interface{}{
		"solicitudId":    input.SolicitudID,
		"score":          r.ScoreConsolidado,
		"recomendacion":  string(r.RecomendacionSistema),
		"nivelRiesgo":    string(r.NivelRiesgoCalculado),
		"datosCompletos": exp.DatosCompletos,
	})

	condiciones := r.Condiciones
	if condiciones == nil {
		condiciones = []string{}
	}
	return &Output{
		SolicitudID:            input.SolicitudID,
		ScoreDocumental:        r.PorcentajeDocumental,
		ScoreGarantes:          r.PorcentajeGarantes,
		ScoreEntrevista:        r.PorcentajeEntrevista,
		ScoreReferencias:       r.PorcentajeReferencias,
		ScoreFinanciero:        r.PorcentajeFinanciero,
		ScoreFinal:             r.ScoreConsolidado,
		Recomendacion:          r.RecomendacionSistema,
		Confianza:              r.Confianza,
		NivelRiesgo:            r.NivelRiesgoCalculado,
		ProbabilidadAprobacion: r.ProbabilidadAprobacion,
		Condiciones:            condiciones,
		DatosCompletos:         exp.DatosCompletos,
	}, nil
}
