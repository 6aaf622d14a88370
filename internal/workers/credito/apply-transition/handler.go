// internal/workers/credito/apply-transition/handler.go
package applytransition

import (
	"context"
	"encoding/json"
	"fmt"

	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/engine/statemachine"
	"motocredito-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "apply-transition"
)

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["solicitudId", "estado", "actor"],
	"properties": {
		"solicitudId": {"type": "string", "minLength": 1},
		"estado": {"type": "string", "minLength": 1},
		"actor": {"type": "string", "minLength": 1},
		"motivo": {"type": "string", "maxLength": 1000}
	}
}`)

// Transitioner is the part of the state machine this worker drives.
type Transitioner interface {
	ApplyTransition(ctx context.Context, id string, next models.Estado, actor, reason string) (*statemachine.TransitionResult, error)
}

type Handler struct {
	config  *Config
	machine Transitioner
	results *camunda.JobResults
	logger  logger.Logger
}

func NewHandler(config *Config, machine Transitioner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		machine: machine,
		results: camunda.NewJobResults(TaskType, log),
		logger:  log,
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

// Execute moves the solicitud to input.Estado.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := inputSchema.Check(input); err != nil {
		return nil, err
	}

	res, err := h.machine.ApplyTransition(ctx, input.SolicitudID, input.Estado, input.Actor, input.Motivo)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("job output ready", map[string]interface{}{
		"solicitudId": input.SolicitudID,
		"estado":      string(res.Solicitud.Estado),
	})

	return &Output{
		SolicitudID:    res.Solicitud.ID,
		EstadoAnterior: res.EstadoAnterior,
		EstadoNuevo:    res.Solicitud.Estado,
		Prioridad:      res.Solicitud.Prioridad,
		FechaCambio:    res.FechaCambio,
		FechaLimite:    res.FechaLimite,
		Version:        res.Solicitud.Version,
	}, nil
}
