// internal/workers/credito/notify-solicitud/handler.go
package notifysolicitud

import (
	"context"
	"encoding/json"
	"fmt"

	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/notify"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "notify-solicitud"
)

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["solicitudId", "evento"],
	"properties": {
		"solicitudId": {"type": "string", "minLength": 1},
		"evento": {"type": "string", "pattern": "^[a-z0-9_]+$"},
		"datos": {
			"type": "object",
			"additionalProperties": {"type": "string", "maxLength": 500}
		}
	}
}`)

type Sender interface {
	Send(ctx context.Context, solicitudID, evento string, extra map[string]string) (*notify.Result, error)
}

type Handler struct {
	config  *Config
	sender  Sender
	results *camunda.JobResults
	logger  logger.Logger
}

func NewHandler(config *Config, sender Sender, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		sender:  sender,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := inputSchema.Check(input); err != nil {
		return nil, err
	}

	res, err := h.sender.Send(ctx, input.SolicitudID, input.Evento, input.Datos)
	if err != nil {
		return nil, err
	}

	return &Output{
		NotificationID: res.NotificationID,
		Evento:         res.Evento,
		Status:         res.Status,
		EmailSent:      res.EmailSent,
		SMSSent:        res.SMSSent,
		SentAt:         res.SentAt,
	}, nil
}
