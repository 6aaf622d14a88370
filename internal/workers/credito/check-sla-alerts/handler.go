// internal/workers/credito/check-sla-alerts/handler.go
package checkslaalerts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/engine/alerts"
	"motocredito-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"golang.org/x/sync/errgroup"
)

const (
	TaskType = "check-sla-alerts"

	// EventoSLAVencido is the notification template sent for a missed deadline.
	EventoSLAVencido = "sla_vencido"
)

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"properties": {
		"limit": {"type": "integer", "minimum": 0, "maximum": 1000}
	}
}`)

type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Solicitud, error)
}

type Notifier interface {
	Notify(ctx context.Context, solicitudID, evento string) error
}

type Handler struct {
	config   *Config
	lister   OverdueLister
	notifier Notifier
	now      func() time.Time
	results  *camunda.JobResults
	logger   logger.Logger
}

func NewHandler(config *Config, lister OverdueLister, notifier Notifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		lister:   lister,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		results:  camunda.NewJobResults(TaskType, log),
		logger:   log,
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

// Execute sweeps solicitudes past their evaluation deadline and notifies
// each titular. A failed notification is reported in the output and does
// not fail the sweep.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := inputSchema.Check(input); err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit == 0 {
		limit = h.config.BatchLimit
	}

	now := h.now()
	overdue, err := h.lister.ListOverdue(ctx, now, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError("list overdue", ctx.Err())
		}
		return nil, errors.NewRepositoryError("list overdue", err)
	}

	out := &Output{Revisadas: len(overdue), Vencidas: []string{}, Fallidas: []string{}}
	for _, sol := range overdue {
		if alerts.Overdue(sol, now) {
			out.Vencidas = append(out.Vencidas, sol.ID)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if h.config.Concurrency > 0 {
		g.SetLimit(h.config.Concurrency)
	}
	for _, id := range out.Vencidas {
		id := id
		g.Go(func() error {
			err := h.notifier.Notify(ctx, id, EventoSLAVencido)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Warn("sla notification failed", map[string]interface{}{
					"solicitudId": id,
					"error":       err,
				})
				out.Fallidas = append(out.Fallidas, id)
				return nil
			}
			out.Notificadas++
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(out.Fallidas)

	h.logger.Info("sla sweep finished", map[string]interface{}{
		"revisadas":   out.Revisadas,
		"vencidas":    len(out.Vencidas),
		"notificadas": out.Notificadas,
		"fallidas":    len(out.Fallidas),
	})
	return out, nil
}
