package statemachine

import (
	"context"
	"sync"
	"time"

	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/metrics"
	"motocredito-workers/internal/engine/documents"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"
)

const (
	ActionDocument     = "documento"
	ActionNotification = "notificacion"
	ActionEvent        = "evento"
)

// Notifier delivers a notification for an event of a solicitud.
type Notifier interface {
	Notify(ctx context.Context, solicitudID, evento string) error
}

// EventoEstado is the notification event sent on entering s.
func EventoEstado(s models.Estado) string {
	return "estado_" + string(s)
}

// FollowUpDispatcher runs post-commit actions in the background under
// their own timeout. Failures are logged and counted, never returned.
type FollowUpDispatcher struct {
	def       *workflow.Definition
	generator documents.Generator
	notifier  Notifier
	events    repository.EventPublisher
	timeout   time.Duration
	logger    logger.Logger
	wg        sync.WaitGroup
}

// NewFollowUpDispatcher accepts nil collaborators; their actions are skipped.
func NewFollowUpDispatcher(
	def *workflow.Definition,
	generator documents.Generator,
	notifier Notifier,
	events repository.EventPublisher,
	timeout time.Duration,
	log logger.Logger,
) *FollowUpDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FollowUpDispatcher{
		def:       def,
		generator: generator,
		notifier:  notifier,
		events:    events,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "followups"}),
	}
}

func (d *FollowUpDispatcher) Dispatch(evt models.EventoTransicion) {
	if docs := d.def.DocumentsFor(evt.EstadoNuevo); len(docs) > 0 && d.generator != nil {
		d.spawn(evt, ActionDocument, func(ctx context.Context) error {
			return d.generateDocuments(ctx, evt, docs)
		})
	}
	if d.notifier != nil {
		d.spawn(evt, ActionNotification, func(ctx context.Context) error {
			return d.notifier.Notify(ctx, evt.SolicitudID, EventoEstado(evt.EstadoNuevo))
		})
	}
	if d.events != nil {
		d.spawn(evt, ActionEvent, func(ctx context.Context) error {
			return d.events.Publish(ctx, evt)
		})
	}
}

// Wait blocks until every dispatched action has finished.
func (d *FollowUpDispatcher) Wait() {
	d.wg.Wait()
}

func (d *FollowUpDispatcher) spawn(evt models.EventoTransicion, action string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.report(evt, action, err)
		}
	}()
}

// generateDocuments reports each failed or skipped document on its own
// and returns nil; only an invalid request is returned.
func (d *FollowUpDispatcher) generateDocuments(ctx context.Context, evt models.EventoTransicion, docs []string) error {
	results, err := d.def.Documents().Generate(ctx, d.generator, evt.SolicitudID, docs)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Status {
		case documents.StatusFailed:
			d.report(evt, ActionDocument, r.Err, "document", r.Document)
		case documents.StatusSkipped:
			d.logger.Warn("document skipped", map[string]interface{}{
				"solicitudId": evt.SolicitudID,
				"document":    r.Document,
			})
		default:
			d.logger.Info("document generated", map[string]interface{}{
				"solicitudId": evt.SolicitudID,
				"document":    r.Document,
			})
		}
	}
	return nil
}

func (d *FollowUpDispatcher) report(evt models.EventoTransicion, action string, err error, kv ...string) {
	metrics.FollowUpFailures.WithLabelValues(action).Inc()
	fields := map[string]interface{}{
		"solicitudId": evt.SolicitudID,
		"estado":      string(evt.EstadoNuevo),
		"action":      action,
		"error":       err,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	d.logger.Error("follow-up action failed", fields)
}
