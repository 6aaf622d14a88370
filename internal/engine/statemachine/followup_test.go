package statemachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/metrics"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu        sync.Mutex
	failOn    map[string]error
	generated []string
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, document string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failOn[document]; err != nil {
		return err
	}
	g.generated = append(g.generated, document)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	eventos []string
}

func (n *fakeNotifier) Notify(_ context.Context, solicitudID, evento string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eventos = append(n.eventos, solicitudID+"/"+evento)
	return n.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.EventoTransicion
}

func (p *fakePublisher) Publish(_ context.Context, evt models.EventoTransicion) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func TestFollowUpDispatcher_Approved(t *testing.T) {
	gen := &fakeGenerator{}
	notifier := &fakeNotifier{}
	pub := &fakePublisher{}
	d := NewFollowUpDispatcher(workflow.Default(), gen, notifier, pub, time.Second, logger.NewTestLogger(t))

	d.Dispatch(models.EventoTransicion{SolicitudID: "sol-1", EstadoAnterior: models.EstadoEnDecision, EstadoNuevo: models.EstadoAprobado})
	d.Wait()

	assert.Equal(t, []string{workflow.DocCertificadoAprobacion}, gen.generated)
	assert.Equal(t, []string{"sol-1/estado_aprobado"}, notifier.eventos)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EstadoAprobado, pub.events[0].EstadoNuevo)
}

func TestFollowUpDispatcher_DocumentFailureSkipsDependents(t *testing.T) {
	gen := &fakeGenerator{failOn: map[string]error{workflow.DocContratoCompraventa: errors.New("template missing")}}
	d := NewFollowUpDispatcher(workflow.Default(), gen, nil, nil, time.Second, logger.NewTestLogger(t))

	before := testutil.ToFloat64(metrics.FollowUpFailures.WithLabelValues(ActionDocument))
	d.Dispatch(models.EventoTransicion{SolicitudID: "sol-2", EstadoNuevo: models.EstadoInicialConfirmada})
	d.Wait()

	assert.Empty(t, gen.generated, "pagare depends on the failed contrato")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FollowUpFailures.WithLabelValues(ActionDocument)))
}

func TestFollowUpDispatcher_NotificationFailureIsReported(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("ses throttled")}
	d := NewFollowUpDispatcher(workflow.Default(), nil, notifier, nil, time.Second, logger.NewTestLogger(t))

	before := testutil.ToFloat64(metrics.FollowUpFailures.WithLabelValues(ActionNotification))
	d.Dispatch(models.EventoTransicion{SolicitudID: "sol-3", EstadoNuevo: models.EstadoEvaluacionGarantes})
	d.Wait()

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FollowUpFailures.WithLabelValues(ActionNotification)))
}

func TestFollowUpFailureDoesNotUndoTransition(t *testing.T) {
	gw := repository.NewMemoryGateway()
	gw.PutSolicitud(models.Solicitud{ID: "sol-1", Estado: models.EstadoEnDecision})

	gen := &fakeGenerator{failOn: map[string]error{workflow.DocCertificadoAprobacion: errors.New("pdf service down")}}
	notifier := &fakeNotifier{err: errors.New("sns down")}
	d := NewFollowUpDispatcher(workflow.Default(), gen, notifier, nil, time.Second, logger.NewTestLogger(t))
	m := NewMachine(workflow.Default(), gw, repository.NewLocalLocker(), logger.NewTestLogger(t), WithFollowUps(d))

	res, err := m.ApplyTransition(context.Background(), "sol-1", models.EstadoAprobado, "comite", "score 85")
	require.NoError(t, err)
	d.Wait()

	assert.Equal(t, models.EstadoAprobado, res.Solicitud.Estado)
	stored, _ := gw.GetApplication(context.Background(), "sol-1")
	assert.Equal(t, models.EstadoAprobado, stored.Estado)
}

func TestEventoEstado(t *testing.T) {
	assert.Equal(t, "estado_contrato_firmado", EventoEstado(models.EstadoContratoFirmado))
}
