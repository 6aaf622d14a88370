package repository

import (
	"context"
	"testing"
	"time"

	"motocredito-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	_, client := newMiniredis(t)
	bus := NewRedisEventBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "sol-1")
	require.NoError(t, err)

	evt := models.EventoTransicion{
		SolicitudID:    "sol-1",
		EstadoAnterior: models.EstadoEnDecision,
		EstadoNuevo:    models.EstadoAprobado,
		Actor:          "comite",
		Fecha:          time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.Publish(ctx, models.EventoTransicion{SolicitudID: "sol-2", EstadoNuevo: models.EstadoCancelado}))
	require.NoError(t, bus.Publish(ctx, evt))

	select {
	case got := <-events:
		assert.Equal(t, evt, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventChannel(t *testing.T) {
	assert.Equal(t, "credito:transiciones:sol-7", EventChannel("sol-7"))
}
