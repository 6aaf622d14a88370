// internal/workers/credito/apply-transition/handler_test.go
package applytransition

import (
	"context"
	"errors"
	"testing"
	"time"

	"motocredito-workers/internal/common/config"
	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/engine/statemachine"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestHandler(t *testing.T, estado models.Estado) (*Handler, *repository.MemoryGateway) {
	t.Helper()
	gw := repository.NewMemoryGateway()
	gw.SetClock(func() time.Time { return clock })
	gw.PutSolicitud(models.Solicitud{ID: "sol-1", Estado: estado, Prioridad: models.PrioridadMedia, Version: 1})

	m := statemachine.NewMachine(workflow.Default(), gw, repository.NewLocalLocker(), logger.NewTestLogger(t),
		statemachine.WithClock(func() time.Time { return clock }))
	return NewHandler(createTestConfig(), m, logger.NewTestLogger(t)), gw
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}

func TestExecute_Success(t *testing.T) {
	h, gw := createTestHandler(t, models.EstadoEvaluacionDocumental)

	out, err := h.Execute(context.Background(), &Input{
		SolicitudID: "sol-1",
		Estado:      models.EstadoEvaluacionGarantes,
		Actor:       "analista:ana",
		Motivo:      "documentos conformes",
	})
	require.NoError(t, err)

	assert.Equal(t, "sol-1", out.SolicitudID)
	assert.Equal(t, models.EstadoEvaluacionDocumental, out.EstadoAnterior)
	assert.Equal(t, models.EstadoEvaluacionGarantes, out.EstadoNuevo)
	assert.Equal(t, clock, out.FechaCambio)
	require.NotNil(t, out.FechaLimite)
	assert.Equal(t, clock.Add(48*time.Hour), *out.FechaLimite)
	assert.Equal(t, 2, out.Version)

	hist, err := gw.GetHistory(context.Background(), "sol-1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "analista:ana", hist[0].Actor)
}

func TestExecute_InputValidation(t *testing.T) {
	h, _ := createTestHandler(t, models.EstadoEvaluacionDocumental)

	tests := []struct {
		name  string
		input Input
	}{
		{"missing solicitud", Input{Estado: models.EstadoEvaluacionGarantes, Actor: "comite"}},
		{"missing estado", Input{SolicitudID: "sol-1", Actor: "comite"}},
		{"missing actor", Input{SolicitudID: "sol-1", Estado: models.EstadoEvaluacionGarantes}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err))
		})
	}
}

func TestExecute_InvalidTransition(t *testing.T) {
	h, gw := createTestHandler(t, models.EstadoEvaluacionDocumental)

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-1", Estado: models.EstadoAprobado, Actor: "comite"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	stored, _ := gw.GetApplication(context.Background(), "sol-1")
	assert.Equal(t, models.EstadoEvaluacionDocumental, stored.Estado)
}

func TestExecute_NotFound(t *testing.T) {
	h, _ := createTestHandler(t, models.EstadoPendiente)

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-9", Estado: models.EstadoEnRevisionInicial, Actor: "asesor"})
	assert.True(t, errors.Is(err, apperrors.ErrSolicitudNotFound))
}

func TestExecute_RepositoryFailureIsRetryable(t *testing.T) {
	h, gw := createTestHandler(t, models.EstadoEnDecision)
	gw.FailOn(repository.OpApplyTransition, errors.New("connection refused"))

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-1", Estado: models.EstadoAprobado, Actor: "comite"})
	require.Error(t, err)
	assert.True(t, apperrors.AsStandard(err).Retryable)
}
