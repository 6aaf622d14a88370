// internal/workers/credito/evaluate-credit/handler_test.go
package evaluatecredit

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssembler struct {
	exp *models.ExpedienteCompleto
	err error
}

func (f fakeAssembler) Assemble(context.Context, string) (*models.ExpedienteCompleto, error) {
	return f.exp, f.err
}

func createTestExpediente() *models.ExpedienteCompleto {
	return &models.ExpedienteCompleto{
		Solicitud:      models.Solicitud{ID: "sol-5", Estado: models.EstadoEnDecision},
		DatosCompletos: true,
		ResumenEvaluacion: models.ResumenEvaluacion{
			PorcentajeDocumental:   100,
			PorcentajeGarantes:     85,
			PorcentajeEntrevista:   70,
			PorcentajeReferencias:  60,
			PorcentajeFinanciero:   75,
			ScoreConsolidado:       79,
			RecomendacionSistema:   models.RecomendacionCondicional,
			Confianza:              80,
			NivelRiesgoCalculado:   models.RiesgoMedio,
			ProbabilidadAprobacion: 70,
			Condiciones:            []string{"incrementar inicial"},
		},
	}
}

func createTestHandler(t *testing.T, exp *models.ExpedienteCompleto, err error) (*Handler, *repository.MemoryGateway) {
	t.Helper()
	gw := repository.NewMemoryGateway()
	gw.PutSolicitud(models.Solicitud{ID: "sol-5", Estado: models.EstadoEnDecision})
	h := NewHandler(&Config{Timeout: 5 * time.Second}, fakeAssembler{exp: exp, err: err}, gw, logger.NewTestLogger(t))
	return h, gw
}

func TestExecute_PersistsScores(t *testing.T) {
	h, gw := createTestHandler(t, createTestExpediente(), nil)

	out, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-5"})
	require.NoError(t, err)

	assert.Equal(t, 79, out.ScoreFinal)
	assert.Equal(t, 60, out.ScoreReferencias)
	assert.Equal(t, models.RecomendacionCondicional, out.Recomendacion)
	assert.Equal(t, models.RiesgoMedio, out.NivelRiesgo)
	assert.Equal(t, []string{"incrementar inicial"}, out.Condiciones)
	assert.True(t, out.DatosCompletos)

	stored, err := gw.GetApplication(context.Background(), "sol-5")
	require.NoError(t, err)
	require.NotNil(t, stored.ScoreFinal)
	assert.Equal(t, 100, *stored.ScoreDocumental)
	assert.Equal(t, 85, *stored.ScoreGarantes)
	assert.Equal(t, 70, *stored.ScoreEntrevista)
	assert.Equal(t, 79, *stored.ScoreFinal)
}

func TestExecute_PartialExpedienteStillScored(t *testing.T) {
	exp := createTestExpediente()
	exp.DatosCompletos = false
	exp.CodigoError = string(apperrors.ErrCodePartialAggregation)
	exp.ResumenEvaluacion.Condiciones = nil
	h, gw := createTestHandler(t, exp, nil)

	out, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-5"})
	require.NoError(t, err)
	assert.False(t, out.DatosCompletos)
	assert.NotNil(t, out.Condiciones)

	stored, _ := gw.GetApplication(context.Background(), "sol-5")
	assert.NotNil(t, stored.ScoreFinal)
}

func TestExecute_MissingCoreEntityNotScored(t *testing.T) {
	exp := createTestExpediente()
	exp.DatosCompletos = false
	exp.CodigoError = string(apperrors.ErrCodeMissingCoreEntity)
	exp.ErrorCarga = "titular: cli-1"
	h, gw := createTestHandler(t, exp, nil)

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingCoreEntity))
	assert.Equal(t, "titular: cli-1", apperrors.AsStandard(err).Details)

	stored, _ := gw.GetApplication(context.Background(), "sol-5")
	assert.Nil(t, stored.ScoreFinal)
}

func TestExecute_AssemblyErrorPassesThrough(t *testing.T) {
	h, _ := createTestHandler(t, nil, apperrors.NewSolicitudNotFoundError("sol-5"))

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-5"})
	assert.True(t, errors.Is(err, apperrors.ErrSolicitudNotFound))
}

func TestExecute_ScoreWriteFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"not found", repository.ErrNotFound, apperrors.ErrCodeSolicitudNotFound},
		{"storage down", errors.New("connection reset"), apperrors.ErrCodeRepositoryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, gw := createTestHandler(t, createTestExpediente(), nil)
			gw.FailOn(repository.OpUpdateScores, tt.err)

			_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-5"})
			require.Error(t, err)
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
		})
	}
}
