// internal/workers/credito/assemble-expediente/handler_test.go
package assembleexpediente

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssembler struct {
	exp   *models.ExpedienteCompleto
	err   error
	calls []string
}

func (f *fakeAssembler) Assemble(_ context.Context, id string) (*models.ExpedienteCompleto, error) {
	f.calls = append(f.calls, id)
	return f.exp, f.err
}

type fakeIndex struct {
	indexed []string
}

func (f *fakeIndex) IndexBestEffort(_ context.Context, exp *models.ExpedienteCompleto) {
	f.indexed = append(f.indexed, exp.Solicitud.ID)
}

func createTestExpediente() *models.ExpedienteCompleto {
	return &models.ExpedienteCompleto{
		Solicitud:      models.Solicitud{ID: "sol-3", Estado: models.EstadoEnDecision},
		DatosCompletos: true,
		ResumenEvaluacion: models.ResumenEvaluacion{
			ScoreConsolidado:     82,
			Banda:                "aprobacion",
			RecomendacionSistema: models.RecomendacionAprobar,
			NivelRiesgoCalculado: models.RiesgoBajo,
		},
		Alertas: models.Alertas{
			TiemposExcedidos: []string{"evaluacion vencida"},
			Inconsistencias:  []string{"ingreso no verificado", "direccion distinta"},
		},
		Metricas:        models.Metricas{EtapasCompletadas: 5},
		FechaGeneracion: time.Date(2026, 7, 2, 10, 0, 0, 0, time.UTC),
	}
}

func createTestHandler(t *testing.T, a Assembler, idx Index) *Handler {
	t.Helper()
	return NewHandler(&Config{Timeout: 5 * time.Second}, a, idx, logger.NewTestLogger(t))
}

func TestExecute_Summary(t *testing.T) {
	a := &fakeAssembler{exp: createTestExpediente()}
	idx := &fakeIndex{}
	h := createTestHandler(t, a, idx)

	out, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sol-3"}, a.calls)
	assert.Equal(t, []string{"sol-3"}, idx.indexed)
	assert.Equal(t, "sol-3", out.SolicitudID)
	assert.Equal(t, models.EstadoEnDecision, out.Estado)
	assert.True(t, out.DatosCompletos)
	assert.Empty(t, out.CodigoError)
	assert.Equal(t, 82, out.ScoreConsolidado)
	assert.Equal(t, "aprobacion", out.Banda)
	assert.Equal(t, models.RecomendacionAprobar, out.Recomendacion)
	assert.Equal(t, models.RiesgoBajo, out.NivelRiesgo)
	assert.Equal(t, 3, out.TotalAlertas)
	assert.Equal(t, 5, out.EtapasCompletadas)
}

func TestExecute_IncompleteExpedienteCompletes(t *testing.T) {
	exp := createTestExpediente()
	exp.DatosCompletos = false
	exp.CodigoError = string(apperrors.ErrCodeMissingCoreEntity)
	exp.ErrorCarga = "vehiculo: veh-1"
	exp.Alertas.RequiereAtencionUrgente = true
	h := createTestHandler(t, &fakeAssembler{exp: exp}, nil)

	out, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-3"})
	require.NoError(t, err)
	assert.False(t, out.DatosCompletos)
	assert.Equal(t, "MISSING_CORE_ENTITY", out.CodigoError)
	assert.Equal(t, "vehiculo: veh-1", out.ErrorCarga)
	assert.True(t, out.RequiereAtencionUrgente)
}

func TestExecute_AssemblyError(t *testing.T) {
	idx := &fakeIndex{}
	h := createTestHandler(t, &fakeAssembler{err: apperrors.NewSolicitudNotFoundError("sol-3")}, idx)

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-3"})
	assert.True(t, errors.Is(err, apperrors.ErrSolicitudNotFound))
	assert.Empty(t, idx.indexed)
}

func TestExecute_MissingSolicitudID(t *testing.T) {
	a := &fakeAssembler{exp: createTestExpediente()}
	h := createTestHandler(t, a, nil)

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err))
	assert.Empty(t, a.calls)
}
