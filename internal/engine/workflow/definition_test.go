package workflow

import (
	"testing"
	"time"

	"motocredito-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	d := Default()
	require.NotNil(t, d)
	assert.NoError(t, d.Validate())
	assert.Equal(t, models.EstadoPendiente, d.Initial)
	assert.Same(t, d, Default())
}

func TestCanTransition_OnlyGraphEdges(t *testing.T) {
	d := Default()
	for _, from := range models.Estados {
		allowed := map[models.Estado]bool{}
		for _, to := range d.Transitions[from] {
			allowed[to] = true
		}
		for _, to := range models.Estados {
			assert.Equal(t, allowed[to], d.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	d := Default()
	for _, s := range []models.Estado{models.EstadoEntregaCompletada, models.EstadoRechazado, models.EstadoCancelado} {
		assert.True(t, d.IsTerminal(s))
		assert.Empty(t, d.AllowedTransitions(s))
		for _, to := range models.Estados {
			assert.False(t, d.CanTransition(s, to))
		}
	}
	assert.False(t, d.IsTerminal(models.EstadoPendiente))
}

func TestDocumentaryStateExits(t *testing.T) {
	d := Default()
	assert.Equal(t, []models.Estado{
		models.EstadoEvaluacionGarantes,
		models.EstadoDocumentosObservados,
		models.EstadoRechazado,
	}, d.AllowedTransitions(models.EstadoEvaluacionDocumental))
	assert.False(t, d.CanTransition(models.EstadoEvaluacionDocumental, models.EstadoAprobado))
}

func TestDeadline(t *testing.T) {
	d := Default()
	entered := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		estado models.Estado
		hours  int
	}{
		{models.EstadoEvaluacionDocumental, 24},
		{models.EstadoEvaluacionGarantes, 48},
		{models.EstadoEntrevistaProgramada, 24},
		{models.EstadoEnDecision, 72},
	}
	for _, tt := range tests {
		got := d.Deadline(tt.estado, entered)
		require.NotNil(t, got, tt.estado)
		assert.Equal(t, entered.Add(time.Duration(tt.hours)*time.Hour), *got)
	}
	assert.Nil(t, d.Deadline(models.EstadoAprobado, entered))
}

func TestThresholdBands(t *testing.T) {
	th := DefaultThresholds
	assert.Equal(t, BandRechazo, th.Band(39))
	assert.Equal(t, BandCondicionalBajo, th.Band(40))
	assert.Equal(t, BandCondicional, th.Band(65))
	assert.Equal(t, BandAprobacion, th.Band(80))
	assert.Equal(t, BandExcelente, th.Band(90))
	assert.Equal(t, 100, DefaultWeights.Total())
}

func TestValidate_RejectsBrokenDefinitions(t *testing.T) {
	cyclic := build()
	cyclic.LegalDocuments[DocCertificadoAprobacion] = []string{DocActaEntrega}
	assert.Error(t, cyclic.Validate())

	badWeights := build()
	badWeights.Weights.Financiero = 20
	assert.Error(t, badWeights.Validate())

	badTarget := build()
	badTarget.Transitions[models.EstadoPendiente] = append(badTarget.Transitions[models.EstadoPendiente], "archivado")
	assert.Error(t, badTarget.Validate())

	badDoc := build()
	badDoc.DocumentsOnEnter[models.EstadoAprobado] = []string{"poliza"}
	assert.Error(t, badDoc.Validate())
}

func TestDocumentsFor(t *testing.T) {
	d := Default()
	assert.Equal(t, []string{DocContratoCompraventa, DocPagare}, d.DocumentsFor(models.EstadoInicialConfirmada))
	assert.Empty(t, d.DocumentsFor(models.EstadoPendiente))
	assert.Equal(t, DocCertificadoAprobacion, d.Documents().Order()[0])
}
