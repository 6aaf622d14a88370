package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/storage"
	"motocredito-workers/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeAssembler struct {
	exp *models.ExpedienteCompleto
	err error
}

func (f fakeAssembler) Assemble(context.Context, string) (*models.ExpedienteCompleto, error) {
	return f.exp, f.err
}

type fakeStore struct {
	putErr      error
	presignErr  error
	key         string
	data        []byte
	contentType string
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.key, s.data, s.contentType = key, data, contentType
	return key, nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://minio.local/" + key + "?X-Amz-Expires=" + ttl.String(), nil
}

func sampleExpediente() *models.ExpedienteCompleto {
	generated := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	return &models.ExpedienteCompleto{
		Solicitud: models.Solicitud{
			ID:               "sol-9",
			NumeroSolicitud:  "SOL-0009",
			Estado:           models.EstadoEnDecision,
			Prioridad:        models.PrioridadMedia,
			PrecioCompraMoto: decimal.NewFromInt(12000),
			Inicial:          decimal.NewFromInt(3000),
			MontoFinanciado:  decimal.NewFromInt(9000),
			MontoCuota:       decimal.NewFromInt(420),
			PlazoQuincenas:   30,
		},
		Titular:  &models.Cliente{Nombres: "Pedro", Apellidos: "Ramos"},
		Vehiculo: &models.Vehiculo{Marca: "Bajaj", Modelo: "Pulsar NS200", Anio: 2025},
		Referencias: []models.Referencia{
			{Nombre: "Lucía", Relacion: models.RelacionFamiliar, Estado: models.ReferenciaVerificado, PuntajeReferencia: 85},
		},
		Historial: []models.HistorialEstado{
			{EstadoAnterior: models.EstadoEntrevistaCompletada, EstadoNuevo: models.EstadoEnDecision, Actor: "analista:rosa", Fecha: generated.Add(-time.Hour)},
		},
		Documentos: []models.DocumentoProceso{{Tipo: "dni", Nombre: "dni.pdf", EstadoValidacion: models.ValidacionAprobado, URL: "https://x"}},
		ResumenEvaluacion: models.ResumenEvaluacion{
			ScoreConsolidado:     72,
			RecomendacionSistema: models.RecomendacionCondicional,
			NivelRiesgoCalculado: models.RiesgoMedio,
			Criterios: []models.CriterioEvaluacion{
				{Nombre: "documental", Puntaje: 100, Peso: 25, Estado: models.CriterioFavorable},
			},
		},
		Alertas: models.Alertas{
			TiemposExcedidos:        []string{"Estado en_decision excedió su límite"},
			Inconsistencias:         []string{},
			DocumentosVencidos:      []string{},
			Anomalias:               []string{},
			RequiereAtencionUrgente: true,
		},
		DatosCompletos:  true,
		FechaGeneracion: generated,
	}
}

func TestBuild_WritesSheets(t *testing.T) {
	data, err := Build(sampleExpediente())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetResumen, SheetCriterios, SheetHistorial, SheetReferencias, SheetAlertas, SheetDocumentos}, f.GetSheetList())

	v, _ := f.GetCellValue(SheetResumen, "B2")
	assert.Equal(t, "SOL-0009", v)
	v, _ = f.GetCellValue(SheetResumen, "B5")
	assert.Equal(t, "Pedro Ramos", v)
	v, _ = f.GetCellValue(SheetResumen, "B7")
	assert.Equal(t, "Bajaj Pulsar NS200 2025", v)

	v, _ = f.GetCellValue(SheetCriterios, "A2")
	assert.Equal(t, "documental", v)
	v, _ = f.GetCellValue(SheetCriterios, "D2")
	assert.Equal(t, string(models.CriterioFavorable), v)

	v, _ = f.GetCellValue(SheetHistorial, "C2")
	assert.Equal(t, string(models.EstadoEnDecision), v)

	rows, err := f.GetRows(SheetAlertas)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "tiempos_excedidos", rows[1][0])
	assert.Equal(t, "urgente", rows[2][0])
}

func TestBuild_IncludesApprovedTerms(t *testing.T) {
	exp := sampleExpediente()
	exp.TerminosAprobados = &models.TerminosAprobados{Tasa: decimal.RequireFromString("0.04"), PlazoQuincenas: 24, MontoCuota: decimal.NewFromInt(500)}

	data, err := Build(exp)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetResumen)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, []string{"Cuota aprobada", "500.00"}, last)
}

func TestExport_UploadsAndPresigns(t *testing.T) {
	store := &fakeStore{}
	e := NewExporter(fakeAssembler{exp: sampleExpediente()}, store, time.Hour, logger.NewTestLogger(t))
	e.now = func() time.Time { return time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC) }

	rep, err := e.Export(context.Background(), "sol-9")
	require.NoError(t, err)

	assert.Equal(t, "expediente_SOL-0009_20260504_110000.xlsx", rep.FileName)
	assert.Equal(t, "reportes/sol-9/"+rep.FileName, rep.Key)
	assert.True(t, strings.HasPrefix(rep.URL, "https://minio.local/reportes/sol-9/"))
	assert.Equal(t, storage.ContentTypeXLSX, store.contentType)
	assert.NotEmpty(t, store.data)
}

func TestExport_AssemblyErrorPassesThrough(t *testing.T) {
	e := NewExporter(fakeAssembler{err: apperrors.NewSolicitudNotFoundError("x")}, &fakeStore{}, time.Hour, logger.NewTestLogger(t))

	_, err := e.Export(context.Background(), "x")
	assert.True(t, errors.Is(err, apperrors.ErrSolicitudNotFound))
}

func TestExport_StorageFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"put", &fakeStore{putErr: errors.New("bucket missing")}},
		{"presign", &fakeStore{presignErr: errors.New("clock skew")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExporter(fakeAssembler{exp: sampleExpediente()}, tt.store, time.Hour, logger.NewTestLogger(t))
			_, err := e.Export(context.Background(), "sol-9")
			assert.Equal(t, apperrors.ErrCodeDocumentGenerationFailed, apperrors.CodeOf(err))
		})
	}
}
