package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"motocredito-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var solicitudCols = []string{
	"id", "numero_solicitud", "estado", "prioridad",
	"cliente_id", "fiador_id", "vehiculo_id", "referencia_ids",
	"precio_compra_moto", "inicial", "monto_financiado", "monto_cuota", "plazo_quincenas", "total_a_pagar",
	"score_documental", "score_garantes", "score_entrevista", "score_final",
	"fecha_limite_evaluacion", "fecha_cambio_estado", "requiere_atencion_especial", "observaciones",
	"version", "creado_por", "fecha_creacion", "actualizado_por", "fecha_actualizacion",
}

var clienteCols = []string{
	"id", "rol", "nombres", "apellidos", "dni", "email", "telefono", "direccion",
	"ocupacion", "empleador", "rango_ingresos", "ingreso_mensual",
	"fecha_nacimiento", "edad",
	"estado_validacion_documentos", "datos_verificados",
	"buro_consultado", "buro_puntaje", "buro_historial_pagos", "buro_deudas_vigentes", "buro_fecha_consulta",
	"puntaje_confiabilidad", "es_apto_crediticiamente", "inconsistencias", "fecha_creacion",
}

func newGateway(t *testing.T) (*PostgresGateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresGateway(db), mock
}

func TestPostgresGateway_GetApplication(t *testing.T) {
	g, mock := newGateway(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limite := ts.Add(24 * time.Hour)

	rows := sqlmock.NewRows(solicitudCols).AddRow(
		"sol-1", "SOL-2026-0001", "evaluacion_documental", "media",
		"cli-1", nil, "veh-1", "{ref-1,ref-2}",
		"12000.00", "3000.00", "9000.00", "450.00", 24, "10800.00",
		int64(70), nil, nil, nil,
		limite, ts, false, nil,
		3, "asesor-1", ts, nil, ts,
	)
	mock.ExpectQuery(`FROM solicitudes_credito WHERE id = \$1`).WithArgs("sol-1").WillReturnRows(rows)

	sol, err := g.GetApplication(context.Background(), "sol-1")
	require.NoError(t, err)

	assert.Equal(t, models.EstadoEvaluacionDocumental, sol.Estado)
	assert.Equal(t, models.PrioridadMedia, sol.Prioridad)
	assert.Equal(t, []string{"ref-1", "ref-2"}, sol.ReferenciaIDs)
	assert.True(t, sol.MontoFinanciado.Equal(decimal.NewFromInt(9000)))
	assert.Empty(t, sol.FiadorID)
	require.NotNil(t, sol.ScoreDocumental)
	assert.Equal(t, 70, *sol.ScoreDocumental)
	assert.Nil(t, sol.ScoreGarantes)
	require.NotNil(t, sol.FechaLimiteEvaluacion)
	assert.True(t, limite.Equal(*sol.FechaLimiteEvaluacion))
	assert.Equal(t, 3, sol.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_GetApplication_NotFound(t *testing.T) {
	g, mock := newGateway(t)
	mock.ExpectQuery(`FROM solicitudes_credito WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(solicitudCols))

	_, err := g.GetApplication(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_GetApplication_QueryError(t *testing.T) {
	g, mock := newGateway(t)
	mock.ExpectQuery(`FROM solicitudes_credito`).WillReturnError(errors.New("connection reset"))

	_, err := g.GetApplication(context.Background(), "sol-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresGateway_GetPerson(t *testing.T) {
	g, mock := newGateway(t)
	born := time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM clientes WHERE id = \$1`).WithArgs("cli-1").WillReturnRows(
		sqlmock.NewRows(clienteCols).AddRow(
			"cli-1", "titular", "María", "Torres", "45678912", "maria@example.com", nil, "Av. Grau 123",
			"comerciante", nil, "2000_3000", "0",
			born, 35,
			"aprobado", true,
			true, int64(640), "bueno", int64(1), ts,
			80, true, "{}", ts,
		),
	)

	c, err := g.GetPerson(context.Background(), "cli-1")
	require.NoError(t, err)
	assert.Equal(t, "María Torres", c.NombreCompleto())
	assert.Equal(t, models.ValidacionAprobado, c.EstadoValidacionDocumentos)
	assert.Equal(t, 640, c.Buro.Puntaje)
	assert.Equal(t, models.HistorialBueno, c.Buro.HistorialPagos)
	assert.Equal(t, float64(2500), c.IngresoEstimado())
	require.NotNil(t, c.FechaNacimiento)
	assert.Empty(t, c.Telefono)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_GetPerson_NullIncomeUsesRange(t *testing.T) {
	g, mock := newGateway(t)
	ts := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM clientes WHERE id = \$1`).WithArgs("cli-1").WillReturnRows(
		sqlmock.NewRows(clienteCols).AddRow(
			"cli-1", "titular", "Luis", "Quispe", "40123456", nil, nil, nil,
			nil, nil, "2000_3000", nil,
			nil, 0,
			"pendiente", false,
			false, nil, nil, nil, nil,
			0, false, "{}", ts,
		),
	)

	c, err := g.GetPerson(context.Background(), "cli-1")
	require.NoError(t, err)
	assert.True(t, c.IngresoMensual.IsZero())
	assert.Equal(t, "2000_3000", c.RangoIngresos)
	assert.Equal(t, float64(2500), c.IngresoEstimado())
	assert.Nil(t, c.FechaNacimiento)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_GetReferences(t *testing.T) {
	g, mock := newGateway(t)

	refs, err := g.GetReferences(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)

	cols := []string{"id", "cliente_id", "nombre", "telefono", "relacion", "estado", "puntaje_referencia", "comentarios", "fecha_verificacion"}
	mock.ExpectQuery(`FROM referencias WHERE id = ANY`).WillReturnRows(
		sqlmock.NewRows(cols).
			AddRow("ref-1", "cli-1", "Rosa Quispe", "999111222", "familiar", "verificado", 80, nil, nil).
			AddRow("ref-2", "cli-1", "Luis Paredes", nil, "laboral", "pendiente", 0, "no contesta", nil),
	)

	refs, err = g.GetReferences(context.Background(), []string{"ref-1", "ref-2", "ref-3"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.True(t, refs[0].Verificada())
	assert.Equal(t, "no contesta", refs[1].Comentarios)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_ApplyTransition(t *testing.T) {
	g, mock := newGateway(t)
	changedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE solicitudes_credito`).
		WithArgs("evaluacion_garantes", sqlmock.AnyArg(), "analista-1", "sol-1", "evaluacion_documental", 4).
		WillReturnRows(sqlmock.NewRows([]string{"fecha_cambio_estado"}).AddRow(changedAt))
	mock.ExpectExec(`INSERT INTO historial_estados`).
		WithArgs("hist-1", "sol-1", "evaluacion_documental", "evaluacion_garantes", "analista-1", "documentos conformes", changedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	limite := changedAt.Add(48 * time.Hour)
	got, err := g.ApplyTransition(context.Background(), TransitionWrite{
		SolicitudID:     "sol-1",
		Expected:        models.EstadoEvaluacionDocumental,
		ExpectedVersion: 4,
		Nuevo:           models.EstadoEvaluacionGarantes,
		FechaLimite:     &limite,
		Historial:       models.HistorialEstado{ID: "hist-1", Actor: "analista-1", Motivo: "documentos conformes"},
	})
	require.NoError(t, err)
	assert.True(t, changedAt.Equal(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_ApplyTransition_Conflict(t *testing.T) {
	g, mock := newGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE solicitudes_credito`).
		WillReturnRows(sqlmock.NewRows([]string{"fecha_cambio_estado"}))
	mock.ExpectRollback()

	_, err := g.ApplyTransition(context.Background(), TransitionWrite{
		SolicitudID: "sol-1",
		Expected:    models.EstadoEnDecision,
		Nuevo:       models.EstadoAprobado,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_ApplyTransition_HistoryInsertFails(t *testing.T) {
	g, mock := newGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE solicitudes_credito`).
		WillReturnRows(sqlmock.NewRows([]string{"fecha_cambio_estado"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO historial_estados`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := g.ApplyTransition(context.Background(), TransitionWrite{
		SolicitudID: "sol-1",
		Expected:    models.EstadoEnDecision,
		Nuevo:       models.EstadoAprobado,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert historial")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_UpdateScores(t *testing.T) {
	g, mock := newGateway(t)

	mock.ExpectExec(`UPDATE solicitudes_credito`).
		WithArgs(100, 70, 85, 84, "sol-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE solicitudes_credito`).
		WithArgs(0, 0, 0, 0, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, g.UpdateScores(context.Background(), "sol-1", Scores{Documental: 100, Garantes: 70, Entrevista: 85, Final: 84}))
	assert.ErrorIs(t, g.UpdateScores(context.Background(), "missing", Scores{}), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_GetApprovedTerms_None(t *testing.T) {
	g, mock := newGateway(t)
	mock.ExpectQuery(`FROM terminos_aprobados`).
		WithArgs("sol-1").
		WillReturnRows(sqlmock.NewRows([]string{"solicitud_id", "tasa", "plazo_quincenas", "monto_cuota", "aprobado_por", "fecha"}))

	_, err := g.GetApprovedTerms(context.Background(), "sol-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
