package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"motocredito-workers/internal/common/database"
	"motocredito-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresGateway implements Gateway on top of the solicitudes_credito schema.
type PostgresGateway struct {
	db *sql.DB
}

func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

type scannable interface {
	Scan(dest ...any) error
}

const solicitudColumns = `
	id, numero_solicitud, estado, prioridad,
	cliente_id, fiador_id, vehiculo_id, referencia_ids,
	precio_compra_moto, inicial, monto_financiado, monto_cuota, plazo_quincenas, total_a_pagar,
	score_documental, score_garantes, score_entrevista, score_final,
	fecha_limite_evaluacion, fecha_cambio_estado, requiere_atencion_especial, observaciones,
	version, creado_por, fecha_creacion, actualizado_por, fecha_actualizacion`

func (g *PostgresGateway) GetApplication(ctx context.Context, id string) (*models.Solicitud, error) {
	row := g.db.QueryRowContext(ctx, `SELECT `+solicitudColumns+`
		FROM solicitudes_credito WHERE id = $1`, id)
	sol, err := scanSolicitud(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get solicitud %s: %w", id, err)
	}
	return sol, nil
}

func (g *PostgresGateway) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Solicitud, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT `+solicitudColumns+`
		FROM solicitudes_credito
		WHERE fecha_limite_evaluacion IS NOT NULL AND fecha_limite_evaluacion < $1
		ORDER BY fecha_limite_evaluacion ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	defer rows.Close()

	out := []models.Solicitud{}
	for rows.Next() {
		sol, err := scanSolicitud(rows)
		if err != nil {
			return nil, fmt.Errorf("list overdue: %w", err)
		}
		out = append(out, *sol)
	}
	return out, rows.Err()
}

func scanSolicitud(s scannable) (*models.Solicitud, error) {
	var (
		sol                                    models.Solicitud
		fiadorID, observaciones                sql.NullString
		creadoPor, actualizadoPor              sql.NullString
		scoreDoc, scoreGar, scoreEnt, scoreFin sql.NullInt64
		fechaLimite                            sql.NullTime
	)
	err := s.Scan(
		&sol.ID, &sol.NumeroSolicitud, &sol.Estado, &sol.Prioridad,
		&sol.ClienteID, &fiadorID, &sol.VehiculoID, pq.Array(&sol.ReferenciaIDs),
		&sol.PrecioCompraMoto, &sol.Inicial, &sol.MontoFinanciado, &sol.MontoCuota, &sol.PlazoQuincenas, &sol.TotalAPagar,
		&scoreDoc, &scoreGar, &scoreEnt, &scoreFin,
		&fechaLimite, &sol.FechaCambioEstado, &sol.RequiereAtencionEspecial, &observaciones,
		&sol.Version, &creadoPor, &sol.FechaCreacion, &actualizadoPor, &sol.FechaActualizacion,
	)
	if err != nil {
		return nil, err
	}
	sol.FiadorID = fiadorID.String
	sol.Observaciones = observaciones.String
	sol.CreadoPor = creadoPor.String
	sol.ActualizadoPor = actualizadoPor.String
	sol.ScoreDocumental = nullInt(scoreDoc)
	sol.ScoreGarantes = nullInt(scoreGar)
	sol.ScoreEntrevista = nullInt(scoreEnt)
	sol.ScoreFinal = nullInt(scoreFin)
	if fechaLimite.Valid {
		t := fechaLimite.Time
		sol.FechaLimiteEvaluacion = &t
	}
	if sol.ReferenciaIDs == nil {
		sol.ReferenciaIDs = []string{}
	}
	return &sol, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (g *PostgresGateway) GetPerson(ctx context.Context, id string) (*models.Cliente, error) {
	var (
		c                           models.Cliente
		email, telefono, direccion  sql.NullString
		ocupacion, empleador, rango sql.NullString
		nacimiento, fechaBuro       sql.NullTime
		buroPuntaje, buroDeudas     sql.NullInt64
		buroHistorial               sql.NullString
		ingreso                     decimal.NullDecimal
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT id, rol, nombres, apellidos, dni, email, telefono, direccion,
		       ocupacion, empleador, rango_ingresos, ingreso_mensual,
		       fecha_nacimiento, edad,
		       estado_validacion_documentos, datos_verificados,
		       buro_consultado, buro_puntaje, buro_historial_pagos, buro_deudas_vigentes, buro_fecha_consulta,
		       puntaje_confiabilidad, es_apto_crediticiamente, inconsistencias, fecha_creacion
		FROM clientes WHERE id = $1`, id).Scan(
		&c.ID, &c.Rol, &c.Nombres, &c.Apellidos, &c.DNI, &email, &telefono, &direccion,
		&ocupacion, &empleador, &rango, &ingreso,
		&nacimiento, &c.Edad,
		&c.EstadoValidacionDocumentos, &c.DatosVerificados,
		&c.Buro.Consultado, &buroPuntaje, &buroHistorial, &buroDeudas, &fechaBuro,
		&c.PuntajeConfiabilidad, &c.EsAptoCrediticiamente, pq.Array(&c.Inconsistencias), &c.FechaCreacion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cliente %s: %w", id, err)
	}
	c.Email, c.Telefono, c.Direccion = email.String, telefono.String, direccion.String
	c.Ocupacion, c.Empleador, c.RangoIngresos = ocupacion.String, empleador.String, rango.String
	if ingreso.Valid {
		c.IngresoMensual = ingreso.Decimal
	}
	c.Buro.Puntaje = int(buroPuntaje.Int64)
	c.Buro.DeudasVigentes = int(buroDeudas.Int64)
	c.Buro.HistorialPagos = models.HistorialPagos(buroHistorial.String)
	if nacimiento.Valid {
		t := nacimiento.Time
		c.FechaNacimiento = &t
	}
	if fechaBuro.Valid {
		t := fechaBuro.Time
		c.Buro.FechaConsulta = &t
	}
	return &c, nil
}

func (g *PostgresGateway) GetVehicle(ctx context.Context, id string) (*models.Vehiculo, error) {
	var (
		v     models.Vehiculo
		color sql.NullString
	)
	err := g.db.QueryRowContext(ctx, `
		SELECT id, marca, modelo, anio, condicion, color, precio, stock, disponible
		FROM vehiculos WHERE id = $1`, id).Scan(
		&v.ID, &v.Marca, &v.Modelo, &v.Anio, &v.Condicion, &color, &v.Precio, &v.Stock, &v.Disponible,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehiculo %s: %w", id, err)
	}
	v.Color = color.String
	return &v, nil
}

func (g *PostgresGateway) GetReferences(ctx context.Context, ids []string) ([]models.Referencia, error) {
	out := []models.Referencia{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, cliente_id, nombre, telefono, relacion, estado,
		       puntaje_referencia, comentarios, fecha_verificacion
		FROM referencias WHERE id = ANY($1)
		ORDER BY array_position($1, id)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get referencias: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                     models.Referencia
			telefono, comentarios sql.NullString
			verificada            sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.ClienteID, &r.Nombre, &telefono, &r.Relacion, &r.Estado,
			&r.PuntajeReferencia, &comentarios, &verificada); err != nil {
			return nil, fmt.Errorf("scan referencia: %w", err)
		}
		r.Telefono, r.Comentarios = telefono.String, comentarios.String
		if verificada.Valid {
			t := verificada.Time
			r.FechaVerificacion = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) GetHistory(ctx context.Context, solicitudID string) ([]models.HistorialEstado, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, solicitud_id, estado_anterior, estado_nuevo, actor, motivo, fecha
		FROM historial_estados WHERE solicitud_id = $1
		ORDER BY fecha ASC, id ASC`, solicitudID)
	if err != nil {
		return nil, fmt.Errorf("get historial: %w", err)
	}
	defer rows.Close()

	out := []models.HistorialEstado{}
	for rows.Next() {
		var (
			h      models.HistorialEstado
			motivo sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.SolicitudID, &h.EstadoAnterior, &h.EstadoNuevo, &h.Actor, &motivo, &h.Fecha); err != nil {
			return nil, fmt.Errorf("scan historial: %w", err)
		}
		h.Motivo = motivo.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) GetEvaluations(ctx context.Context, solicitudID string) ([]models.Evaluacion, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, solicitud_id, tipo, evaluador_id, puntaje, estado, observaciones, fecha_inicio, fecha_fin
		FROM evaluaciones WHERE solicitud_id = $1
		ORDER BY fecha_inicio ASC, id ASC`, solicitudID)
	if err != nil {
		return nil, fmt.Errorf("get evaluaciones: %w", err)
	}
	defer rows.Close()

	out := []models.Evaluacion{}
	for rows.Next() {
		var (
			e       models.Evaluacion
			puntaje sql.NullInt64
			obs     sql.NullString
			fin     sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.SolicitudID, &e.Tipo, &e.EvaluadorID, &puntaje, &e.Estado, &obs, &e.FechaInicio, &fin); err != nil {
			return nil, fmt.Errorf("scan evaluacion: %w", err)
		}
		e.Puntaje = nullInt(puntaje)
		e.Observaciones = obs.String
		if fin.Valid {
			t := fin.Time
			e.FechaFin = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) GetDocuments(ctx context.Context, solicitudID string) ([]models.DocumentoProceso, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, solicitud_id, tipo, nombre, clave_almacenamiento, estado_validacion, version, fecha_subida
		FROM documentos_proceso WHERE solicitud_id = $1
		ORDER BY fecha_subida ASC, id ASC`, solicitudID)
	if err != nil {
		return nil, fmt.Errorf("get documentos: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentoProceso{}
	for rows.Next() {
		var d models.DocumentoProceso
		if err := rows.Scan(&d.ID, &d.SolicitudID, &d.Tipo, &d.Nombre, &d.ClaveAlmacenamiento,
			&d.EstadoValidacion, &d.Version, &d.FechaSubida); err != nil {
			return nil, fmt.Errorf("scan documento: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) GetApprovedTerms(ctx context.Context, solicitudID string) (*models.TerminosAprobados, error) {
	var t models.TerminosAprobados
	err := g.db.QueryRowContext(ctx, `
		SELECT solicitud_id, tasa, plazo_quincenas, monto_cuota, aprobado_por, fecha
		FROM terminos_aprobados WHERE solicitud_id = $1`, solicitudID).Scan(
		&t.SolicitudID, &t.Tasa, &t.PlazoQuincenas, &t.MontoCuota, &t.AprobadoPor, &t.Fecha,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get terminos aprobados: %w", err)
	}
	return &t, nil
}

// ApplyTransition guards the update with the expected estado and version;
// zero affected rows means another writer got there first.
func (g *PostgresGateway) ApplyTransition(ctx context.Context, w TransitionWrite) (time.Time, error) {
	var changedAt time.Time
	err := database.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE solicitudes_credito
			SET estado = $1,
			    fecha_limite_evaluacion = $2,
			    fecha_cambio_estado = now(),
			    actualizado_por = $3,
			    fecha_actualizacion = now(),
			    version = version + 1
			WHERE id = $4 AND estado = $5 AND version = $6
			RETURNING fecha_cambio_estado`,
			w.Nuevo, w.FechaLimite, w.Historial.Actor, w.SolicitudID, w.Expected, w.ExpectedVersion,
		).Scan(&changedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("update estado: %w", err)
		}

		id := w.Historial.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO historial_estados (id, solicitud_id, estado_anterior, estado_nuevo, actor, motivo, fecha)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, w.SolicitudID, w.Expected, w.Nuevo, w.Historial.Actor, w.Historial.Motivo, changedAt,
		)
		if err != nil {
			return fmt.Errorf("insert historial: %w", err)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return changedAt, nil
}

func (g *PostgresGateway) UpdateScores(ctx context.Context, solicitudID string, s Scores) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE solicitudes_credito
		SET score_documental = $1, score_garantes = $2, score_entrevista = $3, score_final = $4,
		    fecha_actualizacion = now()
		WHERE id = $5`,
		s.Documental, s.Garantes, s.Entrevista, s.Final, solicitudID,
	)
	if err != nil {
		return fmt.Errorf("update scores: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
