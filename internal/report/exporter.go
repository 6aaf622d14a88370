// Package report exports an expediente as an XLSX workbook, uploads it to
// blob storage and hands back a temporary download URL.
package report

import (
	"context"
	"fmt"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/storage"
	"motocredito-workers/internal/models"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the generated workbook.
const (
	SheetResumen     = "Resumen"
	SheetCriterios   = "Criterios"
	SheetHistorial   = "Historial"
	SheetReferencias = "Referencias"
	SheetAlertas     = "Alertas"
	SheetDocumentos  = "Documentos"
)

const documentName = "reporte_expediente"

// Assembler builds the expediente being exported.
type Assembler interface {
	Assemble(ctx context.Context, id string) (*models.ExpedienteCompleto, error)
}

// Store is the blob storage the workbook is uploaded to.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Report points at an uploaded workbook.
type Report struct {
	SolicitudID string    `json:"solicitudId"`
	FileName    string    `json:"fileName"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Exporter struct {
	assembler Assembler
	store     Store
	urlTTL    time.Duration
	now       func() time.Time
	logger    logger.Logger
}

func NewExporter(a Assembler, store Store, urlTTL time.Duration, log logger.Logger) *Exporter {
	return &Exporter{
		assembler: a,
		store:     store,
		urlTTL:    urlTTL,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.WithFields(map[string]interface{}{"component": "report"}),
	}
}

// Export assembles solicitud id, renders it and uploads the workbook.
// Assembly errors are returned as they are.
func (e *Exporter) Export(ctx context.Context, id string) (*Report, error) {
	exp, err := e.assembler.Assemble(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := Build(exp)
	if err != nil {
		return nil, apperrors.NewDocumentGenerationFailedError(documentName, err)
	}

	now := e.now()
	fileName := fmt.Sprintf("expediente_%s_%s.xlsx", exp.Solicitud.NumeroSolicitud, now.Format("20060102_150405"))
	key, err := e.store.Put(ctx, "reportes/"+id+"/"+fileName, data, storage.ContentTypeXLSX)
	if err != nil {
		return nil, apperrors.NewDocumentGenerationFailedError(documentName, err)
	}

	url, err := e.store.PresignedURL(ctx, key, e.urlTTL)
	if err != nil {
		return nil, apperrors.NewDocumentGenerationFailedError(documentName, err)
	}

	e.logger.Info("expediente report exported", map[string]interface{}{
		"solicitudId": id,
		"key":         key,
		"bytes":       len(data),
	})
	return &Report{SolicitudID: id, FileName: fileName, Key: key, URL: url, GeneratedAt: now}, nil
}

// Build renders exp into an XLSX workbook.
func Build(exp *models.ExpedienteCompleto) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetResumen); err != nil {
		return nil, err
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: "motocredito-workers",
		Title:   "Expediente " + exp.Solicitud.NumeroSolicitud,
		Created: exp.FechaGeneracion.Format(time.RFC3339),
	})

	for _, name := range []string{SheetCriterios, SheetHistorial, SheetReferencias, SheetAlertas, SheetDocumentos} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writers := []func(*excelize.File, *models.ExpedienteCompleto) error{
		writeResumen,
		writeCriterios,
		writeHistorial,
		writeReferencias,
		writeAlertas,
		writeDocumentos,
	}
	for _, w := range writers {
		if err := w(f, exp); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeTable writes a header row and one row per entry starting at A1.
func writeTable(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeResumen(f *excelize.File, exp *models.ExpedienteCompleto) error {
	sol := exp.Solicitud
	r := exp.ResumenEvaluacion
	rows := [][]interface{}{
		{"Número de solicitud", sol.NumeroSolicitud},
		{"Estado", string(sol.Estado)},
		{"Prioridad", string(sol.Prioridad)},
		{"Titular", nombre(exp.Titular)},
		{"Fiador", nombre(exp.Fiador)},
		{"Vehículo", vehiculo(exp.Vehiculo)},
		{"Precio", sol.PrecioCompraMoto.StringFixed(2)},
		{"Inicial", sol.Inicial.StringFixed(2)},
		{"Monto financiado", sol.MontoFinanciado.StringFixed(2)},
		{"Cuota", sol.MontoCuota.StringFixed(2)},
		{"Plazo (quincenas)", sol.PlazoQuincenas},
		{"Score consolidado", r.ScoreConsolidado},
		{"Recomendación", string(r.RecomendacionSistema)},
		{"Nivel de riesgo", string(r.NivelRiesgoCalculado)},
		{"Confianza", r.Confianza},
		{"Probabilidad de aprobación", r.ProbabilidadAprobacion},
		{"Probabilidad de incumplimiento", r.ProbabilidadIncumplimiento},
		{"Datos completos", exp.DatosCompletos},
		{"Error de carga", exp.ErrorCarga},
		{"Generado", exp.FechaGeneracion.Format(time.RFC3339)},
	}
	if t := exp.TerminosAprobados; t != nil {
		rows = append(rows,
			[]interface{}{"Tasa aprobada", t.Tasa.String()},
			[]interface{}{"Plazo aprobado", t.PlazoQuincenas},
			[]interface{}{"Cuota aprobada", t.MontoCuota.StringFixed(2)},
		)
	}
	return writeTable(f, SheetResumen, []interface{}{"Campo", "Valor"}, rows)
}

func writeCriterios(f *excelize.File, exp *models.ExpedienteCompleto) error {
	rows := make([][]interface{}, 0, len(exp.ResumenEvaluacion.Criterios))
	for _, c := range exp.ResumenEvaluacion.Criterios {
		rows = append(rows, []interface{}{c.Nombre, c.Puntaje, c.Peso, string(c.Estado)})
	}
	return writeTable(f, SheetCriterios, []interface{}{"Criterio", "Puntaje", "Peso", "Estado"}, rows)
}

func writeHistorial(f *excelize.File, exp *models.ExpedienteCompleto) error {
	rows := make([][]interface{}, 0, len(exp.Historial))
	for _, h := range exp.Historial {
		rows = append(rows, []interface{}{h.Fecha.Format(time.RFC3339), string(h.EstadoAnterior), string(h.EstadoNuevo), h.Actor, h.Motivo})
	}
	return writeTable(f, SheetHistorial, []interface{}{"Fecha", "Estado anterior", "Estado nuevo", "Actor", "Motivo"}, rows)
}

func writeReferencias(f *excelize.File, exp *models.ExpedienteCompleto) error {
	rows := make([][]interface{}, 0, len(exp.Referencias))
	for _, r := range exp.Referencias {
		rows = append(rows, []interface{}{r.Nombre, string(r.Relacion), string(r.Estado), r.PuntajeReferencia})
	}
	return writeTable(f, SheetReferencias, []interface{}{"Nombre", "Relación", "Estado", "Puntaje"}, rows)
}

func writeAlertas(f *excelize.File, exp *models.ExpedienteCompleto) error {
	a := exp.Alertas
	var rows [][]interface{}
	add := func(tipo string, msgs []string) {
		for _, m := range msgs {
			rows = append(rows, []interface{}{tipo, m})
		}
	}
	add("documentos_vencidos", a.DocumentosVencidos)
	add("tiempos_excedidos", a.TiemposExcedidos)
	add("inconsistencias", a.Inconsistencias)
	add("anomalias", a.Anomalias)
	if a.RequiereAtencionUrgente {
		rows = append(rows, []interface{}{"urgente", "Requiere atención urgente"})
	}
	return writeTable(f, SheetAlertas, []interface{}{"Tipo", "Mensaje"}, rows)
}

func writeDocumentos(f *excelize.File, exp *models.ExpedienteCompleto) error {
	rows := make([][]interface{}, 0, len(exp.Documentos))
	for _, d := range exp.Documentos {
		rows = append(rows, []interface{}{d.Tipo, d.Nombre, string(d.EstadoValidacion), d.URL})
	}
	return writeTable(f, SheetDocumentos, []interface{}{"Tipo", "Nombre", "Validación", "URL"}, rows)
}

func nombre(c *models.Cliente) string {
	if c == nil {
		return ""
	}
	return c.NombreCompleto()
}

func vehiculo(v *models.Vehiculo) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %d", v.Marca, v.Modelo, v.Anio)
}
