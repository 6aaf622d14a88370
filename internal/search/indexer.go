// Package search keeps a denormalized copy of each expediente in
// Elasticsearch so analysts can filter the case queue.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrMissingIndex = errors.New("index name is required")

// Document is what gets indexed per solicitud.
type Document struct {
	SolicitudID             string     `json:"solicitudId"`
	NumeroSolicitud         string     `json:"numeroSolicitud"`
	Estado                  string     `json:"estado"`
	Prioridad               string     `json:"prioridad"`
	Titular                 string     `json:"titular"`
	DNI                     string     `json:"dni,omitempty"`
	Vehiculo                string     `json:"vehiculo,omitempty"`
	MontoFinanciado         float64    `json:"montoFinanciado"`
	ScoreConsolidado        int        `json:"scoreConsolidado"`
	Recomendacion           string     `json:"recomendacion"`
	NivelRiesgo             string     `json:"nivelRiesgo"`
	DatosCompletos          bool       `json:"datosCompletos"`
	RequiereAtencionUrgente bool       `json:"requiereAtencionUrgente"`
	FechaLimiteEvaluacion   *time.Time `json:"fechaLimiteEvaluacion,omitempty"`
	FechaGeneracion         time.Time  `json:"fechaGeneracion"`
}

// DocumentFrom flattens an expediente.
func DocumentFrom(exp *models.ExpedienteCompleto) Document {
	sol := exp.Solicitud
	monto, _ := sol.MontoFinanciado.Float64()
	doc := Document{
		SolicitudID:             sol.ID,
		NumeroSolicitud:         sol.NumeroSolicitud,
		Estado:                  string(sol.Estado),
		Prioridad:               string(sol.Prioridad),
		MontoFinanciado:         monto,
		ScoreConsolidado:        exp.ResumenEvaluacion.ScoreConsolidado,
		Recomendacion:           string(exp.ResumenEvaluacion.RecomendacionSistema),
		NivelRiesgo:             string(exp.ResumenEvaluacion.NivelRiesgoCalculado),
		DatosCompletos:          exp.DatosCompletos,
		RequiereAtencionUrgente: exp.Alertas.RequiereAtencionUrgente,
		FechaLimiteEvaluacion:   sol.FechaLimiteEvaluacion,
		FechaGeneracion:         exp.FechaGeneracion,
	}
	if exp.Titular != nil {
		doc.Titular = exp.Titular.NombreCompleto()
		doc.DNI = exp.Titular.DNI
	}
	if v := exp.Vehiculo; v != nil {
		doc.Vehiculo = strings.TrimSpace(v.Marca + " " + v.Modelo)
	}
	return doc
}

// Query filters the case queue. Zero values are ignored.
type Query struct {
	Text       string
	Estados    []string
	Prioridad  string
	Urgente    *bool
	MinScore   *int
	From, Size int
}

// Result is one page of hits.
type Result struct {
	Total int        `json:"total"`
	Hits  []Document `json:"hits"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// Index upserts the expediente keyed by solicitud id.
func (i *Indexer) Index(ctx context.Context, exp *models.ExpedienteCompleto) error {
	if i.index == "" {
		return ErrMissingIndex
	}
	body, err := json.Marshal(DocumentFrom(exp))
	if err != nil {
		return fmt.Errorf("marshal expediente document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: exp.Solicitud.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index expediente %s: %w", exp.Solicitud.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index expediente %s: %s", exp.Solicitud.ID, readError(res.Body, res.Status()))
	}

	i.logger.Debug("expediente indexed", map[string]interface{}{"solicitudId": exp.Solicitud.ID})
	return nil
}

// IndexBestEffort indexes exp and only logs a failure.
func (i *Indexer) IndexBestEffort(ctx context.Context, exp *models.ExpedienteCompleto) {
	if err := i.Index(ctx, exp); err != nil {
		i.logger.Warn("failed to index expediente", map[string]interface{}{
			"solicitudId": exp.Solicitud.ID,
			"error":       err,
		})
	}
}

// Search runs q against the index.
func (i *Indexer) Search(ctx context.Context, q Query) (*Result, error) {
	if i.index == "" {
		return nil, ErrMissingIndex
	}
	body, err := json.Marshal(BuildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	size := q.Size
	if size <= 0 {
		size = 20
	}
	from := q.From
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search expedientes: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search expedientes: %s", readError(res.Body, res.Status()))
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &Result{Total: raw.Hits.Total.Value, Hits: make([]Document, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

// BuildQuery turns q into an Elasticsearch bool query, most urgent and
// oldest deadline first.
func BuildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"numeroSolicitud^3", "titular^2", "dni^2", "vehiculo"},
				"type":   "best_fields",
			},
		})
	}
	if len(q.Estados) > 0 {
		filter = append(filter, map[string]interface{}{"terms": map[string]interface{}{"estado": q.Estados}})
	}
	if q.Prioridad != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"prioridad": q.Prioridad}})
	}
	if q.Urgente != nil {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"requiereAtencionUrgente": *q.Urgente}})
	}
	if q.MinScore != nil {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"scoreConsolidado": map[string]interface{}{"gte": *q.MinScore}},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"requiereAtencionUrgente": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"fechaLimiteEvaluacion": map[string]interface{}{"order": "asc", "missing": "_last"}},
		},
	}
}

func readError(body io.Reader, status string) string {
	b, _ := io.ReadAll(io.LimitReader(body, 4096))
	if len(b) == 0 {
		return status
	}
	return status + ": " + string(b)
}
