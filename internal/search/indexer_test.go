package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]interface{}
}

func newTestServer(t *testing.T, status int, response string) (*elasticsearch.Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recorded{method: r.Method, path: r.URL.Path}
		if len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		calls = append(calls, rec)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, &calls
}

func sample() *models.ExpedienteCompleto {
	limite := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return &models.ExpedienteCompleto{
		Solicitud: models.Solicitud{
			ID:                    "sol-7",
			NumeroSolicitud:       "SOL-0007",
			Estado:                models.EstadoEvaluacionDocumental,
			Prioridad:             models.PrioridadAlta,
			MontoFinanciado:       decimal.NewFromInt(15500),
			FechaLimiteEvaluacion: &limite,
		},
		Titular:           &models.Cliente{Nombres: "Elena", Apellidos: "Paz", DNI: "44556677"},
		Vehiculo:          &models.Vehiculo{Marca: "Yamaha", Modelo: "FZ25"},
		ResumenEvaluacion: models.ResumenEvaluacion{ScoreConsolidado: 81, RecomendacionSistema: models.RecomendacionAprobar, NivelRiesgoCalculado: models.RiesgoBajo},
		Alertas:           models.Alertas{RequiereAtencionUrgente: true},
		DatosCompletos:    true,
	}
}

func TestDocumentFrom(t *testing.T) {
	doc := DocumentFrom(sample())
	assert.Equal(t, "sol-7", doc.SolicitudID)
	assert.Equal(t, "Elena Paz", doc.Titular)
	assert.Equal(t, "Yamaha FZ25", doc.Vehiculo)
	assert.Equal(t, 15500.0, doc.MontoFinanciado)
	assert.Equal(t, "aprobar", doc.Recomendacion)
	assert.True(t, doc.RequiereAtencionUrgente)
}

func TestIndex_PutsDocumentById(t *testing.T) {
	client, calls := newTestServer(t, http.StatusCreated, `{"result":"created"}`)
	idx := NewIndexer(client, "expedientes", logger.NewTestLogger(t))

	require.NoError(t, idx.Index(context.Background(), sample()))

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, http.MethodPut, c.method)
	assert.Equal(t, "/expedientes/_doc/sol-7", c.path)
	assert.Equal(t, "SOL-0007", c.body["numeroSolicitud"])
	assert.Equal(t, float64(81), c.body["scoreConsolidado"])
}

func TestIndex_ErrorResponse(t *testing.T) {
	client, _ := newTestServer(t, http.StatusBadRequest, `{"error":"mapper_parsing_exception"}`)
	idx := NewIndexer(client, "expedientes", logger.NewTestLogger(t))

	err := idx.Index(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")

	// best effort never panics or returns
	idx.IndexBestEffort(context.Background(), sample())
}

func TestIndex_MissingIndex(t *testing.T) {
	client, calls := newTestServer(t, http.StatusOK, `{}`)
	idx := NewIndexer(client, "", logger.NewTestLogger(t))

	assert.ErrorIs(t, idx.Index(context.Background(), sample()), ErrMissingIndex)
	assert.Empty(t, *calls)
}

func TestSearch_DecodesHits(t *testing.T) {
	client, calls := newTestServer(t, http.StatusOK, `{
		"hits": {
			"total": {"value": 1},
			"hits": [{"_id": "sol-7", "_source": {"solicitudId": "sol-7", "numeroSolicitud": "SOL-0007", "scoreConsolidado": 81}}]
		}
	}`)
	idx := NewIndexer(client, "expedientes", logger.NewTestLogger(t))

	urgent := true
	res, err := idx.Search(context.Background(), Query{Text: "Paz", Estados: []string{"evaluacion_documental"}, Urgente: &urgent})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "SOL-0007", res.Hits[0].NumeroSolicitud)

	c := (*calls)[0]
	assert.Equal(t, "/expedientes/_search", c.path)
	boolQ := c.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQ["filter"], 2)
	assert.Len(t, boolQ["must"], 1)
}

func TestBuildQuery_DefaultsToMatchAll(t *testing.T) {
	q := BuildQuery(Query{})
	boolQ := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQ["must"].([]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "match_all")
	assert.Empty(t, boolQ["filter"])
}

func TestBuildQuery_MinScoreAndPriority(t *testing.T) {
	minScore := 65
	q := BuildQuery(Query{Prioridad: "alta", MinScore: &minScore})
	filter := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	require.Len(t, filter, 2)
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"prioridad": "alta"}}, filter[0])
}
