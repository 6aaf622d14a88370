package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/validation"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"
	"motocredito-workers/internal/search"

	"github.com/go-chi/chi/v5"
)

var transitionSchema = validation.MustCompile("transition-request", `{
	"type": "object",
	"required": ["estado", "actor"],
	"properties": {
		"estado": {"type": "string", "minLength": 1},
		"actor":  {"type": "string", "minLength": 1},
		"motivo": {"type": "string", "maxLength": 1000}
	}
}`)

type TransitionRequest struct {
	Estado models.Estado `json:"estado"`
	Actor  string        `json:"actor"`
	Motivo string        `json:"motivo,omitempty"`
}

type Handler struct {
	deps   Dependencies
	logger logger.Logger
}

// GetExpediente handles GET /api/v1/solicitudes/{id}/expediente.
func (h *Handler) GetExpediente(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := h.deps.Expedientes.Assemble(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if h.deps.Index != nil {
		h.deps.Index.IndexBestEffort(r.Context(), exp)
	}
	respondJSON(w, http.StatusOK, exp)
}

// ApplyTransition handles POST /api/v1/solicitudes/{id}/transiciones.
func (h *Handler) ApplyTransition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		respondError(w, http.StatusBadRequest, apperrors.ErrCodeInputValidationFailed, "unreadable body")
		return
	}
	if err := transitionSchema.Check(raw); err != nil {
		respondErr(w, err)
		return
	}
	var req TransitionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.ErrCodeInputValidationFailed, "invalid JSON body")
		return
	}

	res, err := h.deps.Transitions.ApplyTransition(r.Context(), id, req.Estado, req.Actor, req.Motivo)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AllowedTransitions handles GET /api/v1/solicitudes/{id}/transiciones.
func (h *Handler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sol, err := h.deps.Gateway.GetApplication(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			respondErr(w, apperrors.NewSolicitudNotFoundError(id))
			return
		}
		respondErr(w, apperrors.NewRepositoryError("get solicitud", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"solicitudId":  id,
		"estadoActual": sol.Estado,
		"permitidas":   h.deps.Transitions.AllowedTransitions(sol.Estado),
	})
}

// ExportReport handles GET /api/v1/solicitudes/{id}/expediente/reporte.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reports == nil {
		respondError(w, http.StatusServiceUnavailable, apperrors.ErrCodeInternal, "report export is not configured")
		return
	}
	rep, err := h.deps.Reports.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// SearchExpedientes handles GET /api/v1/expedientes.
func (h *Handler) SearchExpedientes(w http.ResponseWriter, r *http.Request) {
	if h.deps.Index == nil {
		respondError(w, http.StatusServiceUnavailable, apperrors.ErrCodeInternal, "search is not configured")
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	res, err := h.deps.Index.Search(r.Context(), q)
	if err != nil {
		h.logger.Error("expediente search failed", map[string]interface{}{"error": err})
		respondError(w, http.StatusBadGateway, apperrors.ErrCodeInternal, "search failed")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func parseQuery(r *http.Request) (search.Query, error) {
	v := r.URL.Query()
	q := search.Query{Text: v.Get("q"), Prioridad: v.Get("prioridad")}

	if estados := v.Get("estado"); estados != "" {
		for _, e := range strings.Split(estados, ",") {
			if e = strings.TrimSpace(e); e != "" {
				q.Estados = append(q.Estados, e)
			}
		}
	}
	if s := v.Get("urgente"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, apperrors.NewInputValidationError("urgente must be a boolean")
		}
		q.Urgente = &b
	}

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"from", &q.From, 0},
		{"size", &q.Size, 1},
	}
	for _, p := range ints {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < p.min {
			return q, apperrors.NewInputValidationError(p.name + " must be an integer >= " + strconv.Itoa(p.min))
		}
		*p.dst = n
	}
	if q.Size > 100 {
		q.Size = 100
	}
	if s := v.Get("minScore"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 100 {
			return q, apperrors.NewInputValidationError("minScore must be an integer in [0,100]")
		}
		q.MinScore = &n
	}
	return q, nil
}
