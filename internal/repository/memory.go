package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"motocredito-workers/internal/models"

	"github.com/google/uuid"
)

// Operation names accepted by MemoryGateway.Intercept and FailOn.
const (
	OpGetApplication   = "GetApplication"
	OpGetPerson        = "GetPerson"
	OpGetVehicle       = "GetVehicle"
	OpGetReferences    = "GetReferences"
	OpGetHistory       = "GetHistory"
	OpGetEvaluations   = "GetEvaluations"
	OpGetDocuments     = "GetDocuments"
	OpGetApprovedTerms = "GetApprovedTerms"
	OpApplyTransition  = "ApplyTransition"
	OpUpdateScores     = "UpdateScores"
	OpListOverdue      = "ListOverdue"
)

// InterceptFunc runs before the named operation; a non-nil error is returned
// to the caller instead of the stored data.
type InterceptFunc func(ctx context.Context, id string) error

// MemoryGateway is a Gateway kept in maps. It backs local runs and tests.
type MemoryGateway struct {
	mu           sync.RWMutex
	solicitudes  map[string]models.Solicitud
	clientes     map[string]models.Cliente
	vehiculos    map[string]models.Vehiculo
	referencias  map[string]models.Referencia
	historial    map[string][]models.HistorialEstado
	evaluaciones map[string][]models.Evaluacion
	documentos   map[string][]models.DocumentoProceso
	terminos     map[string]models.TerminosAprobados
	intercepts   map[string]InterceptFunc
	now          func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		solicitudes:  map[string]models.Solicitud{},
		clientes:     map[string]models.Cliente{},
		vehiculos:    map[string]models.Vehiculo{},
		referencias:  map[string]models.Referencia{},
		historial:    map[string][]models.HistorialEstado{},
		evaluaciones: map[string][]models.Evaluacion{},
		documentos:   map[string][]models.DocumentoProceso{},
		terminos:     map[string]models.TerminosAprobados{},
		intercepts:   map[string]InterceptFunc{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock fixes the timestamp ApplyTransition assigns.
func (m *MemoryGateway) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Intercept installs fn in front of op. A nil fn removes the interceptor.
func (m *MemoryGateway) Intercept(op string, fn InterceptFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.intercepts, op)
		return
	}
	m.intercepts[op] = fn
}

// FailOn makes op return err.
func (m *MemoryGateway) FailOn(op string, err error) {
	m.Intercept(op, func(context.Context, string) error { return err })
}

// BlockOn makes op wait for the caller's context to end.
func (m *MemoryGateway) BlockOn(op string) {
	m.Intercept(op, func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

func (m *MemoryGateway) intercept(ctx context.Context, op, id string) error {
	m.mu.RLock()
	fn := m.intercepts[op]
	m.mu.RUnlock()
	if fn != nil {
		if err := fn(ctx, id); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (m *MemoryGateway) PutSolicitud(s models.Solicitud) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solicitudes[s.ID] = s
}

func (m *MemoryGateway) PutCliente(c models.Cliente) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientes[c.ID] = c
}

func (m *MemoryGateway) PutVehiculo(v models.Vehiculo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehiculos[v.ID] = v
}

func (m *MemoryGateway) PutReferencia(r models.Referencia) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referencias[r.ID] = r
}

func (m *MemoryGateway) AddHistorial(h models.HistorialEstado) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historial[h.SolicitudID] = append(m.historial[h.SolicitudID], h)
}

func (m *MemoryGateway) AddEvaluacion(e models.Evaluacion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluaciones[e.SolicitudID] = append(m.evaluaciones[e.SolicitudID], e)
}

func (m *MemoryGateway) AddDocumento(d models.DocumentoProceso) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documentos[d.SolicitudID] = append(m.documentos[d.SolicitudID], d)
}

func (m *MemoryGateway) PutTerminos(t models.TerminosAprobados) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminos[t.SolicitudID] = t
}

func (m *MemoryGateway) GetApplication(ctx context.Context, id string) (*models.Solicitud, error) {
	if err := m.intercept(ctx, OpGetApplication, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.solicitudes[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.ReferenciaIDs = append([]string{}, s.ReferenciaIDs...)
	return &s, nil
}

func (m *MemoryGateway) GetPerson(ctx context.Context, id string) (*models.Cliente, error) {
	if err := m.intercept(ctx, OpGetPerson, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clientes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Inconsistencias != nil {
		c.Inconsistencias = append([]string{}, c.Inconsistencias...)
	}
	return &c, nil
}

func (m *MemoryGateway) GetVehicle(ctx context.Context, id string) (*models.Vehiculo, error) {
	if err := m.intercept(ctx, OpGetVehicle, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehiculos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryGateway) GetReferences(ctx context.Context, ids []string) ([]models.Referencia, error) {
	if err := m.intercept(ctx, OpGetReferences, ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Referencia{}
	for _, id := range ids {
		if r, ok := m.referencias[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryGateway) GetHistory(ctx context.Context, solicitudID string) ([]models.HistorialEstado, error) {
	if err := m.intercept(ctx, OpGetHistory, solicitudID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.HistorialEstado{}, m.historial[solicitudID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Fecha.Before(out[j].Fecha) })
	return out, nil
}

func (m *MemoryGateway) GetEvaluations(ctx context.Context, solicitudID string) ([]models.Evaluacion, error) {
	if err := m.intercept(ctx, OpGetEvaluations, solicitudID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Evaluacion{}, m.evaluaciones[solicitudID]...), nil
}

func (m *MemoryGateway) GetDocuments(ctx context.Context, solicitudID string) ([]models.DocumentoProceso, error) {
	if err := m.intercept(ctx, OpGetDocuments, solicitudID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.DocumentoProceso{}, m.documentos[solicitudID]...), nil
}

func (m *MemoryGateway) GetApprovedTerms(ctx context.Context, solicitudID string) (*models.TerminosAprobados, error) {
	if err := m.intercept(ctx, OpGetApprovedTerms, solicitudID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terminos[solicitudID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryGateway) ApplyTransition(ctx context.Context, w TransitionWrite) (time.Time, error) {
	if err := m.intercept(ctx, OpApplyTransition, w.SolicitudID); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.solicitudes[w.SolicitudID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if s.Estado != w.Expected || s.Version != w.ExpectedVersion {
		return time.Time{}, ErrConflict
	}

	now := m.now()
	s.Estado = w.Nuevo
	s.FechaLimiteEvaluacion = w.FechaLimite
	s.FechaCambioEstado = now
	s.FechaActualizacion = now
	s.ActualizadoPor = w.Historial.Actor
	s.Version++
	m.solicitudes[s.ID] = s

	h := w.Historial
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.SolicitudID = w.SolicitudID
	h.EstadoAnterior = w.Expected
	h.EstadoNuevo = w.Nuevo
	h.Fecha = now
	m.historial[s.ID] = append(m.historial[s.ID], h)
	return now, nil
}

func (m *MemoryGateway) UpdateScores(ctx context.Context, solicitudID string, sc Scores) error {
	if err := m.intercept(ctx, OpUpdateScores, solicitudID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solicitudes[solicitudID]
	if !ok {
		return ErrNotFound
	}
	doc, gar, ent, fin := sc.Documental, sc.Garantes, sc.Entrevista, sc.Final
	s.ScoreDocumental, s.ScoreGarantes, s.ScoreEntrevista, s.ScoreFinal = &doc, &gar, &ent, &fin
	m.solicitudes[solicitudID] = s
	return nil
}

func (m *MemoryGateway) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Solicitud, error) {
	if err := m.intercept(ctx, OpListOverdue, ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Solicitud{}
	for _, s := range m.solicitudes {
		if s.Vencida(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FechaLimiteEvaluacion.Before(*out[j].FechaLimiteEvaluacion)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
