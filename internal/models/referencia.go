// internal/models/referencia.go
package models

import "time"

type EstadoReferencia string

const (
	ReferenciaPendiente    EstadoReferencia = "pendiente"
	ReferenciaContactado   EstadoReferencia = "contactado"
	ReferenciaVerificado   EstadoReferencia = "verificado"
	ReferenciaNoContactado EstadoReferencia = "no_contactado"
	ReferenciaRechazado    EstadoReferencia = "rechazado"
)

type TipoRelacion string

const (
	RelacionFamiliar TipoRelacion = "familiar"
	RelacionLaboral  TipoRelacion = "laboral"
	RelacionAmigo    TipoRelacion = "amigo"
	RelacionOtro     TipoRelacion = "otro"
)

// Referencia is a personal reference given by the titular.
type Referencia struct {
	ID                string           `json:"id"`
	ClienteID         string           `json:"clienteId"`
	Nombre            string           `json:"nombre"`
	Telefono          string           `json:"telefono,omitempty"`
	Relacion          TipoRelacion     `json:"relacion"`
	Estado            EstadoReferencia `json:"estado"`
	PuntajeReferencia int              `json:"puntajeReferencia"`
	Comentarios       string           `json:"comentarios,omitempty"`
	FechaVerificacion *time.Time       `json:"fechaVerificacion,omitempty"`
}

func (r Referencia) Verificada() bool { return r.Estado == ReferenciaVerificado }
