// internal/models/cliente.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RolCliente string

const (
	RolTitular RolCliente = "titular"
	RolFiador  RolCliente = "fiador"
)

// EstadoValidacion is shared by client document checks and process documents.
type EstadoValidacion string

const (
	ValidacionPendiente EstadoValidacion = "pendiente"
	ValidacionAprobado  EstadoValidacion = "aprobado"
	ValidacionObservado EstadoValidacion = "observado"
	ValidacionRechazado EstadoValidacion = "rechazado"
)

type HistorialPagos string

const (
	HistorialExcelente    HistorialPagos = "excelente"
	HistorialBueno        HistorialPagos = "bueno"
	HistorialRegular      HistorialPagos = "regular"
	HistorialMalo         HistorialPagos = "malo"
	HistorialSinHistorial HistorialPagos = "sin_historial"
)

// ResultadoBuro is the outcome of the credit bureau check.
type ResultadoBuro struct {
	Consultado     bool           `json:"consultado"`
	Puntaje        int            `json:"puntaje,omitempty"`
	HistorialPagos HistorialPagos `json:"historialPagos,omitempty"`
	DeudasVigentes int            `json:"deudasVigentes,omitempty"`
	FechaConsulta  *time.Time     `json:"fechaConsulta,omitempty"`
}

// Cliente is a natural person acting as titular or fiador.
type Cliente struct {
	ID        string     `json:"id"`
	Rol       RolCliente `json:"rol"`
	Nombres   string     `json:"nombres"`
	Apellidos string     `json:"apellidos"`
	DNI       string     `json:"dni"`
	Email     string     `json:"email,omitempty"`
	Telefono  string     `json:"telefono,omitempty"`
	Direccion string     `json:"direccion,omitempty"`

	Ocupacion      string          `json:"ocupacion,omitempty"`
	Empleador      string          `json:"empleador,omitempty"`
	RangoIngresos  string          `json:"rangoIngresos,omitempty"`
	IngresoMensual decimal.Decimal `json:"ingresoMensual"`

	FechaNacimiento *time.Time `json:"fechaNacimiento,omitempty"`
	Edad            int        `json:"edad"`

	EstadoValidacionDocumentos EstadoValidacion `json:"estadoValidacionDocumentos"`
	DatosVerificados           bool             `json:"datosVerificados"`
	Buro                       ResultadoBuro    `json:"buro"`
	PuntajeConfiabilidad       int              `json:"puntajeConfiabilidad"`
	EsAptoCrediticiamente      bool             `json:"esAptoCrediticiamente"`
	Inconsistencias            []string         `json:"inconsistencias,omitempty"`

	FechaCreacion time.Time `json:"fechaCreacion"`
}

func (c Cliente) NombreCompleto() string {
	if c.Apellidos == "" {
		return c.Nombres
	}
	return c.Nombres + " " + c.Apellidos
}

var puntoMedioRango = map[string]float64{
	"menos_1000": 750,
	"1000_2000":  1500,
	"2000_3000":  2500,
	"3000_5000":  4000,
	"mas_5000":   6000,
}

// IngresoEstimado returns the declared monthly income or, when missing,
// the midpoint of the declared income range. 0 means unknown.
func (c Cliente) IngresoEstimado() float64 {
	if c.IngresoMensual.IsPositive() {
		v, _ := c.IngresoMensual.Float64()
		return v
	}
	return puntoMedioRango[c.RangoIngresos]
}

// EdadEn computes whole years between birth and now.
func EdadEn(nacimiento, now time.Time) int {
	edad := now.Year() - nacimiento.Year()
	if now.Month() < nacimiento.Month() ||
		(now.Month() == nacimiento.Month() && now.Day() < nacimiento.Day()) {
		edad--
	}
	if edad < 0 {
		return 0
	}
	return edad
}

// EdadActual prefers the birth date over the stored edad.
func (c Cliente) EdadActual(now time.Time) int {
	if c.FechaNacimiento != nil {
		return EdadEn(*c.FechaNacimiento, now)
	}
	return c.Edad
}
