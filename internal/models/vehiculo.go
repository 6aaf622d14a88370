// internal/models/vehiculo.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CondicionVehiculo string

const (
	CondicionNueva CondicionVehiculo = "nueva"
	CondicionUsada CondicionVehiculo = "usada"
)

// Vehiculo is the motorcycle being financed.
type Vehiculo struct {
	ID         string            `json:"id"`
	Marca      string            `json:"marca"`
	Modelo     string            `json:"modelo"`
	Anio       int               `json:"anio"`
	Condicion  CondicionVehiculo `json:"condicion"`
	Color      string            `json:"color,omitempty"`
	Precio     decimal.Decimal   `json:"precio"`
	Stock      int               `json:"stock"`
	Disponible bool              `json:"disponible"`
}

// AntiguedadEn returns the vehicle age in years at now; new bikes are 0.
// The second result is false when a used bike has no model year.
func (v Vehiculo) AntiguedadEn(now time.Time) (int, bool) {
	if v.Condicion == CondicionNueva {
		return 0, true
	}
	if v.Anio == 0 {
		return 0, false
	}
	age := now.Year() - v.Anio
	if age < 0 {
		return 0, true
	}
	return age, true
}
