// internal/workers/credito/notify-solicitud/models.go
package notifysolicitud

import "time"

type Input struct {
	SolicitudID string            `json:"solicitudId"`
	Evento      string            `json:"evento"`
	Datos       map[string]string `json:"datos,omitempty"`
}

type Output struct {
	NotificationID string    `json:"notificationId"`
	Evento         string    `json:"evento"`
	Status         string    `json:"notificationStatus"`
	EmailSent      bool      `json:"emailSent"`
	SMSSent        bool      `json:"smsSent"`
	SentAt         time.Time `json:"sentAt"`
}
