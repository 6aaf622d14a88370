package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is the subject and body of one notification event.
type Template struct {
	Subject string
	Body    string
}

// DefaultEvent is used when an event has no template of its own.
const DefaultEvent = "default"

// DefaultTemplates covers the states an applicant is told about.
var DefaultTemplates = map[string]Template{
	"estado_en_revision_inicial": {
		Subject: "Recibimos tu solicitud {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, tu solicitud {{numeroSolicitud}} para la moto {{vehiculo}} está en revisión.",
	},
	"estado_documentos_observados": {
		Subject: "Documentos observados en tu solicitud {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, revisamos tus documentos y necesitamos que corrijas algunos. Fecha límite: {{fechaLimite}}.",
	},
	"estado_entrevista_programada": {
		Subject: "Entrevista programada - {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, tu entrevista de crédito fue programada. Te contactaremos para confirmar la hora.",
	},
	"estado_aprobado": {
		Subject: "¡Tu crédito fue aprobado! - {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, tu crédito por {{montoFinanciado}} en {{plazoQuincenas}} quincenas fue aprobado.",
	},
	"estado_condicional": {
		Subject: "Tu crédito requiere condiciones - {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, tu solicitud fue aprobada con condiciones. Un asesor se comunicará contigo.",
	},
	"estado_rechazado": {
		Subject: "Resultado de tu solicitud {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, lamentamos informarte que tu solicitud no fue aprobada.",
	},
	"estado_esperando_inicial": {
		Subject: "Pago inicial pendiente - {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, estamos esperando tu pago inicial de {{inicial}} para continuar.",
	},
	"estado_entrega_completada": {
		Subject: "¡Disfruta tu moto! - {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, la entrega de tu {{vehiculo}} fue completada.",
	},
	"sla_vencido": {
		Subject: "Solicitud {{numeroSolicitud}} fuera de plazo",
		Body:    "La solicitud {{numeroSolicitud}} excedió su límite de evaluación en estado {{estado}} ({{fechaLimite}}).",
	},
	DefaultEvent: {
		Subject: "Actualización de tu solicitud {{numeroSolicitud}}",
		Body:    "Hola {{nombre}}, tu solicitud {{numeroSolicitud}} cambió a estado {{estado}}.",
	},
}

var leftoverPlaceholder = regexp.MustCompile(`{{\s*[A-Za-z0-9_]+\s*}}`)

// render replaces {{key}} placeholders. Unknown placeholders become empty.
func render(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return leftoverPlaceholder.ReplaceAllString(result, "")
}

func lookup(templates map[string]Template, evento string) (Template, error) {
	if t, ok := templates[evento]; ok {
		return t, nil
	}
	if t, ok := templates[DefaultEvent]; ok {
		return t, nil
	}
	return Template{}, fmt.Errorf("template not found for event: %s", evento)
}
