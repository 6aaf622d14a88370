// internal/models/estado.go
package models

// Estado is the lifecycle state of a solicitud.
type Estado string

const (
	EstadoPendiente            Estado = "pendiente"
	EstadoEnRevisionInicial    Estado = "en_revision_inicial"
	EstadoEvaluacionDocumental Estado = "evaluacion_documental"
	EstadoDocumentosObservados Estado = "documentos_observados"
	EstadoEvaluacionGarantes   Estado = "evaluacion_garantes"
	EstadoGaranteRechazado     Estado = "garante_rechazado"
	EstadoEntrevistaProgramada Estado = "entrevista_programada"
	EstadoEnEntrevista         Estado = "en_entrevista"
	EstadoEntrevistaCompletada Estado = "entrevista_completada"
	EstadoEnDecision           Estado = "en_decision"
	EstadoAprobado             Estado = "aprobado"
	EstadoRechazado            Estado = "rechazado"
	EstadoCondicional          Estado = "condicional"
	EstadoCertificadoGenerado  Estado = "certificado_generado"
	EstadoEsperandoInicial     Estado = "esperando_inicial"
	EstadoInicialConfirmada    Estado = "inicial_confirmada"
	EstadoContratoFirmado      Estado = "contrato_firmado"
	EstadoEntregaCompletada    Estado = "entrega_completada"
	EstadoSuspendido           Estado = "suspendido"
	EstadoCancelado            Estado = "cancelado"
)

// Estados lists every lifecycle state in process order.
var Estados = []Estado{
	EstadoPendiente,
	EstadoEnRevisionInicial,
	EstadoEvaluacionDocumental,
	EstadoDocumentosObservados,
	EstadoEvaluacionGarantes,
	EstadoGaranteRechazado,
	EstadoEntrevistaProgramada,
	EstadoEnEntrevista,
	EstadoEntrevistaCompletada,
	EstadoEnDecision,
	EstadoAprobado,
	EstadoRechazado,
	EstadoCondicional,
	EstadoCertificadoGenerado,
	EstadoEsperandoInicial,
	EstadoInicialConfirmada,
	EstadoContratoFirmado,
	EstadoEntregaCompletada,
	EstadoSuspendido,
	EstadoCancelado,
}

func (e Estado) String() string { return string(e) }

// Valid reports whether e is one of the known states.
func (e Estado) Valid() bool {
	for _, s := range Estados {
		if s == e {
			return true
		}
	}
	return false
}
