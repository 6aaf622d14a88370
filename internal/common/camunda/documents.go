package camunda

import (
	"context"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
)

// MessageDocumentRequested starts the document generation subprocess.
const MessageDocumentRequested = "documento-solicitado"

// MessagePublisher is the part of zbc.Client used to publish messages.
type MessagePublisher interface {
	NewPublishMessageCommand() commands.PublishMessageCommandStep1
}

// DocumentRequester asks the BPMN engine to generate a legal document by
// publishing a message correlated on the solicitud id. The message id is
// solicitud:documento so a repeated request is deduplicated by the broker.
type DocumentRequester struct {
	client MessagePublisher
	ttl    time.Duration
	logger logger.Logger
}

func NewDocumentRequester(client MessagePublisher, ttl time.Duration, log logger.Logger) *DocumentRequester {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocumentRequester{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "document-requester"}),
	}
}

// Generate publishes the request for document on solicitudID.
func (r *DocumentRequester) Generate(ctx context.Context, solicitudID, document string) error {
	cmd, err := r.client.NewPublishMessageCommand().
		MessageName(MessageDocumentRequested).
		CorrelationKey(solicitudID).
		MessageId(solicitudID + ":" + document).
		TimeToLive(r.ttl).
		VariablesFromMap(map[string]interface{}{
			"solicitudId": solicitudID,
			"documento":   document,
		})
	if err != nil {
		return apperrors.NewDocumentGenerationFailedError(document, err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return apperrors.NewDocumentGenerationFailedError(document, err)
	}

	r.logger.Info("document generation requested", map[string]interface{}{
		"solicitudId": solicitudID,
		"documento":   document,
	})
	return nil
}
