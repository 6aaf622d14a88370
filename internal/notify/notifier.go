// Package notify tells applicants about their solicitud by e-mail (SES)
// and, for high priority solicitudes, by SMS (SNS).
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// Delivery statuses.
const (
	StatusSent     = "enviado"
	StatusDisabled = "deshabilitado"
)

// EmailSender is the SES call used to send e-mail.
type EmailSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SMSSender is the SNS call used to send SMS.
type SMSSender interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled      bool
	FromEmail         string
	SMSEnabled        bool
	SMSSenderID       string
	PriorityThreshold models.Prioridad
}

// Result describes one delivery.
type Result struct {
	NotificationID string    `json:"notificationId"`
	Evento         string    `json:"evento"`
	Status         string    `json:"status"`
	EmailSent      bool      `json:"emailSent"`
	SMSSent        bool      `json:"smsSent"`
	SentAt         time.Time `json:"sentAt"`
}

type Notifier struct {
	cfg       Config
	gateway   repository.Gateway
	email     EmailSender
	sms       SMSSender
	templates map[string]Template
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Notifier)

func WithTemplates(t map[string]Template) Option { return func(n *Notifier) { n.templates = t } }

func WithClock(now func() time.Time) Option { return func(n *Notifier) { n.now = now } }

// NewNotifier builds a Notifier. A nil sender disables its channel.
func NewNotifier(cfg Config, gw repository.Gateway, email EmailSender, sms SMSSender, log logger.Logger, opts ...Option) *Notifier {
	if cfg.PriorityThreshold == "" {
		cfg.PriorityThreshold = models.PrioridadAlta
	}
	n := &Notifier{
		cfg:       cfg,
		gateway:   gw,
		email:     email,
		sms:       sms,
		templates: DefaultTemplates,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends the notification for evento and discards the result.
func (n *Notifier) Notify(ctx context.Context, solicitudID, evento string) error {
	_, err := n.Send(ctx, solicitudID, evento, nil)
	return err
}

// Send renders the template for evento with the solicitud's data plus
// extra and delivers it to the titular.
func (n *Notifier) Send(ctx context.Context, solicitudID, evento string, extra map[string]string) (*Result, error) {
	log := n.logger.WithFields(map[string]interface{}{"solicitudId": solicitudID, "evento": evento})

	sol, err := n.gateway.GetApplication(ctx, solicitudID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewSolicitudNotFoundError(solicitudID)
		}
		return nil, apperrors.NewRepositoryError("get solicitud", err)
	}
	titular, err := n.gateway.GetPerson(ctx, sol.ClienteID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewMissingCoreEntityError("titular", sol.ClienteID)
		}
		return nil, apperrors.NewRepositoryError("get titular", err)
	}

	tmpl, err := lookup(n.templates, evento)
	if err != nil {
		return nil, apperrors.NewInputValidationError(err.Error())
	}

	data := templateData(sol, titular)
	for k, v := range extra {
		data[k] = v
	}
	subject := render(tmpl.Subject, data)
	body := render(tmpl.Body, data)

	res := &Result{
		NotificationID: uuid.New().String(),
		Evento:         evento,
		Status:         StatusDisabled,
		SentAt:         n.now(),
	}

	if n.cfg.EmailEnabled && n.email != nil && titular.Email != "" {
		if err := n.sendEmail(ctx, titular.Email, subject, body); err != nil {
			log.Error("email send failed", map[string]interface{}{"error": err})
			return nil, apperrors.NewNotificationSendFailedError("email", err)
		}
		res.EmailSent = true
	}

	if n.cfg.SMSEnabled && n.sms != nil && titular.Telefono != "" && n.smsAllowed(sol.Prioridad) {
		if err := n.sendSMS(ctx, titular.Telefono, body); err != nil {
			log.Error("sms send failed", map[string]interface{}{"error": err})
			return nil, apperrors.NewNotificationSendFailedError("sms", err)
		}
		res.SMSSent = true
	}

	if res.EmailSent || res.SMSSent {
		res.Status = StatusSent
	}
	log.Info("notification processed", map[string]interface{}{
		"notificationId": res.NotificationID,
		"status":         res.Status,
		"email":          res.EmailSent,
		"sms":            res.SMSSent,
	})
	return res, nil
}

var priorityRank = map[models.Prioridad]int{
	models.PrioridadBaja:  1,
	models.PrioridadMedia: 2,
	models.PrioridadAlta:  3,
}

func (n *Notifier) smsAllowed(p models.Prioridad) bool {
	return priorityRank[p] >= priorityRank[n.cfg.PriorityThreshold]
}

func templateData(sol *models.Solicitud, titular *models.Cliente) map[string]string {
	data := map[string]string{
		"numeroSolicitud": sol.NumeroSolicitud,
		"estado":          string(sol.Estado),
		"nombre":          titular.NombreCompleto(),
		"montoFinanciado": sol.MontoFinanciado.StringFixed(2),
		"inicial":         sol.Inicial.StringFixed(2),
		"plazoQuincenas":  fmt.Sprintf("%d", sol.PlazoQuincenas),
	}
	if sol.FechaLimiteEvaluacion != nil {
		data["fechaLimite"] = sol.FechaLimiteEvaluacion.Format("02/01/2006 15:04")
	}
	return data
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: []string{to}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(n.cfg.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if n.cfg.SMSSenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.cfg.SMSSenderID)},
		}
	}
	_, err := n.sms.Publish(ctx, input)
	return err
}
