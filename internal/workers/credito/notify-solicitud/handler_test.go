// internal/workers/credito/notify-solicitud/handler_test.go
package notifysolicitud

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/notify"
	"motocredito-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, solicitudID, evento string, extra map[string]string) (*notify.Result, error) {
	args := m.Called(ctx, solicitudID, evento, extra)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Result), args.Error(1)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func TestExecute_Sent(t *testing.T) {
	sentAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := &MockSender{}
	s.On("Send", mock.Anything, "sol-1", "estado_aprobado", mock.MatchedBy(func(extra map[string]string) bool {
		return extra["sucursal"] == "Lima Norte"
	})).Return(&notify.Result{
		NotificationID: "n-1",
		Evento:         "estado_aprobado",
		Status:         notify.StatusSent,
		EmailSent:      true,
		SentAt:         sentAt,
	}, nil)
	h := NewHandler(createTestConfig(), s, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		SolicitudID: "sol-1",
		Evento:      "estado_aprobado",
		Datos:       map[string]string{"sucursal": "Lima Norte"},
	})
	require.NoError(t, err)

	assert.Equal(t, "n-1", out.NotificationID)
	assert.Equal(t, notify.StatusSent, out.Status)
	assert.True(t, out.EmailSent)
	assert.False(t, out.SMSSent)
	assert.Equal(t, sentAt, out.SentAt)
	s.AssertExpectations(t)
}

func TestExecute_ChannelsDisabled(t *testing.T) {
	gw := repository.NewMemoryGateway()
	gw.PutSolicitud(models.Solicitud{ID: "sol-1", ClienteID: "cli-1", Estado: models.EstadoRechazado})
	gw.PutCliente(models.Cliente{ID: "cli-1", Nombres: "Pedro", Email: "pedro@example.com"})
	n := notify.NewNotifier(notify.Config{}, gw, nil, nil, logger.NewTestLogger(t))
	h := NewHandler(createTestConfig(), n, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-1", Evento: "estado_rechazado"})
	require.NoError(t, err)
	assert.Equal(t, notify.StatusDisabled, out.Status)
	assert.False(t, out.EmailSent)
	assert.NotEmpty(t, out.NotificationID)
}

func TestExecute_InputValidation(t *testing.T) {
	s := &MockSender{}
	h := NewHandler(createTestConfig(), s, logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input Input
	}{
		{"missing solicitud", Input{Evento: "estado_aprobado"}},
		{"missing evento", Input{SolicitudID: "sol-1"}},
		{"malformed evento", Input{SolicitudID: "sol-1", Evento: "Estado Aprobado"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), &tt.input)
			assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.CodeOf(err))
		})
	}
	s.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_SendFailureIsRetryable(t *testing.T) {
	s := &MockSender{}
	s.On("Send", mock.Anything, "sol-1", "estado_aprobado", map[string]string(nil)).
		Return(nil, apperrors.NewNotificationSendFailedError("email", errors.New("throttled")))
	h := NewHandler(createTestConfig(), s, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{SolicitudID: "sol-1", Evento: "estado_aprobado"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.AsStandard(err).Retryable)
}
