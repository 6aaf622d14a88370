package api

import (
	"context"
	"net/http"
	"time"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the frame pushed to websocket clients.
type Message struct {
	Type string                  `json:"type"`
	Data models.EventoTransicion `json:"data"`
}

const MessageTypeTransition = "transicion"

// EventStream relays the transition events of one solicitud to a
// websocket client until either side goes away.
type EventStream struct {
	events repository.EventSubscriber
	logger logger.Logger
}

// Serve handles GET /api/v1/solicitudes/{id}/eventos.
func (s *EventStream) Serve(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		respondError(w, http.StatusServiceUnavailable, apperrors.ErrCodeInternal, "event stream is not configured")
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.events.Subscribe(ctx, id)
	if err != nil {
		cancel()
		s.logger.Error("event subscription failed", map[string]interface{}{"solicitudId": id, "error": err})
		respondError(w, http.StatusServiceUnavailable, apperrors.ErrCodeInternal, "event stream unavailable")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{"solicitudId": id, "error": err})
		return
	}

	log := s.logger.WithFields(map[string]interface{}{"solicitudId": id})
	log.Debug("event stream opened", nil)

	go s.readPump(ws, cancel)
	s.writePump(ctx, ws, events, log)
}

// readPump drains client frames; any read error ends the stream.
func (s *EventStream) readPump(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *EventStream) writePump(ctx context.Context, ws *websocket.Conn, events <-chan models.EventoTransicion, log logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		log.Debug("event stream closed", nil)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt, ok := <-events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(Message{Type: MessageTypeTransition, Data: evt}); err != nil {
				log.Warn("websocket write failed", map[string]interface{}{"error": err})
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
