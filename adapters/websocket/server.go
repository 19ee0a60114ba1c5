package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
	"github.com/satriahrh/cocoa-fruit/haggle/usecase"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

// turnTimeout bounds a single negotiation turn started from the socket.
var turnTimeout = 60 * time.Second

type Server struct {
	upgrader      websocket.Upgrader
	svc           *usecase.NegotiationService
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(svc *usecase.NegotiationService, messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:           svc,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// RunTurnListener forwards turn events to the socket of the session they belong
// to until ctx is done.
func (s *Server) RunTurnListener(ctx context.Context) error {
	messageChan, err := s.messageBroker.Subscribe(ctx, usecase.TurnsTopic, "")
	if err != nil {
		return err
	}

	log.WithCtx(ctx).Info("🎧 WebSocket server listening to turn events")

	for msg := range messageChan {
		var event domain.TurnEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			log.WithCtx(ctx).Error("❌ Failed to unmarshal turn event", zap.Error(err))
			continue
		}
		if !s.hub.IsSessionConnected(event.SessionID) {
			continue
		}

		payload, err := json.Marshal(Frame{
			Type:      FrameSummary,
			SessionID: event.SessionID,
			Timestamp: event.Timestamp,
			Data:      event,
		})
		if err != nil {
			log.WithCtx(ctx).Error("❌ Failed to marshal summary frame", zap.Error(err))
			continue
		}
		if err := s.hub.SendToSession(event.SessionID, payload); err != nil {
			log.WithCtx(ctx).Debug("summary not delivered", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	}

	log.WithCtx(ctx).Info("🔒 Turn listener stopped")
	return nil
}

// handleMessage runs one negotiation turn and replies on the same socket.
func (s *Server) handleMessage(ctx context.Context, c *Client, text string) {
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	reply, err := s.svc.Submit(ctx, c.SessionID(), text)
	if err != nil {
		log.WithCtx(ctx).Warn("Turn rejected", zap.Error(err))
		c.SendFrame(FrameError, ErrorResponse{Code: "session_not_found", Message: "This negotiation has ended. Please reconnect."})
		c.Close()
		return
	}
	if err := c.SendFrame(FrameReply, reply); err != nil {
		log.WithCtx(ctx).Debug("reply not delivered", zap.Error(err))
	}
}
