package websocket

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/cocoa-fruit/haggle/adapters/auth"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

type welcome struct {
	Message string      `json:"message"`
	Summary interface{} `json:"summary"`
}

// Handler serves "/ws": every connection is a fresh negotiation session that ends
// when the socket closes.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	buyerID := auth.BuyerID(c)
	ctx := log.WithBuyer(context.Background(), buyerID)
	sess := s.svc.Open(ctx, buyerID)

	client := NewClient(ctx, conn, sess.ID, s.handleMessage)
	s.hub.Register(client)
	defer func() {
		s.hub.Unregister(client)
		s.svc.Close(ctx, sess.ID)
	}()

	client.SendFrame(FrameWelcome, welcome{Message: s.svc.Welcome(), Summary: sess.Summary()})
	client.Run()

	<-client.Context().Done()
	return nil
}
