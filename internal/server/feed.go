package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/leonardotrapani/interpret/internal/session"
)

const sessionKey = "session"

// upgradeFeed resolves the session before the websocket handshake so unknown
// ids get a plain 404.
func (s *Server) upgradeFeed(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

// handleFeed streams session events as JSON text frames until the session
// ends or the client goes away. A snapshot is sent first.
func (s *Server) handleFeed(c *websocket.Conn) {
	defer c.Close()

	sess, ok := c.Locals(sessionKey).(*session.Session)
	if !ok {
		return
	}
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := c.WriteJSON(sess.Snapshot()); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := s.logger.With().Str("session", sess.ID()).Logger()
	logger.Debug().Msg("feed subscriber attached")
	defer logger.Debug().Msg("feed subscriber detached")

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
