package server

import (
	"context"
	"sync"
	"time"

	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	topicLocalKey = "changeTopic"
	writeTimeout  = 10 * time.Second
)

// ChangeStreamUpgrade validates GET /api/ws/changes?table=posts&filter=user_id=eq.7
// before the websocket handshake so that a bad topic gets a plain 400.
func (s *Server) ChangeStreamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	topic, err := stream.ParseTopic(c.Query("table"), c.Query("filter"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	c.Locals(topicLocalKey, topic)
	return c.Next()
}

// ChangeStreamHandler forwards every change event on the requested topic to
// the client as a JSON text frame until either side goes away.
func (s *Server) ChangeStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.WebSocketConnectionsTotal.Inc()
		defer observability.WebSocketConnectionsTotal.Dec()

		topic, ok := conn.Locals(topicLocalKey).(stream.Topic)
		if !ok {
			_ = conn.Close()
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Events arrive on the broker's goroutine; the connection is released
		// when this function returns, so writes stop first.
		var mu sync.Mutex
		closed := false
		write := func(ev stream.ChangeEvent) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				middleware.Logger.Debug("change stream write failed", "topic", topic.String(), "error", err)
				closed = true
				cancel()
			}
		}

		sub, err := s.broker.Subscribe(ctx, topic, write)
		if err != nil {
			middleware.Logger.Warn("change stream subscribe failed", "topic", topic.String(), "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"subscribe failed"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("change stream opened", "topic", topic.String())

		// Clients never send anything meaningful; reading detects the close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		<-ctx.Done()
		sub.Unsubscribe()

		mu.Lock()
		closed = true
		mu.Unlock()

		_ = conn.Close()
		middleware.Logger.Info("change stream closed", "topic", topic.String())
	})
}
