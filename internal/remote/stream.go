package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"feedsync/internal/stream"

	"github.com/gorilla/websocket"
)

const defaultReconnectDelay = 5 * time.Second

// StreamClient subscribes to the API's change-event websocket.
type StreamClient struct {
	client         *Client
	logger         *slog.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
}

// NewStreamClient returns a stream.Subscriber that authenticates as client.
func NewStreamClient(client *Client, logger *slog.Logger) *StreamClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamClient{
		client:         client,
		logger:         logger,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
	}
}

var _ stream.Subscriber = (*StreamClient)(nil)

func (s *StreamClient) buildURL(topic stream.Topic) (string, error) {
	u, err := url.Parse(s.client.BaseURL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/changes"

	q := url.Values{}
	q.Set("table", topic.Table)
	if !topic.Filter.IsZero() {
		q.Set("filter", topic.Filter.String())
	}
	if tok := s.client.Token(); tok != "" {
		q.Set("token", tok)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe dials the change stream for topic and calls h for each event in
// arrival order. The first dial must succeed; later disconnects reconnect
// until the subscription ends. Events emitted while disconnected are lost.
func (s *StreamClient) Subscribe(ctx context.Context, topic stream.Topic, h stream.Handler) (stream.Subscription, error) {
	wsURL, err := s.buildURL(topic)
	if err != nil {
		return nil, err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change stream: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{cancel: cancel, conn: conn}
	go s.run(subCtx, sub, wsURL, topic, h)
	return sub, nil
}

func (s *StreamClient) run(ctx context.Context, sub *wsSubscription, wsURL string, topic stream.Topic, h stream.Handler) {
	logger := s.logger.With(slog.String("topic", topic.String()))
	for {
		conn := sub.current()
		if conn != nil {
			if err := s.read(ctx, conn, h, logger); err != nil && ctx.Err() == nil {
				logger.Warn("change stream disconnected, reconnecting", slog.String("error", err.Error()))
			}
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}

		next, _, err := s.dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			logger.Error("change stream reconnect failed", slog.String("error", err.Error()))
			sub.swap(nil)
			continue
		}
		if !sub.swap(next) {
			_ = next.Close()
			return
		}
		logger.Info("change stream reconnected")
	}
}

func (s *StreamClient) read(ctx context.Context, conn *websocket.Conn, h stream.Handler, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		var ev stream.ChangeEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			logger.Error("failed to parse change event", slog.String("error", err.Error()))
			continue
		}
		h(ev)
	}
}

type wsSubscription struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (w *wsSubscription) current() *websocket.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

// swap installs conn. It reports false once the subscription has ended.
func (w *wsSubscription) swap(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.conn = conn
	return true
}

// Unsubscribe stops delivery and closes the connection. It does not wait for
// an in-flight handler call to return.
func (w *wsSubscription) Unsubscribe() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
