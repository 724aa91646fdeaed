package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"feedsync/internal/observability"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the LISTEN/NOTIFY channel the change triggers write to.
const NotifyChannel = "feedsync_changes"

type notifyPayload struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new"`
	Old   json.RawMessage `json:"old"`

	// Partial is set when the trigger dropped text columns to fit the
	// NOTIFY size limit.
	Partial bool `json:"partial"`
}

// ParseNotification converts a trigger payload into a ChangeEvent. partial
// reports that the row images lack their text columns.
func ParseNotification(payload string) (ev ChangeEvent, partial bool, err error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ChangeEvent{}, false, fmt.Errorf("decode notification: %w", err)
	}
	if p.Table == "" || p.Type == "" {
		return ChangeEvent{}, false, fmt.Errorf("notification missing table or type: %s", payload)
	}
	ev, err = NewEvent(p.Table, p.Type, nil, nil)
	if err != nil {
		return ChangeEvent{}, false, err
	}
	ev.New = nullToEmpty(p.New)
	ev.Old = nullToEmpty(p.Old)
	return ev, p.Partial, nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// PostgresSource listens for trigger notifications and republishes them as
// change events.
type PostgresSource struct {
	pool       *pgxpool.Pool
	pub        Publisher
	logger     *slog.Logger
	traffic    *observability.StreamLogger
	retryDelay time.Duration

	// load reads the current image of a row. Swapped out in tests.
	load func(ctx context.Context, table string, id int64) (json.RawMessage, error)
}

// NewPostgresSource creates a source reading from pool and writing to pub.
func NewPostgresSource(pool *pgxpool.Pool, pub Publisher, logger *slog.Logger) *PostgresSource {
	s := &PostgresSource{
		pool:       pool,
		pub:        pub,
		logger:     logger,
		traffic:    observability.NewStreamLogger(),
		retryDelay: 5 * time.Second,
	}
	s.load = s.loadRow
	return s
}

// Start listens until ctx is cancelled, reconnecting after connection errors.
func (s *PostgresSource) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.listen(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("change listener error, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
}

func (s *PostgresSource) listen(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.logger.Info("listening for change notifications", "channel", NotifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		ev, partial, err := ParseNotification(n.Payload)
		if err != nil {
			s.logger.Warn("discarding change notification", "error", err)
			continue
		}
		if partial {
			s.hydrate(ctx, &ev)
		}
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.logger.Error("failed to publish change event", "table", ev.Table, "error", err)
			continue
		}
		s.traffic.LogEvent(ctx, "postgres", ev.Table, string(ev.Type), ev.ID)
	}
}

// hydrate replaces the trimmed record of ev with the row as it is now. Soft
// deleted rows are still readable. When the row is gone the trimmed image is
// published as is.
func (s *PostgresSource) hydrate(ctx context.Context, ev *ChangeEvent) {
	target := &ev.New
	if ev.Type == Delete {
		target = &ev.Old
	}
	var key struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(*target, &key); err != nil || key.ID == 0 {
		s.logger.Warn("partial change notification without id", "table", ev.Table, "event_id", ev.ID)
		return
	}
	row, err := s.load(ctx, ev.Table, key.ID)
	if err != nil {
		s.logger.Warn("could not reload row for partial notification",
			"table", ev.Table,
			"id", key.ID,
			"error", err,
		)
		return
	}
	*target = row
}

func (s *PostgresSource) loadRow(ctx context.Context, table string, id int64) (json.RawMessage, error) {
	if !KnownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	var row []byte
	err := s.pool.QueryRow(ctx, "SELECT to_jsonb(t)::text FROM "+table+" t WHERE t.id = $1", id).Scan(&row)
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", table, id, err)
	}
	return row, nil
}
