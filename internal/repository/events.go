// Package repository implements the data access layer for the application.
package repository

import (
	"context"

	"feedsync/internal/observability"
	"feedsync/internal/stream"
)

// changeEmitter publishes a change event after each successful write. With
// STREAM_SOURCE=postgres the publisher is a stream.NopPublisher and the
// database triggers emit instead.
type changeEmitter struct {
	table   string
	pub     stream.Publisher
	logger  *observability.RepoLogger
	traffic *observability.StreamLogger
}

func newChangeEmitter(table string, pub stream.Publisher) changeEmitter {
	if pub == nil {
		pub = stream.NopPublisher{}
	}
	return changeEmitter{
		table:   table,
		pub:     pub,
		logger:  observability.NewRepoLogger(table),
		traffic: observability.NewStreamLogger(),
	}
}

// emit never fails the write that triggered it; live views resync on their
// next page load.
func (e changeEmitter) emit(ctx context.Context, typ stream.EventType, newRow, oldRow any) {
	ev, err := stream.NewEvent(e.table, typ, newRow, oldRow)
	if err != nil {
		e.logger.LogError(ctx, "emit", err)
		return
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.logger.LogError(ctx, "emit", err)
		return
	}
	observability.ChangeEventsPublished.WithLabelValues(e.table, string(typ)).Inc()
	e.traffic.LogEvent(ctx, "repository", ev.Table, string(ev.Type), ev.ID)
}
