// Package stream carries row-level change events (insert, update, delete)
// from the store to live subscribers.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Tables that emit change events.
const (
	TablePosts         = "posts"
	TableComments      = "comments"
	TableLikes         = "likes"
	TableUsers         = "users"
	TableNotifications = "notifications"
)

// ErrUnknownTable is returned for topics naming a table that emits no events.
var ErrUnknownTable = errors.New("unknown table")

// KnownTable reports whether table emits change events.
func KnownTable(table string) bool {
	switch table {
	case TablePosts, TableComments, TableLikes, TableUsers, TableNotifications:
		return true
	}
	return false
}

// ChangeEvent is a single row change. New carries the row after an insert or
// update, Old the row before a delete. IDs are ULIDs, so they sort by time.
type ChangeEvent struct {
	ID         string          `json:"id"`
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
}

// NewEvent marshals the row images into a change event with a fresh id.
// Either image may be nil.
func NewEvent(table string, typ EventType, newRow, oldRow any) (ChangeEvent, error) {
	ev := ChangeEvent{
		ID:         ulid.Make().String(),
		Table:      table,
		Type:       typ,
		CommitTime: time.Now().UTC(),
	}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("marshal new row: %w", err)
		}
		ev.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("marshal old row: %w", err)
		}
		ev.Old = b
	}
	return ev, nil
}

// Record returns the row image a filter applies to: Old for deletes, New otherwise.
func (e ChangeEvent) Record() json.RawMessage {
	if e.Type == Delete {
		return e.Old
	}
	return e.New
}

// Decode unmarshals the event's record into dst.
func (e ChangeEvent) Decode(dst any) error {
	rec := e.Record()
	if len(rec) == 0 {
		return fmt.Errorf("%s event %s on %s has no record", e.Type, e.ID, e.Table)
	}
	return json.Unmarshal(rec, dst)
}
