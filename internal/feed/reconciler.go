package feed

import (
	"context"
	"fmt"
	"log/slog"

	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/stream"
)

// Entity is a feed item that carries a denormalized author.
type Entity[T any] interface {
	Identity() models.ID
	AuthorID() models.ID
	WithAuthor(models.Author) T
}

// Reconciler owns the ordered, de-duplicated item sequence of one view.
// LoadPage, Prepend, Update and LocalDelete mutate state and are not safe for
// concurrent use; views call them from their actor. Resolve only reads
// immutable fields and may run anywhere.
type Reconciler[T Entity[T]] struct {
	view   string
	users  UserLookup
	logger *slog.Logger

	items []T
	index map[models.ID]struct{}
}

// NewReconciler returns an empty reconciler. view labels logs and metrics.
func NewReconciler[T Entity[T]](view string, users UserLookup, logger *slog.Logger) *Reconciler[T] {
	return &Reconciler[T]{
		view:   view,
		users:  users,
		logger: logger,
		index:  make(map[models.ID]struct{}),
	}
}

// LoadPage replaces the sequence with items, keeping store order. A repeated
// id keeps its first occurrence. It returns the number of duplicates dropped.
func (r *Reconciler[T]) LoadPage(items []T) int {
	next := make([]T, 0, len(items))
	index := make(map[models.ID]struct{}, len(items))
	dropped := 0
	for _, it := range items {
		id := it.Identity()
		if _, dup := index[id]; dup {
			dropped++
			continue
		}
		index[id] = struct{}{}
		next = append(next, it)
	}
	r.items = next
	r.index = index
	if dropped > 0 {
		observability.FeedDuplicatesDropped.WithLabelValues(r.view).Add(float64(dropped))
	}
	return dropped
}

// Resolve decodes an insert event and attaches the author. A failed lookup
// yields an empty author carrying only the id; only an undecodable event is
// an error.
func (r *Reconciler[T]) Resolve(ctx context.Context, ev stream.ChangeEvent) (T, error) {
	var item T
	if err := ev.Decode(&item); err != nil {
		return item, fmt.Errorf("decode %s event %s: %w", ev.Table, ev.ID, err)
	}
	if item.Identity() == 0 {
		return item, fmt.Errorf("decode %s event %s: missing id", ev.Table, ev.ID)
	}

	authorID := item.AuthorID()
	placeholder := models.Author{ID: authorID}
	if r.users == nil {
		return item.WithAuthor(placeholder), nil
	}

	author, err := r.users.LookupUser(ctx, authorID)
	if err != nil || author == nil {
		observability.FeedAuthorLookupFailures.WithLabelValues(r.view).Inc()
		if r.logger != nil {
			attrs := []any{slog.String("view", r.view), slog.Uint64("user_id", uint64(authorID))}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			r.logger.WarnContext(ctx, "author lookup failed, using placeholder", attrs...)
		}
		return item.WithAuthor(placeholder), nil
	}
	return item.WithAuthor(*author), nil
}

// Prepend puts item first. It reports false, leaving the sequence unchanged,
// when the id is already present.
func (r *Reconciler[T]) Prepend(item T) bool {
	id := item.Identity()
	if _, dup := r.index[id]; dup {
		observability.FeedDuplicatesDropped.WithLabelValues(r.view).Inc()
		return false
	}
	r.index[id] = struct{}{}
	r.items = append([]T{item}, r.items...)
	return true
}

// OnRemoteInsert resolves and prepends ev in one step, for callers that
// already serialize access.
func (r *Reconciler[T]) OnRemoteInsert(ctx context.Context, ev stream.ChangeEvent) (bool, error) {
	item, err := r.Resolve(ctx, ev)
	if err != nil {
		return false, err
	}
	return r.Prepend(item), nil
}

// Update replaces the item with id by fn(item). It reports whether id was present.
func (r *Reconciler[T]) Update(id models.ID, fn func(T) T) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	for i := range r.items {
		if r.items[i].Identity() == id {
			r.items[i] = fn(r.items[i])
			return true
		}
	}
	return false
}

// LocalDelete removes id. Removing an absent id is a no-op; it reports
// whether anything was removed.
func (r *Reconciler[T]) LocalDelete(id models.ID) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	delete(r.index, id)
	for i := range r.items {
		if r.items[i].Identity() == id {
			r.items = append(r.items[:i:i], r.items[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether id is in the sequence.
func (r *Reconciler[T]) Contains(id models.ID) bool {
	_, ok := r.index[id]
	return ok
}

// Len returns the number of items.
func (r *Reconciler[T]) Len() int { return len(r.items) }

// Items returns a copy of the sequence.
func (r *Reconciler[T]) Items() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}
