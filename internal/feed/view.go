package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/stream"
)

// Messages returned in Result.Msg.
const (
	MsgFetchPosts       = "Could not fetch the posts"
	MsgFetchUserPosts   = "Could not fetch user's posts"
	MsgFetchPostDetails = "Could not fetch the post details"
	MsgCreatePost       = "Could not create post"
	MsgUpdatePost       = "Could not update post"
	MsgRemovePost       = "Could not remove the post"
	MsgLikePost         = "Could not like the post"
	MsgUnlikePost       = "Could not remove the post like"
	MsgPostComment      = "Could not post comment"
	MsgRemoveComment    = "Could not remove the comment"
	MsgEmptyComment     = "Comment text is required"
	MsgSubscribe        = "Could not subscribe to live updates"
	MsgNoMore           = "No more items"
	MsgClosed           = "View is closed"
)

// DefaultPageSize is the page size used when Options.PageSize is not set.
const DefaultPageSize = 4

const (
	pumpBuffer   = 64
	defaultFetch = 10 * time.Second
)

// Result is the outcome of a public view operation. View operations never
// return errors; callers branch on Success and show Msg.
type Result struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
}

func succeeded() Result {
	return Result{Success: true}
}

func fail(msg string) Result {
	return Result{Success: false, Msg: msg}
}

// Snapshot is a consistent copy of a view's state.
type Snapshot[T any] struct {
	Items     []T
	NoMore    bool
	Requested int
}

// Options configure a view.
type Options struct {
	// PageSize is how much each LoadMore grows the window. Defaults to DefaultPageSize.
	PageSize int
	// ViewerID is the authenticated user the store acts for.
	ViewerID models.ID
	// FetchTimeout bounds each page fetch. Defaults to 10s.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetch
	}
	if o.Logger == nil {
		o.Logger = middleware.Logger
	}
	return o
}

// pageFetch loads the first limit items. The returned commit func, if any,
// runs on the actor together with the page replace.
type pageFetch[T any] func(ctx context.Context, limit int) (items []T, commit func(), err error)

// View is the live, paginated list shared by every feed kind.
type View[T Entity[T]] struct {
	name     string
	opts     Options
	logger   *slog.Logger
	topic    stream.Topic
	stream   Stream
	fetch    pageFetch[T]
	fetchMsg string

	// ctx scopes the subscription and the pump's author lookups.
	ctx    context.Context
	cancel context.CancelFunc

	actor   *actor
	events  chan stream.ChangeEvent
	updates chan Snapshot[T]
	closed  chan struct{}

	mu        sync.Mutex
	sub       stream.Subscription
	mounted   bool
	closeOnce sync.Once

	// Owned by the actor.
	rec          *Reconciler[T]
	cursor       Cursor
	loadsSent    uint64
	loadsApplied uint64
	liveIDs      map[models.ID]uint64
}

func newView[T Entity[T]](name string, topic stream.Topic, st Stream, users UserLookup, fetch pageFetch[T], fetchMsg string, opts Options) *View[T] {
	opts = opts.withDefaults()
	logger := opts.Logger.With(slog.String("view", name), slog.String("topic", topic.String()))
	ctx, cancel := context.WithCancel(context.Background())
	return &View[T]{
		name:     name,
		opts:     opts,
		logger:   logger,
		topic:    topic,
		stream:   st,
		fetch:    fetch,
		fetchMsg: fetchMsg,
		ctx:      ctx,
		cancel:   cancel,
		actor:    newActor(logger),
		events:   make(chan stream.ChangeEvent, pumpBuffer),
		updates:  make(chan Snapshot[T], 1),
		closed:   make(chan struct{}),
		rec:      NewReconciler[T](name, users, logger),
		liveIDs:  make(map[models.ID]uint64),
	}
}

// Mount subscribes to live inserts and loads the first page. On failure the
// view is closed, releasing the subscription.
func (v *View[T]) Mount(ctx context.Context) Result {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return fail("view already mounted")
	}
	v.mounted = true
	v.mu.Unlock()

	sub, err := v.stream.Subscribe(v.ctx, v.topic, v.enqueue)
	if err != nil {
		v.logger.ErrorContext(ctx, "subscribe failed", slog.String("error", err.Error()))
		v.Close()
		return fail(MsgSubscribe)
	}

	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()

	select {
	case <-v.closed:
		// Close raced with Subscribe.
		sub.Unsubscribe()
		return fail(MsgClosed)
	default:
	}

	go v.pump()

	res := v.LoadMore(ctx)
	if !res.Success {
		v.Close()
	}
	return res
}

// LoadMore grows the window by one page and replaces the sequence with the
// store's answer.
func (v *View[T]) LoadMore(ctx context.Context) Result {
	var (
		limit    int
		advanced bool
		previous int
		seq      uint64
	)
	if !v.actor.call(func() {
		limit, advanced = v.cursor.Advance(v.opts.PageSize)
		if !advanced {
			return
		}
		previous = v.rec.Len()
		v.loadsSent++
		seq = v.loadsSent
	}) {
		return fail(MsgClosed)
	}
	if !advanced {
		return Result{Success: true, Msg: MsgNoMore}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.opts.FetchTimeout)
	defer cancel()
	items, commit, err := v.fetch(fetchCtx, limit)
	if err != nil {
		observability.RecordFeedOperation(v.name, "load_page", false)
		v.logger.ErrorContext(ctx, "page fetch failed",
			slog.Int("limit", limit),
			slog.String("error", err.Error()),
		)
		return fail(v.fetchMsg)
	}

	stale := false
	if !v.actor.call(func() {
		// A later load already replaced the sequence with a wider window.
		if seq < v.loadsApplied {
			stale = true
			return
		}
		v.loadsApplied = seq
		v.warnLostInserts(items, seq)
		v.rec.LoadPage(items)
		v.cursor.Observe(len(items), previous)
		if commit != nil {
			commit()
		}
		v.publish()
	}) {
		return fail(MsgClosed)
	}
	if stale {
		v.logger.DebugContext(ctx, "discarding stale page",
			slog.Int("limit", limit),
			slog.Uint64("load", seq),
		)
		observability.RecordFeedOperation(v.name, "load_page_stale", true)
		return succeeded()
	}
	observability.RecordFeedOperation(v.name, "load_page", true)
	return succeeded()
}

// warnLostInserts logs live-inserted items that a page replace is about to
// drop. Such an item arrived while the page was in flight and is missing
// from the older answer. The page still wins.
func (v *View[T]) warnLostInserts(items []T, seq uint64) {
	if len(v.liveIDs) == 0 {
		return
	}
	present := make(map[models.ID]struct{}, len(items))
	for _, it := range items {
		present[it.Identity()] = struct{}{}
	}
	for id, at := range v.liveIDs {
		if at > seq {
			continue
		}
		if _, kept := present[id]; !kept && at == seq {
			v.logger.Warn("page replace dropped a live-inserted item",
				slog.Uint64("id", uint64(id)),
				slog.Uint64("load", seq),
			)
		}
		delete(v.liveIDs, id)
	}
}

// remove runs del and, once the store confirms, drops id locally.
func (v *View[T]) remove(ctx context.Context, op string, id models.ID, del func(context.Context, models.ID) error, msg string) Result {
	if err := del(ctx, id); err != nil {
		observability.RecordFeedOperation(v.name, op, false)
		v.logger.ErrorContext(ctx, op+" failed",
			slog.Uint64("id", uint64(id)),
			slog.String("error", err.Error()),
		)
		return fail(msg)
	}
	if !v.actor.call(func() {
		if v.rec.LocalDelete(id) {
			v.publish()
		}
	}) {
		return fail(MsgClosed)
	}
	observability.RecordFeedOperation(v.name, op, true)
	return succeeded()
}

// LocalDelete drops id without a store call. Absent ids are a no-op.
func (v *View[T]) LocalDelete(id models.ID) Result {
	if !v.actor.call(func() {
		if v.rec.LocalDelete(id) {
			v.publish()
		}
	}) {
		return fail(MsgClosed)
	}
	return succeeded()
}

// enqueue is the stream handler. It hands the event to the pump in arrival order.
func (v *View[T]) enqueue(ev stream.ChangeEvent) {
	select {
	case v.events <- ev:
	case <-v.closed:
	}
}

// pump resolves insert events one at a time and prepends them on the actor.
// Deletes reach the view through LocalDelete, not the stream.
func (v *View[T]) pump() {
	for {
		select {
		case <-v.closed:
			return
		case ev := <-v.events:
			if ev.Type != stream.Insert {
				continue
			}
			item, err := v.rec.Resolve(v.ctx, ev)
			if err != nil {
				v.logger.Warn("dropping undecodable event", slog.String("error", err.Error()))
				continue
			}
			v.actor.post(func() {
				if !v.rec.Prepend(item) {
					return
				}
				v.liveIDs[item.Identity()] = v.loadsSent
				v.publish()
			})
		}
	}
}

func (v *View[T]) snapshot() Snapshot[T] {
	return Snapshot[T]{
		Items:     v.rec.Items(),
		NoMore:    v.cursor.Exhausted(),
		Requested: v.cursor.Requested(),
	}
}

// publish offers the latest snapshot on Updates, replacing an unread one.
// Only the actor calls it.
func (v *View[T]) publish() {
	snap := v.snapshot()
	select {
	case v.updates <- snap:
		return
	default:
	}
	select {
	case <-v.updates:
	default:
	}
	select {
	case v.updates <- snap:
	default:
	}
}

// Snapshot returns the current state. After Close it returns the zero Snapshot.
func (v *View[T]) Snapshot() Snapshot[T] {
	var snap Snapshot[T]
	v.actor.call(func() { snap = v.snapshot() })
	return snap
}

// Updates delivers the latest snapshot after every change. Slow readers
// only see the most recent one.
func (v *View[T]) Updates() <-chan Snapshot[T] { return v.updates }

// Done is closed by Close.
func (v *View[T]) Done() <-chan struct{} { return v.closed }

// Close releases the live subscription and stops the view. In-flight fetches
// are not cancelled; their results are ignored. Close is idempotent.
func (v *View[T]) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		sub := v.sub
		v.sub = nil
		v.mu.Unlock()

		close(v.closed)
		if sub != nil {
			sub.Unsubscribe()
		}
		v.cancel()
		v.actor.stop()
	})
}
