// Package service runs the review session: a single coordinator goroutine
// owns the navigator and prefetch scheduler, applies UI commands in
// batches, and consumes decode results from the worker pool.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/catalog"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/pool"
	"github.com/mmcdole/culler/internal/prefetch"
	"github.com/mmcdole/culler/internal/search"
)

const commandBuffer = 256

// Executor runs load tasks. *pool.Pool satisfies it.
type Executor interface {
	prefetch.Submitter
	Results() <-chan pool.Result
	Stats() pool.Stats
	Close(ctx context.Context) error
}

// Deps are the collaborators a review session is assembled from
type Deps struct {
	Catalog *catalog.Catalog
	Pool    Executor
	Cache   *cache.LoadCache
	Decoder domain.Decoder
	Watcher *catalog.Watcher // Optional
	Store   io.Closer        // Optional; closed last
	Logger  *slog.Logger
}

// State is an immutable snapshot published after every batch of commands
type State struct {
	Generation  uint64
	Position    int // -1 when the view is empty
	Len         int // Items in the filtered view
	Total       int // Items in the catalog
	Item        domain.Item
	HasItem     bool
	Filter      string
	MarkedMode  bool
	MarkedCount int
	Marked      bool // The current item is marked
	Prefetch    prefetch.Stats
}

// Stats aggregates counters from every layer
type Stats struct {
	Pool     pool.Stats
	Cache    cache.Stats
	Prefetch prefetch.Stats
}

type command func(r *Review)

// Review is the coordinator. Commands return immediately; they are applied
// on the coordinator goroutine in arrival order.
type Review struct {
	cat     *catalog.Catalog
	nav     *navigation.Navigator
	sched   *prefetch.Scheduler
	pool    Executor
	cache   *cache.LoadCache
	watcher *catalog.Watcher
	store   io.Closer
	variant domain.Variant
	logger  *slog.Logger

	cmds   chan command
	notify notifier
	state  atomic.Pointer[State]

	ratedMu     sync.Mutex
	rated       []domain.ItemID
	ratedSignal chan struct{}

	// Coordinator-owned
	lastEvent     navigation.ViewChanged
	dirty         bool
	rescan        bool
	pendingNotice error

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New assembles a review session and starts its coordinator
func New(deps Deps, cfg prefetch.Config) (*Review, error) {
	r, err := newReview(deps, cfg)
	if err != nil {
		return nil, err
	}
	go r.run()
	return r, nil
}

// newReview builds the session without starting the coordinator goroutine
func newReview(deps Deps, cfg prefetch.Config) (*Review, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Review{
		cat:         deps.Catalog,
		pool:        deps.Pool,
		cache:       deps.Cache,
		watcher:     deps.Watcher,
		store:       deps.Store,
		variant:     cfg.Variant,
		logger:      logger,
		cmds:        make(chan command, commandBuffer),
		ratedSignal: make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	r.sched = prefetch.New(cfg, deps.Pool, deps.Cache, deps.Decoder, logger)
	r.nav = navigation.NewNavigator(deps.Catalog, navigation.All(), logger)
	r.nav.Subscribe(navigation.ListenerFunc(func(ev navigation.ViewChanged) {
		// Recorded only; the scheduler syncs once per batch
		r.lastEvent = ev
		r.dirty = true
	}))
	deps.Catalog.Subscribe(r)

	marks, err := deps.Catalog.Marks()
	if err != nil {
		return nil, fmt.Errorf("load marks: %w", err)
	}
	for _, id := range marks {
		r.nav.SetMarked(id)
	}

	r.markDirty(navigation.CauseReload)
	r.flush()
	return r, nil
}

// === Queries (any goroutine) ===

// State returns the latest published snapshot
func (r *Review) State() State {
	return *r.state.Load()
}

// Subscribe returns a channel of updates. Unread updates are replaced by
// newer ones. The channel is closed by Close.
func (r *Review) Subscribe() <-chan Update {
	return r.notify.subscribe()
}

// CurrentImage returns the cache entry for the current item without waiting.
// A ready image is marked as displayed.
func (r *Review) CurrentImage() (domain.Item, cache.Lookup) {
	st := r.state.Load()
	if !st.HasItem {
		return domain.Item{}, cache.Lookup{State: cache.StateAbsent}
	}
	key := domain.LoadKey{Item: st.Item.ID, Variant: r.variant}
	l := r.cache.Get(key)
	if l.State == cache.StateReady {
		r.cache.Touch(key)
	}
	return st.Item, l
}

// Peek reads any cache entry directly, e.g. thumbnails for a grid
func (r *Review) Peek(id domain.ItemID, v domain.Variant) cache.Lookup {
	return r.cache.Get(domain.LoadKey{Item: id, Variant: v})
}

// Stats gathers counters. Scheduler counters come from the last snapshot.
func (r *Review) Stats() Stats {
	return Stats{
		Pool:     r.pool.Stats(),
		Cache:    r.cache.Stats(),
		Prefetch: r.state.Load().Prefetch,
	}
}

// === Commands (any goroutine, non-blocking unless the buffer is full) ===

// Advance moves delta items through the view, clamped at either end
func (r *Review) Advance(delta int) {
	r.post(func(r *Review) { r.nav.Advance(delta) })
}

// JumpToStart shows the first item in the view
func (r *Review) JumpToStart() {
	r.post(func(r *Review) { r.nav.JumpToStart() })
}

// JumpToEnd shows the last item in the view
func (r *Review) JumpToEnd() {
	r.post(func(r *Review) { r.nav.JumpToEnd() })
}

// SetFilter swaps the active filter
func (r *Review) SetFilter(f navigation.Filter) {
	r.post(func(r *Review) { r.nav.SetFilter(f) })
}

// ShowMarked filters the view down to the marked set
func (r *Review) ShowMarked() {
	r.post(func(r *Review) { r.nav.SetFilter(r.nav.MarkedFilter()) })
}

// SetRating rates the current item. RatingNone clears the rating.
func (r *Review) SetRating(rating domain.Rating) {
	r.post(func(r *Review) {
		id, ok := r.nav.CurrentID()
		if !ok {
			return
		}
		if err := r.cat.SetRating(id, rating); err != nil {
			r.logger.Error("failed to set rating", "item", id, "error", err)
			r.notice(err)
		}
		// The catalog notifies OnRatingChanged; applied before this batch flushes
	})
}

// ToggleMarked flips the mark on the current item and persists it
func (r *Review) ToggleMarked() {
	r.post(func(r *Review) {
		id, ok := r.nav.CurrentID()
		if !ok {
			return
		}
		marked := r.nav.ToggleMarked()
		r.markDirty(navigation.CauseItem)
		if err := r.cat.SetMarked(id, marked); err != nil {
			r.logger.Error("failed to persist mark", "item", id, "error", err)
			r.notice(err)
		}
	})
}

// CycleMarked moves the review focus to the next or previous marked item
func (r *Review) CycleMarked(dir navigation.Direction) {
	r.post(func(r *Review) {
		if _, ok := r.nav.NextMarked(dir); !ok {
			r.notice(fmt.Errorf("no marked items"))
		}
	})
}

// JumpTo positions on id if it is in the view
func (r *Review) JumpTo(id domain.ItemID) {
	r.post(func(r *Review) {
		if !r.nav.JumpTo(id) {
			r.notice(fmt.Errorf("%s: %w", id, domain.ErrItemNotFound))
		}
	})
}

// JumpToName jumps to the view member whose name best matches query
func (r *Review) JumpToName(query string) {
	r.post(func(r *Review) {
		best, ok := search.NewNameIndex(r.nav.Items()).Best(query)
		if !ok {
			r.notice(fmt.Errorf("no file matching %q: %w", query, domain.ErrItemNotFound))
			return
		}
		r.nav.JumpTo(best.ID)
	})
}

// Rescan re-reads the catalog directory
func (r *Review) Rescan() {
	r.post(func(r *Review) { r.rescan = true })
}

// OnRatingChanged implements domain.RatingObserver. It may be called from
// any goroutine and never blocks.
func (r *Review) OnRatingChanged(id domain.ItemID, _ domain.Rating) {
	r.ratedMu.Lock()
	r.rated = append(r.rated, id)
	r.ratedMu.Unlock()
	select {
	case r.ratedSignal <- struct{}{}:
	default:
	}
}

// Close stops the coordinator, then the pool, then the watcher and store.
// Idempotent.
func (r *Review) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		close(r.done)
		select {
		case <-r.stopped:
		case <-ctx.Done():
			r.closeErr = fmt.Errorf("coordinator stop: %w", ctx.Err())
			return
		}

		if err := r.pool.Close(ctx); err != nil {
			r.closeErr = err
		}
		if r.watcher != nil {
			if err := r.watcher.Close(); err != nil && r.closeErr == nil {
				r.closeErr = err
			}
		}
		if r.store != nil {
			if err := r.store.Close(); err != nil && r.closeErr == nil {
				r.closeErr = err
			}
		}
		r.notify.close()
		r.logger.Info("review closed")
	})
	return r.closeErr
}

func (r *Review) post(cmd command) {
	select {
	case r.cmds <- cmd:
	case <-r.done:
	}
}

// === Coordinator ===

func (r *Review) run() {
	defer close(r.stopped)

	results := r.pool.Results()
	var changes <-chan catalog.Change
	if r.watcher != nil {
		changes = r.watcher.Changes()
	}

	for {
		select {
		case <-r.done:
			return

		case cmd := <-r.cmds:
			cmd(r)
			r.drain()
			r.flush()

		case <-r.ratedSignal:
			r.applyRated()
			r.flush()

		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			r.complete(res)

		case ch, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.fileChanged(ch)
			r.flush()
		}
	}
}

// drain applies every command already waiting, so a burst of input costs
// one scheduler sync for the final state.
func (r *Review) drain() {
	for {
		select {
		case cmd := <-r.cmds:
			cmd(r)
		default:
			r.applyRated()
			return
		}
	}
}

func (r *Review) applyRated() {
	r.ratedMu.Lock()
	ids := r.rated
	r.rated = nil
	r.ratedMu.Unlock()
	for _, id := range ids {
		r.nav.RatingChanged(id)
	}
	if len(ids) > 0 {
		// Republish even when membership did not change: the rating did
		r.markDirty(navigation.CauseItem)
	}
}

// flush syncs the scheduler with the latest view event and publishes state
func (r *Review) flush() {
	if r.rescan {
		r.rescan = false
		r.reload()
	}
	notice := r.pendingNotice
	r.pendingNotice = nil

	if !r.dirty {
		if notice != nil {
			r.notify.publish(Update{Kind: UpdateNotice, State: *r.state.Load(), Err: notice})
		}
		return
	}
	r.dirty = false

	cfg := r.sched.Config()
	r.sched.Sync(r.lastEvent, r.nav.Window(cfg.Behind, cfg.Ahead))
	st := r.publish()

	if st.HasItem && !st.MarkedMode && !r.nav.Filter().Matches(st.Item) {
		r.logger.Error("current item does not match the active filter",
			"item", st.Item.ID, "filter", st.Filter, "error", domain.ErrInvalidFilterState)
	}
	r.notify.publish(Update{Kind: UpdateView, State: st, Err: notice})
}

func (r *Review) publish() State {
	st := State{
		Generation:  r.nav.Generation(),
		Position:    -1,
		Len:         r.nav.Len(),
		Total:       r.cat.Len(),
		Filter:      r.nav.Filter().Name,
		MarkedMode:  r.nav.InMarkedMode(),
		MarkedCount: r.nav.MarkedCount(),
		Prefetch:    r.sched.Stats(),
	}
	if p, ok := r.nav.Position(); ok {
		st.Position = p
	}
	st.Item, st.HasItem = r.nav.CurrentItem()
	if st.HasItem {
		st.Marked = r.nav.IsMarked(st.Item.ID)
	}
	r.state.Store(&st)
	return st
}

func (r *Review) complete(res pool.Result) {
	out := r.sched.Complete(res)
	if !out.Current {
		return
	}
	st := r.publish()
	r.notify.publish(Update{
		Kind:  UpdateImage,
		State: st,
		Key:   out.Key,
		Load:  r.cache.Get(out.Key).State,
	})
}

func (r *Review) fileChanged(ch catalog.Change) {
	item, known := r.cat.Lookup(ch.Path)
	r.logger.Debug("file changed", "path", ch.Path, "kind", ch.Kind.String(), "known", known)

	switch ch.Kind {
	case catalog.Modified:
		if known {
			r.sched.Invalidate(item.ID)
			r.markDirty(navigation.CauseItem)
		}
	case catalog.Removed:
		if known {
			r.cache.InvalidateItem(item.ID)
		}
		r.rescan = true
	case catalog.Created:
		r.rescan = true
	}
}

func (r *Review) reload() {
	changed, err := r.cat.Rescan()
	if err != nil {
		r.logger.Error("rescan failed", "error", err)
		r.notice(err)
		return
	}
	if changed {
		r.nav.Reload()
	}
}

// markDirty forces a scheduler sync without a view mutation
func (r *Review) markDirty(cause navigation.Cause) {
	item, ok := r.nav.CurrentItem()
	pos := -1
	if p, has := r.nav.Position(); has {
		pos = p
	}
	r.lastEvent = navigation.ViewChanged{
		Generation: r.nav.Generation(),
		Cause:      cause,
		Position:   pos,
		Len:        r.nav.Len(),
		Item:       item,
		HasItem:    ok,
		MarkedMode: r.nav.InMarkedMode(),
		Filter:     r.nav.Filter().Name,
	}
	r.dirty = true
}

// notice reports a failed command with the batch's update
func (r *Review) notice(err error) {
	r.pendingNotice = err
}
