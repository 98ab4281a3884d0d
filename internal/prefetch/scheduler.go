// Package prefetch keeps the images around the current position loaded.
//
// The Scheduler is owned by a single goroutine. It turns each view change
// into a desired window, diffs it against the previous one, and reconciles
// the worker pool and load cache with the difference.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/pool"
)

// Config bounds the prefetch window
type Config struct {
	Ahead     int            // Items after the current one
	Behind    int            // Items before the current one
	MaxQueued int            // Outstanding window tasks beyond the current item
	Variant   domain.Variant // Variant loaded for display
}

// Submitter is the part of the worker pool the scheduler drives
type Submitter interface {
	Submit(t pool.Task) (pool.Handle, error)
	Cancel(h pool.Handle) bool
	Reprioritize(h pool.Handle, tier pool.Tier) bool
}

// Outcome describes a completed task as seen at completion time
type Outcome struct {
	Key     domain.LoadKey
	Needed  bool // Still in the desired window
	Current bool // Is the item on screen right now
	Stored  bool // The cache holds the result (false if it was invalidated meanwhile)
	Err     error
}

// Stats is a snapshot of scheduler counters
type Stats struct {
	Generation uint64
	Desired    int
	Inflight   int
	Submitted  int64
	Cancelled  int64
	Obsolete   int64 // Completions that were no longer needed
}

type target struct {
	key  domain.LoadKey
	path string
}

// Scheduler reconciles the desired window with the pool and cache.
// It is not safe for concurrent use.
type Scheduler struct {
	cfg     Config
	pool    Submitter
	cache   *cache.LoadCache
	decoder domain.Decoder
	logger  *slog.Logger

	generation uint64
	current    domain.LoadKey
	hasCurrent bool
	desired    []target // Priority order, current first
	desiredSet map[domain.LoadKey]struct{}
	inflight   map[domain.LoadKey]pool.Handle

	submitted int64
	cancelled int64
	obsolete  int64
}

// New creates a scheduler
func New(cfg Config, p Submitter, c *cache.LoadCache, dec domain.Decoder, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxQueued < 0 {
		cfg.MaxQueued = 0
	}
	return &Scheduler{
		cfg:        cfg,
		pool:       p,
		cache:      c,
		decoder:    dec,
		logger:     logger,
		desiredSet: make(map[domain.LoadKey]struct{}),
		inflight:   make(map[domain.LoadKey]pool.Handle),
	}
}

// Config returns the window bounds, for callers computing the window
func (s *Scheduler) Config() Config { return s.cfg }

// Sync recomputes the desired window from the latest view state. window is
// the navigator's window in priority order with the current item first.
// Calling Sync only with the latest event coalesces bursts of navigation.
func (s *Scheduler) Sync(ev navigation.ViewChanged, window []domain.Item) {
	s.generation = ev.Generation

	s.desired = s.desired[:0]
	s.desiredSet = make(map[domain.LoadKey]struct{}, len(window))
	s.hasCurrent = false
	for i, item := range window {
		k := domain.LoadKey{Item: item.ID, Variant: s.cfg.Variant}
		if _, dup := s.desiredSet[k]; dup {
			continue
		}
		if i == 0 && ev.HasItem {
			s.current, s.hasCurrent = k, true
		}
		s.desiredSet[k] = struct{}{}
		s.desired = append(s.desired, target{key: k, path: item.Path})
	}

	keys := make([]domain.LoadKey, len(s.desired))
	for i, t := range s.desired {
		keys[i] = t.key
	}
	s.cache.Pin(keys)

	for k, h := range s.inflight {
		if _, want := s.desiredSet[k]; want {
			s.pool.Reprioritize(h, s.tierFor(k))
			continue
		}
		if s.pool.Cancel(h) {
			// Never ran: the reservation goes with it
			delete(s.inflight, k)
			s.cache.Release(k)
			s.cancelled++
		}
		// Running tasks finish; Complete reports them as not needed
	}

	s.fill()
	s.logger.Debug("prefetch sync",
		"generation", ev.Generation,
		"cause", ev.Cause.String(),
		"desired", len(s.desired),
		"inflight", len(s.inflight))
}

// Complete records a finished task. Relevance is decided now, against the
// latest desired window, not against the window at submission time.
func (s *Scheduler) Complete(res pool.Result) Outcome {
	if h, ok := s.inflight[res.Key]; ok && h == res.Handle {
		delete(s.inflight, res.Key)
	}

	_, needed := s.desiredSet[res.Key]
	out := Outcome{
		Key:     res.Key,
		Needed:  needed,
		Current: s.hasCurrent && res.Key == s.current,
		Err:     res.Err,
	}
	state := s.cache.Get(res.Key).State
	out.Stored = state == cache.StateReady || state == cache.StateFailed

	if !needed {
		s.obsolete++
		s.logger.Debug("obsolete completion",
			"key", res.Key.String(),
			"submitted_generation", res.Generation,
			"generation", s.generation)
	} else if res.Err != nil {
		s.logger.Warn("load failed", "key", res.Key.String(), "error", res.Err)
	}

	// A slot freed up, or an invalidated result needs reloading
	s.fill()
	return out
}

// Invalidate drops cached variants of id and reloads it if it is desired
func (s *Scheduler) Invalidate(id domain.ItemID) {
	s.cache.InvalidateItem(id)
	s.fill()
}

// Stats returns a snapshot of scheduler counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Generation: s.generation,
		Desired:    len(s.desired),
		Inflight:   len(s.inflight),
		Submitted:  s.submitted,
		Cancelled:  s.cancelled,
		Obsolete:   s.obsolete,
	}
}

// fill requests desired keys in priority order. The current item is always
// requested; window items only while fewer than MaxQueued are outstanding,
// the rest stay unrequested until a slot frees up.
func (s *Scheduler) fill() {
	for _, t := range s.desired {
		if _, ok := s.inflight[t.key]; ok {
			continue
		}
		isCurrent := s.hasCurrent && t.key == s.current
		if !isCurrent && s.windowInflight() >= s.cfg.MaxQueued {
			return
		}
		if s.cache.GetOrReserve(t.key).State != cache.StateAbsent {
			// Ready, failed, or still owned by an invalidated task
			continue
		}
		if err := s.submit(t, isCurrent); err != nil {
			s.cache.Release(t.key)
			if errors.Is(err, domain.ErrPoolClosed) {
				return
			}
			s.logger.Error("submit failed", "key", t.key.String(), "error", err)
		}
	}
}

func (s *Scheduler) submit(t target, isCurrent bool) error {
	tier := pool.TierWindow
	if isCurrent {
		tier = pool.TierCurrent
	}
	h, err := s.pool.Submit(pool.Task{
		Key:        t.key,
		Tier:       tier,
		Generation: s.generation,
		Run:        s.loadFunc(t),
	})
	if err != nil {
		return err
	}
	s.cache.SetHandle(t.key, h)
	s.inflight[t.key] = h
	s.submitted++
	return nil
}

// loadFunc decodes on a worker and writes the outcome to the cache there,
// so the presentation layer sees it before the coordinator does.
func (s *Scheduler) loadFunc(t target) pool.RunFunc {
	dec, c := s.decoder, s.cache
	return func(ctx context.Context) (*domain.DecodedImage, error) {
		img, err := dec.Decode(ctx, t.key, t.path)
		switch {
		case img != nil:
			// Cancelled or not, a finished decode is kept; Complete decides relevance
			c.Complete(t.key, img)
			return img, nil
		case errors.Is(err, context.Canceled):
			// Withdrawn before decoding started; nothing to remember
			c.Release(t.key)
			return nil, err
		case err != nil:
			c.Fail(t.key, err)
			return nil, err
		}
		err = fmt.Errorf("decode %s: no image", t.key)
		c.Fail(t.key, err)
		return nil, err
	}
}

func (s *Scheduler) tierFor(k domain.LoadKey) pool.Tier {
	if s.hasCurrent && k == s.current {
		return pool.TierCurrent
	}
	return pool.TierWindow
}

func (s *Scheduler) windowInflight() int {
	n := len(s.inflight)
	if s.hasCurrent {
		if _, ok := s.inflight[s.current]; ok {
			n--
		}
	}
	return n
}
