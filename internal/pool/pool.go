// Package pool runs decode tasks on a fixed number of workers.
//
// Tasks are dispatched strictly by tier (the current item before its
// neighbors) and first-submitted-first-run within a tier. A worker picks
// up the next task as soon as it is free; nothing waits on a timer.
// At most one task per load key is outstanding at any time.
package pool

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/culler/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Tier is a dispatch priority class. Lower values run first.
type Tier int

const (
	TierCurrent Tier = iota // The item on screen
	TierWindow              // Prefetch neighbors
)

func (t Tier) String() string {
	switch t {
	case TierCurrent:
		return "current"
	case TierWindow:
		return "window"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// RunFunc performs the work of a task. The context is cancelled when the
// task is cancelled while running or the pool closes; honoring it is optional.
type RunFunc func(ctx context.Context) (*domain.DecodedImage, error)

// Task is a unit of work submitted to the pool
type Task struct {
	Key        domain.LoadKey
	Tier       Tier
	Generation uint64 // View generation at submission time
	Run        RunFunc
}

// Handle identifies a submitted task. The zero Handle is never issued.
type Handle uint64

// Result reports a finished task on the completion channel
type Result struct {
	Handle     Handle
	Key        domain.LoadKey
	Generation uint64
	Image      *domain.DecodedImage
	Err        error
	Cancelled  bool // Cancel was requested while the task was running
}

// Stats is a point-in-time snapshot of pool counters
type Stats struct {
	Workers   int
	Queued    int
	Running   int
	Completed int64
	Failed    int64
	Cancelled int64
}

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
)

type job struct {
	handle     Handle
	key        domain.LoadKey
	tier       Tier
	generation uint64
	run        RunFunc
	seq        uint64
	index      int // heap index while queued

	state     jobState
	cancelled bool
	cancel    context.CancelFunc
}

// Pool is a fixed-size worker pool with a tiered priority queue.
// All methods are safe for concurrent use.
type Pool struct {
	logger  *slog.Logger
	workers int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    jobQueue
	byKey    map[domain.LoadKey]*job
	byHandle map[Handle]*job
	nextID   uint64
	nextSeq  uint64
	running  int
	closed   bool

	results chan Result
	ctx     context.Context
	stop    context.CancelFunc
	group   *errgroup.Group

	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

// New starts a pool with the given number of workers (minimum 1)
func New(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		logger:   logger,
		workers:  workers,
		byKey:    make(map[domain.LoadKey]*job),
		byHandle: make(map[Handle]*job),
		results:  make(chan Result, workers*4),
		ctx:      gctx,
		stop:     stop,
		group:    g,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		g.Go(p.worker)
	}
	return p
}

// Results is the completion channel. Completion order is unrelated to
// submission order. The channel is closed once Close has drained the workers.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Submit enqueues a task. If a task with the same key is already queued or
// running, its handle is returned instead and, when still queued, it is
// promoted to the higher of the two tiers.
func (p *Pool) Submit(t Task) (Handle, error) {
	if t.Run == nil {
		return 0, fmt.Errorf("submit %s: nil run func", t.Key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, domain.ErrPoolClosed
	}

	if existing, ok := p.byKey[t.Key]; ok {
		if existing.state == jobQueued && t.Tier < existing.tier {
			existing.tier = t.Tier
			heap.Fix(&p.queue, existing.index)
		}
		return existing.handle, nil
	}

	p.nextID++
	p.nextSeq++
	j := &job{
		handle:     Handle(p.nextID),
		key:        t.Key,
		tier:       t.Tier,
		generation: t.Generation,
		run:        t.Run,
		seq:        p.nextSeq,
	}
	heap.Push(&p.queue, j)
	p.byKey[j.key] = j
	p.byHandle[j.handle] = j
	p.cond.Signal()
	return j.handle, nil
}

// Cancel removes a queued task so it never runs and returns true. For a
// running task cancellation is advisory: its context is cancelled, the
// result is still delivered with Cancelled set, and Cancel returns false.
func (p *Pool) Cancel(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.byHandle[h]
	if !ok {
		return false
	}
	if j.state == jobRunning {
		j.cancelled = true
		if j.cancel != nil {
			j.cancel()
		}
		return false
	}

	heap.Remove(&p.queue, j.index)
	p.forget(j)
	p.cancelled.Add(1)
	return true
}

// Reprioritize moves a queued task to another tier. A task keeps its
// original submission order within the new tier.
func (p *Pool) Reprioritize(h Handle, tier Tier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.byHandle[h]
	if !ok || j.state != jobQueued || j.tier == tier {
		return false
	}
	j.tier = tier
	heap.Fix(&p.queue, j.index)
	return true
}

// outstanding reports whether a task for key is queued or running
func (p *Pool) outstanding(key domain.LoadKey) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.byKey[key]
	if !ok {
		return 0, false
	}
	return j.handle, true
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued, running := len(p.queue), p.running
	p.mu.Unlock()
	return Stats{
		Workers:   p.workers,
		Queued:    queued,
		Running:   running,
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Cancelled: p.cancelled.Load(),
	}
}

// Close stops accepting tasks, drops queued tasks, and waits for running
// tasks to finish or ctx to expire. Running tasks see their context
// cancelled. Idempotent.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dropped := len(p.queue)
	for len(p.queue) > 0 {
		p.forget(heap.Pop(&p.queue).(*job))
	}
	p.cancelled.Add(int64(dropped))
	p.cond.Broadcast()
	p.mu.Unlock()

	p.stop()
	p.logger.Debug("pool closing", "dropped", dropped)

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		close(p.results)
		return err
	case <-ctx.Done():
		return fmt.Errorf("pool close: %w", ctx.Err())
	}
}

// forget drops bookkeeping for a job; caller holds mu
func (p *Pool) forget(j *job) {
	delete(p.byKey, j.key)
	delete(p.byHandle, j.handle)
}

func (p *Pool) worker() error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return nil
		}
		j := heap.Pop(&p.queue).(*job)
		var jctx context.Context
		jctx, j.cancel = context.WithCancel(p.ctx)
		j.state = jobRunning
		p.running++
		p.mu.Unlock()

		img, err := p.execute(jctx, j)

		p.mu.Lock()
		p.running--
		p.forget(j)
		cancelled := j.cancelled
		p.mu.Unlock()
		j.cancel()

		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}

		res := Result{
			Handle:     j.handle,
			Key:        j.key,
			Generation: j.generation,
			Image:      img,
			Err:        err,
			Cancelled:  cancelled,
		}
		select {
		case p.results <- res:
		case <-p.ctx.Done():
			// Closing and nobody is draining: the cache already holds the outcome
		}
	}
}

// execute runs a job, converting a panic into an error so one bad file
// cannot take a worker down.
func (p *Pool) execute(ctx context.Context, j *job) (img *domain.DecodedImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "key", j.key.String(), "panic", r)
			err = fmt.Errorf("task %s panicked: %v", j.key, r)
		}
	}()
	return j.run(ctx)
}
