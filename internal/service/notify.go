package service

import (
	"sync"

	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/domain"
)

// UpdateKind classifies what changed
type UpdateKind int

const (
	UpdateView   UpdateKind = iota // Position, filter, or view membership changed
	UpdateImage                    // The current item's image finished loading
	UpdateNotice                   // Only Err is new
)

// Update tells a subscriber to re-read the published State
type Update struct {
	Kind  UpdateKind
	State State
	Key   domain.LoadKey // UpdateImage only
	Load  cache.State    // UpdateImage only
	Err   error          // A command in the batch could not be carried out
}

// notifier fans updates out to subscribers. Each subscriber has a one-slot
// mailbox: a newer update replaces one that was not read yet, so a slow
// reader never stalls the coordinator and always sees the latest state.
type notifier struct {
	mu   sync.Mutex
	subs []chan Update
}

func (n *notifier) subscribe() <-chan Update {
	ch := make(chan Update, 1)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// publish is only called from the coordinator goroutine, so the
// drain-then-send below cannot race another producer.
func (n *notifier) publish(u Update) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Full: drop the stale update and deliver the new one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
