package navigation

import "github.com/mmcdole/culler/internal/domain"

// Cause identifies which mutation produced a ViewChanged event
type Cause int

const (
	CauseNavigate Cause = iota // advance / jump / seek
	CauseFilter                // filter swap
	CauseItem                  // rating- or mark-driven insert/remove
	CauseMarked                // marked-set cycling
	CauseReload                // catalog rescan
)

func (c Cause) String() string {
	switch c {
	case CauseNavigate:
		return "navigate"
	case CauseFilter:
		return "filter"
	case CauseItem:
		return "item"
	case CauseMarked:
		return "marked"
	case CauseReload:
		return "reload"
	default:
		return "unknown"
	}
}

// ViewChanged is emitted once per mutation. Generation increases by one
// with every event, so consumers can discard work keyed to an older value.
type ViewChanged struct {
	Generation uint64
	Cause      Cause
	Position   int // Offset in the filtered view (-1 when empty)
	Len        int // Number of items in the filtered view
	Item       domain.Item
	HasItem    bool // False when there is no current item
	MarkedMode bool // Current item comes from the marked-set cursor
	Filter     string
}

// Listener receives ViewChanged events on the coordinator goroutine.
type Listener interface {
	OnViewChanged(ev ViewChanged)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ev ViewChanged)

func (f ListenerFunc) OnViewChanged(ev ViewChanged) { f(ev) }
