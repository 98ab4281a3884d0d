package navigation

import (
	"log/slog"

	"github.com/mmcdole/culler/internal/domain"
)

// Navigator is the single indexing surface over the filtered view and the
// marked set. Every "current X" question goes through it and every query is
// total: an empty view answers with ok=false instead of failing.
//
// Navigator is owned by one goroutine (the coordinator). Listeners are
// called synchronously on that goroutine, once per mutation.
type Navigator struct {
	src    Source
	view   *View
	marks  *Marks
	logger *slog.Logger

	markedMode bool
	generation uint64
	listeners  []Listener
}

// NewNavigator creates a navigator over src with the given initial filter
func NewNavigator(src Source, filter Filter, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		src:    src,
		view:   NewView(src, filter),
		marks:  NewMarks(src),
		logger: logger,
	}
}

// Subscribe registers a listener for ViewChanged events
func (n *Navigator) Subscribe(l Listener) {
	n.listeners = append(n.listeners, l)
}

// === Queries ===

// CurrentItem returns the current item, or false when there is none
func (n *Navigator) CurrentItem() (domain.Item, bool) {
	if n.markedMode {
		if item, ok := n.marks.Cursor(); ok {
			return item, true
		}
	}
	return n.view.Current()
}

// CurrentRating returns the rating of the current item
func (n *Navigator) CurrentRating() (domain.Rating, bool) {
	item, ok := n.CurrentItem()
	if !ok {
		return domain.RatingNone, false
	}
	return item.Rating, true
}

// CurrentPath returns the on-disk path of the current item
func (n *Navigator) CurrentPath() (string, bool) {
	item, ok := n.CurrentItem()
	if !ok {
		return "", false
	}
	return item.Path, true
}

// CurrentID returns the id of the current item
func (n *Navigator) CurrentID() (domain.ItemID, bool) {
	item, ok := n.CurrentItem()
	if !ok {
		return "", false
	}
	return item.ID, true
}

// IsViewEmpty reports whether the active filter matches nothing
func (n *Navigator) IsViewEmpty() bool { return n.view.Empty() }

// Position returns the offset of the current item in the filtered view
func (n *Navigator) Position() (int, bool) { return n.view.Position() }

// Len returns the number of items in the filtered view
func (n *Navigator) Len() int { return n.view.Len() }

// Filter returns the active filter
func (n *Navigator) Filter() Filter { return n.view.Filter() }

// Generation returns the generation of the last emitted event
func (n *Navigator) Generation() uint64 { return n.generation }

// InMarkedMode reports whether the current item comes from the marked cursor
func (n *Navigator) InMarkedMode() bool { return n.markedMode }

// Items returns the members of the filtered view in order
func (n *Navigator) Items() []domain.Item { return n.view.Items() }

// Window returns the current item and its neighbors in load priority order.
// In marked mode the neighbors are the adjacent marked items.
func (n *Navigator) Window(behind, ahead int) []domain.Item {
	if n.markedMode {
		if w := n.marks.Window(behind, ahead); len(w) > 0 {
			return w
		}
	}
	return n.view.Window(behind, ahead)
}

// IsMarked reports whether id is in the marked set
func (n *Navigator) IsMarked(id domain.ItemID) bool { return n.marks.Contains(id) }

// MarkedIDs returns marked ids in catalog order
func (n *Navigator) MarkedIDs() []domain.ItemID { return n.marks.IDs() }

// MarkedCount returns the size of the marked set
func (n *Navigator) MarkedCount() int { return n.marks.Len() }

// MarkedFilter returns a filter matching the marked set. Mark changes are
// fed back into the view, so it stays consistent while active.
func (n *Navigator) MarkedFilter() Filter {
	return InSet("marked", n.marks.Contains)
}

// === Commands ===

// Advance moves delta steps within the filtered view, clamped to bounds.
// A no-op on an empty view.
func (n *Navigator) Advance(delta int) {
	left := n.leaveMarkedMode()
	if n.view.Advance(delta) || left {
		n.emit(CauseNavigate)
	}
}

// JumpToStart positions on the first item of the view
func (n *Navigator) JumpToStart() {
	left := n.leaveMarkedMode()
	if n.view.JumpToStart() || left {
		n.emit(CauseNavigate)
	}
}

// JumpToEnd positions on the last item of the view
func (n *Navigator) JumpToEnd() {
	left := n.leaveMarkedMode()
	if n.view.JumpToEnd() || left {
		n.emit(CauseNavigate)
	}
}

// JumpTo positions on id if it is in the view. Returns false otherwise.
func (n *Navigator) JumpTo(id domain.ItemID) bool {
	if !n.view.Contains(id) {
		return false
	}
	left := n.leaveMarkedMode()
	if n.view.Seek(id) || left {
		n.emit(CauseNavigate)
	}
	return true
}

// SetFilter swaps the active filter atomically and emits one event
func (n *Navigator) SetFilter(f Filter) {
	n.leaveMarkedMode()
	prev := n.view.Filter().Name
	n.view.SetFilter(f)
	n.logger.Debug("filter changed", "from", prev, "to", f.Name, "matches", n.view.Len())
	n.emit(CauseFilter)
}

// RatingChanged re-evaluates an item after its rating changed in the catalog
func (n *Navigator) RatingChanged(id domain.ItemID) {
	n.itemChanged(id)
}

// Reload rebuilds the view after the catalog was rescanned
func (n *Navigator) Reload() {
	n.view.Rebuild()
	if n.markedMode {
		if _, ok := n.marks.Cursor(); !ok {
			n.markedMode = false
		}
	}
	n.emit(CauseReload)
}

// SetMarked adds id to the marked set
func (n *Navigator) SetMarked(id domain.ItemID) {
	if n.marks.Set(id) {
		n.itemChanged(id)
	}
}

// ClearMarked removes id from the marked set. If the marked cursor was on
// id, it moves to the next marked item, or marked mode ends when none remain.
func (n *Navigator) ClearMarked(id domain.ItemID) {
	if !n.marks.Clear(id) {
		return
	}
	cause, changed := CauseItem, n.view.ItemChanged(id)
	if n.markedMode {
		if _, ok := n.marks.Cursor(); !ok {
			n.markedMode = false
		}
		cause, changed = CauseMarked, true
	}
	if changed {
		n.emit(cause)
	}
}

// ToggleMarked flips the mark on the current item and returns the new state.
// Returns false with no effect when there is no current item.
func (n *Navigator) ToggleMarked() bool {
	id, ok := n.CurrentID()
	if !ok {
		return false
	}
	if n.marks.Contains(id) {
		n.ClearMarked(id)
		return false
	}
	n.SetMarked(id)
	return true
}

// NextMarked moves the marked cursor one step in dir (wrapping) and makes
// the marked item current. Returns false when nothing is marked.
func (n *Navigator) NextMarked(dir Direction) (domain.Item, bool) {
	ref, _ := n.view.Current()
	item, ok := n.marks.Next(dir, ref.ID)
	if !ok {
		return domain.Item{}, false
	}
	n.markedMode = true
	n.emit(CauseMarked)
	return item, true
}

// leaveMarkedMode returns to the filtered view, seeking to the marked item
// when it is a member. Returns true if marked mode was active.
func (n *Navigator) leaveMarkedMode() bool {
	if !n.markedMode {
		return false
	}
	n.markedMode = false
	if item, ok := n.marks.Cursor(); ok {
		n.view.Seek(item.ID)
	}
	return true
}

func (n *Navigator) itemChanged(id domain.ItemID) {
	if n.view.ItemChanged(id) {
		n.emit(CauseItem)
	}
}

func (n *Navigator) emit(cause Cause) {
	n.generation++
	ev := ViewChanged{
		Generation: n.generation,
		Cause:      cause,
		Position:   noPosition,
		Len:        n.view.Len(),
		MarkedMode: n.markedMode,
		Filter:     n.view.Filter().Name,
	}
	if p, ok := n.view.Position(); ok {
		ev.Position = p
	}
	ev.Item, ev.HasItem = n.CurrentItem()

	for _, l := range n.listeners {
		l.OnViewChanged(ev)
	}
}
