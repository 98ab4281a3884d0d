package navigation

import (
	"sort"

	"github.com/mmcdole/culler/internal/domain"
)

// Source is the ordered full catalog the view indexes into.
type Source interface {
	Len() int
	At(i int) domain.Item
	IndexOf(id domain.ItemID) (int, bool)
}

// noPosition marks an undefined position (empty sequence)
const noPosition = -1

// View is the ordered subsequence of the catalog matching the active filter,
// plus a position within it.
//
// Invariants:
//   - seq holds catalog indices in ascending order
//   - pos is noPosition iff seq is empty, otherwise 0 <= pos < len(seq)
//
// View is not safe for concurrent use; it is owned by the coordinator.
type View struct {
	src    Source
	filter Filter
	seq    []int
	pos    int

	// anchor is the catalog index of the last defined current item. It
	// survives an empty view so the stability rule still has a reference
	// when a later filter brings items back.
	anchor   int
	anchorID domain.ItemID
}

// NewView builds a view over src with the given filter, positioned on the
// first matching item.
func NewView(src Source, filter Filter) *View {
	v := &View{src: src, filter: filter, pos: noPosition, anchor: noPosition}
	v.rebuild()
	if len(v.seq) > 0 {
		v.setPos(0)
	}
	return v
}

// Len returns the number of items in the view
func (v *View) Len() int { return len(v.seq) }

// Empty reports whether no item matches the active filter
func (v *View) Empty() bool { return len(v.seq) == 0 }

// Filter returns the active filter
func (v *View) Filter() Filter { return v.filter }

// Position returns the current offset, or false when the view is empty
func (v *View) Position() (int, bool) {
	if v.pos == noPosition {
		return 0, false
	}
	return v.pos, true
}

// Current returns the item at the current position. This is the only place
// the sequence is indexed by position; every caller goes through it.
func (v *View) Current() (domain.Item, bool) {
	return v.At(v.pos)
}

// At returns the item at offset p of the view, or false if p is out of range
func (v *View) At(p int) (domain.Item, bool) {
	if p < 0 || p >= len(v.seq) {
		return domain.Item{}, false
	}
	return v.src.At(v.seq[p]), true
}

// Contains reports whether the catalog item is a member of the view
func (v *View) Contains(id domain.ItemID) bool {
	_, ok := v.offsetOf(id)
	return ok
}

// SetFilter swaps the active filter and rebuilds the sequence in one step.
// The current item is kept if it still matches; otherwise the position moves
// to the nearest earlier match, then the nearest later match, and is
// undefined only when nothing matches.
func (v *View) SetFilter(f Filter) {
	v.filter = f
	v.rebuild()
	v.restoreFromAnchor()
}

// Rebuild recomputes the sequence with the active filter, e.g. after the
// catalog was rescanned. Catalog indices may have shifted, so the anchor is
// re-resolved by id; a vanished anchor keeps its old index as the reference.
func (v *View) Rebuild() {
	if v.anchor != noPosition {
		if idx, ok := v.src.IndexOf(v.anchorID); ok {
			v.anchor = idx
		}
	}
	v.rebuild()
	v.restoreFromAnchor()
}

// ItemChanged re-evaluates one item against the active filter and inserts
// or removes it without disturbing the order of the other members.
// Returns true if the sequence or the current item changed.
func (v *View) ItemChanged(id domain.ItemID) bool {
	idx, ok := v.src.IndexOf(id)
	if !ok {
		return false
	}
	match := v.filter.Matches(v.src.At(idx))
	k := sort.SearchInts(v.seq, idx)
	present := k < len(v.seq) && v.seq[k] == idx

	switch {
	case match && !present:
		v.seq = append(v.seq, 0)
		copy(v.seq[k+1:], v.seq[k:])
		v.seq[k] = idx
		if v.pos == noPosition {
			v.setPos(k)
		} else if k <= v.pos {
			v.pos++
		}
		return true

	case !match && present:
		v.seq = append(v.seq[:k], v.seq[k+1:]...)
		switch {
		case len(v.seq) == 0:
			v.pos = noPosition
		case k < v.pos:
			v.pos--
		case k == v.pos:
			// Current item left the view: nearest earlier, else the next one
			if k > 0 {
				v.setPos(k - 1)
			} else {
				v.setPos(0)
			}
		}
		return true
	}
	return false
}

// Advance moves the position by delta, clamped to the sequence bounds.
// Returns false when the position did not change (empty view or at a bound).
func (v *View) Advance(delta int) bool {
	if v.pos == noPosition || delta == 0 {
		return false
	}
	// Compare against the remaining distance so huge deltas cannot overflow
	last := len(v.seq) - 1
	var target int
	switch {
	case delta > last-v.pos:
		target = last
	case delta < -v.pos:
		target = 0
	default:
		target = v.pos + delta
	}
	if target == v.pos {
		return false
	}
	v.setPos(target)
	return true
}

// JumpToStart positions on the first item; false if nothing moved
func (v *View) JumpToStart() bool {
	if len(v.seq) == 0 || v.pos == 0 {
		return false
	}
	v.setPos(0)
	return true
}

// JumpToEnd positions on the last item; false if nothing moved
func (v *View) JumpToEnd() bool {
	last := len(v.seq) - 1
	if last < 0 || v.pos == last {
		return false
	}
	v.setPos(last)
	return true
}

// Seek positions on the given item if it is a member of the view
func (v *View) Seek(id domain.ItemID) bool {
	k, ok := v.offsetOf(id)
	if !ok || k == v.pos {
		return false
	}
	v.setPos(k)
	return true
}

// Window returns the items around the current position in priority order:
// current first, then alternating ahead/behind by increasing distance.
func (v *View) Window(behind, ahead int) []domain.Item {
	if v.pos == noPosition {
		return nil
	}
	out := make([]domain.Item, 0, 1+behind+ahead)
	cur, _ := v.Current()
	out = append(out, cur)
	for d := 1; d <= ahead || d <= behind; d++ {
		if d <= ahead {
			if item, ok := v.At(v.pos + d); ok {
				out = append(out, item)
			}
		}
		if d <= behind {
			if item, ok := v.At(v.pos - d); ok {
				out = append(out, item)
			}
		}
	}
	return out
}

// Items returns the members of the view in order
func (v *View) Items() []domain.Item {
	out := make([]domain.Item, len(v.seq))
	for i, idx := range v.seq {
		out[i] = v.src.At(idx)
	}
	return out
}

func (v *View) setPos(p int) {
	v.pos = p
	v.anchor = v.seq[p]
	v.anchorID = v.src.At(v.anchor).ID
}

func (v *View) offsetOf(id domain.ItemID) (int, bool) {
	idx, ok := v.src.IndexOf(id)
	if !ok {
		return 0, false
	}
	k := sort.SearchInts(v.seq, idx)
	if k < len(v.seq) && v.seq[k] == idx {
		return k, true
	}
	return 0, false
}

func (v *View) rebuild() {
	n := v.src.Len()
	seq := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if v.filter.Matches(v.src.At(i)) {
			seq = append(seq, i)
		}
	}
	v.seq = seq
}

// restoreFromAnchor applies the stability rule after a rebuild
func (v *View) restoreFromAnchor() {
	if len(v.seq) == 0 {
		v.pos = noPosition
		return
	}
	if v.anchor == noPosition {
		v.setPos(0)
		return
	}
	// First member at or after the anchor
	k := sort.SearchInts(v.seq, v.anchor)
	switch {
	case k < len(v.seq) && v.seq[k] == v.anchor:
		v.setPos(k)
	case k > 0:
		v.setPos(k - 1)
	default:
		v.setPos(0)
	}
}
