package navigation

import (
	"sort"

	"github.com/mmcdole/culler/internal/domain"
)

// Direction selects forward or backward cycling
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// Marks is the filter-independent set of marked items with its own cursor.
// Cycling walks marked items in catalog order and wraps at either end.
type Marks struct {
	src    Source
	ids    map[domain.ItemID]struct{}
	cursor domain.ItemID // "" = no cursor
}

// NewMarks creates an empty marked set over src
func NewMarks(src Source) *Marks {
	return &Marks{src: src, ids: make(map[domain.ItemID]struct{})}
}

// Len returns the number of marked items
func (m *Marks) Len() int { return len(m.ids) }

// Contains reports whether id is marked
func (m *Marks) Contains(id domain.ItemID) bool {
	_, ok := m.ids[id]
	return ok
}

// Set marks id. Returns false if it was already marked.
func (m *Marks) Set(id domain.ItemID) bool {
	if m.Contains(id) {
		return false
	}
	m.ids[id] = struct{}{}
	return true
}

// Clear unmarks id. A cleared cursor moves to the next marked item.
// Returns false if id was not marked.
func (m *Marks) Clear(id domain.ItemID) bool {
	if !m.Contains(id) {
		return false
	}
	if m.cursor == id {
		next, ok := m.step(id, Forward)
		delete(m.ids, id)
		if ok && next.ID != id {
			m.cursor = next.ID
		} else {
			m.cursor = ""
		}
		return true
	}
	delete(m.ids, id)
	return true
}

// Cursor returns the marked item the cursor rests on
func (m *Marks) Cursor() (domain.Item, bool) {
	if m.cursor == "" {
		return domain.Item{}, false
	}
	idx, ok := m.src.IndexOf(m.cursor)
	if !ok {
		return domain.Item{}, false
	}
	return m.src.At(idx), true
}

// Next moves the cursor one marked item in dir. Without a cursor, the walk
// starts from ref (usually the current view item): the first marked item
// after it going forward, or before it going backward.
func (m *Marks) Next(dir Direction, ref domain.ItemID) (domain.Item, bool) {
	from := m.cursor
	if from == "" {
		from = ref
	}
	item, ok := m.step(from, dir)
	if !ok {
		return domain.Item{}, false
	}
	m.cursor = item.ID
	return item, true
}

// Window returns the cursor item and its marked neighbors in priority order
func (m *Marks) Window(behind, ahead int) []domain.Item {
	ordered := m.ordered()
	if len(ordered) == 0 || m.cursor == "" {
		return nil
	}
	at := -1
	for i, idx := range ordered {
		if m.src.At(idx).ID == m.cursor {
			at = i
			break
		}
	}
	if at < 0 {
		return nil
	}
	out := []domain.Item{m.src.At(ordered[at])}
	seen := map[int]bool{at: true}
	n := len(ordered)
	for d := 1; d <= ahead || d <= behind; d++ {
		if d <= ahead {
			if i := (at + d) % n; !seen[i] {
				seen[i] = true
				out = append(out, m.src.At(ordered[i]))
			}
		}
		if d <= behind {
			if i := ((at-d)%n + n) % n; !seen[i] {
				seen[i] = true
				out = append(out, m.src.At(ordered[i]))
			}
		}
	}
	return out
}

// IDs returns marked ids in catalog order; ids unknown to the catalog are
// listed last in lexical order.
func (m *Marks) IDs() []domain.ItemID {
	out := make([]domain.ItemID, 0, len(m.ids))
	for _, idx := range m.ordered() {
		out = append(out, m.src.At(idx).ID)
	}
	var unknown []domain.ItemID
	for id := range m.ids {
		if _, ok := m.src.IndexOf(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}

// ordered returns catalog indices of marked items that exist in the catalog
func (m *Marks) ordered() []int {
	out := make([]int, 0, len(m.ids))
	for id := range m.ids {
		if idx, ok := m.src.IndexOf(id); ok {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// step finds the marked item adjacent to from in dir, wrapping around
func (m *Marks) step(from domain.ItemID, dir Direction) (domain.Item, bool) {
	ordered := m.ordered()
	if len(ordered) == 0 {
		return domain.Item{}, false
	}
	ref, ok := m.src.IndexOf(from)
	if !ok {
		ref = -1
	}
	if dir >= 0 {
		k := sort.SearchInts(ordered, ref+1)
		if k == len(ordered) {
			k = 0
		}
		return m.src.At(ordered[k]), true
	}
	k := sort.SearchInts(ordered, ref) - 1
	if k < 0 {
		k = len(ordered) - 1
	}
	return m.src.At(ordered[k]), true
}
