package navigation

import (
	"math"
	"testing"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource is an in-memory catalog for tests
type sliceSource struct {
	items []domain.Item
}

func newSource(ratings ...domain.Rating) *sliceSource {
	s := &sliceSource{}
	for i, r := range ratings {
		id := domain.ItemID(string(rune('A' + i)))
		s.items = append(s.items, domain.Item{ID: id, Path: "/photos/" + string(id) + ".jpg", Rating: r})
	}
	return s
}

func (s *sliceSource) Len() int             { return len(s.items) }
func (s *sliceSource) At(i int) domain.Item { return s.items[i] }

func (s *sliceSource) setRating(id domain.ItemID, r domain.Rating) {
	i, _ := s.IndexOf(id)
	s.items[i].Rating = r
}

func (s *sliceSource) IndexOf(id domain.ItemID) (int, bool) {
	for i, item := range s.items {
		if item.ID == id {
			return i, true
		}
	}
	return 0, false
}

func ids(items []domain.Item) []domain.ItemID {
	out := make([]domain.ItemID, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func currentID(t *testing.T, v *View) domain.ItemID {
	t.Helper()
	item, ok := v.Current()
	require.True(t, ok, "expected a current item")
	return item.ID
}

func TestView_FilterScenario(t *testing.T) {
	// A..E rated [1,_,2,1,_]
	src := newSource(1, 0, 2, 1, 0)
	v := NewView(src, RatingEquals(1))

	assert.Equal(t, []domain.ItemID{"A", "D"}, ids(v.Items()))
	assert.Equal(t, domain.ItemID("A"), currentID(t, v))

	assert.True(t, v.Advance(1))
	assert.Equal(t, domain.ItemID("D"), currentID(t, v))

	v.SetFilter(RatingEquals(2))
	assert.Equal(t, []domain.ItemID{"C"}, ids(v.Items()))
	assert.Equal(t, domain.ItemID("C"), currentID(t, v), "nearest preceding match of D")

	v.SetFilter(RatingEquals(3))
	assert.True(t, v.Empty())
	_, ok := v.Current()
	assert.False(t, ok)
	_, ok = v.Position()
	assert.False(t, ok)
}

func TestView_FilterKeepsCurrentWhenItMatches(t *testing.T) {
	src := newSource(1, 2, 1, 2, 1)
	v := NewView(src, All())
	require.True(t, v.Seek("C"))

	v.SetFilter(RatingEquals(1))
	assert.Equal(t, domain.ItemID("C"), currentID(t, v))
	pos, ok := v.Position()
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestView_FilterFallsForwardWhenNothingPrecedes(t *testing.T) {
	src := newSource(1, 2, 2)
	v := NewView(src, All())
	require.Equal(t, domain.ItemID("A"), currentID(t, v))

	v.SetFilter(RatingEquals(2))
	assert.Equal(t, domain.ItemID("B"), currentID(t, v))
}

func TestView_AnchorSurvivesEmptyView(t *testing.T) {
	src := newSource(1, 0, 1, 0, 1)
	v := NewView(src, All())
	require.True(t, v.Seek("D"))

	v.SetFilter(RatingEquals(4))
	require.True(t, v.Empty())

	v.SetFilter(RatingEquals(1))
	assert.Equal(t, domain.ItemID("C"), currentID(t, v), "anchor D resolves to nearest earlier C")
}

func TestView_AdvanceRoundTripAndClamp(t *testing.T) {
	src := newSource(0, 0, 0, 0, 0, 0, 0)
	v := NewView(src, All())
	require.True(t, v.Seek("C"))

	for _, n := range []int{1, 2, 4} {
		start, _ := v.Position()
		v.Advance(n)
		v.Advance(-n)
		end, _ := v.Position()
		assert.Equal(t, start, end, "round trip with n=%d", n)
	}

	v.Advance(100)
	assert.Equal(t, domain.ItemID("G"), currentID(t, v))
	assert.False(t, v.Advance(1), "clamped at end")

	v.Advance(-100)
	assert.Equal(t, domain.ItemID("A"), currentID(t, v))
	assert.False(t, v.Advance(-1), "clamped at start")
}

func TestView_AdvanceExtremeDeltasClamp(t *testing.T) {
	v := NewView(newSource(0, 0, 0, 0, 0), All())
	require.True(t, v.Seek("C"))

	assert.True(t, v.Advance(math.MaxInt))
	assert.Equal(t, domain.ItemID("E"), currentID(t, v))
	assert.False(t, v.Advance(math.MaxInt))

	assert.True(t, v.Advance(math.MinInt))
	assert.Equal(t, domain.ItemID("A"), currentID(t, v))
	assert.False(t, v.Advance(math.MinInt))

	v.Advance(2)
	v.Advance(math.MaxInt)
	pos, _ := v.Position()
	assert.Equal(t, 4, pos)
}

func TestView_EmptyViewIsTotal(t *testing.T) {
	v := NewView(newSource(), All())

	assert.False(t, v.Advance(1))
	assert.False(t, v.Advance(-3))
	assert.False(t, v.JumpToStart())
	assert.False(t, v.JumpToEnd())
	assert.Nil(t, v.Window(2, 2))
	_, ok := v.Current()
	assert.False(t, ok)
	_, ok = v.At(0)
	assert.False(t, ok)
}

func TestView_Jumps(t *testing.T) {
	v := NewView(newSource(0, 0, 0, 0), All())

	assert.True(t, v.JumpToEnd())
	assert.Equal(t, domain.ItemID("D"), currentID(t, v))
	assert.False(t, v.JumpToEnd())
	assert.True(t, v.JumpToStart())
	assert.Equal(t, domain.ItemID("A"), currentID(t, v))
	assert.False(t, v.Seek("Z"))
}

func TestView_ItemChangedInsertAndRemove(t *testing.T) {
	src := newSource(1, 0, 1, 0, 1)
	v := NewView(src, RatingEquals(1))
	require.True(t, v.Seek("C"))

	// B becomes a member before the current item: position shifts, item stays
	src.setRating("B", 1)
	assert.True(t, v.ItemChanged("B"))
	assert.Equal(t, []domain.ItemID{"A", "B", "C", "E"}, ids(v.Items()))
	assert.Equal(t, domain.ItemID("C"), currentID(t, v))

	// A leaves: relative order of the rest is preserved
	src.setRating("A", 3)
	assert.True(t, v.ItemChanged("A"))
	assert.Equal(t, []domain.ItemID{"B", "C", "E"}, ids(v.Items()))
	assert.Equal(t, domain.ItemID("C"), currentID(t, v))

	// The current item leaves: nearest earlier member
	src.setRating("C", 2)
	assert.True(t, v.ItemChanged("C"))
	assert.Equal(t, domain.ItemID("B"), currentID(t, v))

	// No membership change
	src.setRating("D", 4)
	assert.False(t, v.ItemChanged("D"))
	assert.False(t, v.ItemChanged("missing"))
}

func TestView_ItemChangedFillsEmptyView(t *testing.T) {
	src := newSource(0, 0)
	v := NewView(src, RatingEquals(5))
	require.True(t, v.Empty())

	src.setRating("B", 5)
	assert.True(t, v.ItemChanged("B"))
	assert.Equal(t, domain.ItemID("B"), currentID(t, v))

	src.setRating("B", 0)
	assert.True(t, v.ItemChanged("B"))
	assert.True(t, v.Empty())
}

func TestView_ItemChangedRemovingFirstCurrent(t *testing.T) {
	src := newSource(1, 1, 1)
	v := NewView(src, RatingEquals(1))

	src.setRating("A", 0)
	v.ItemChanged("A")
	assert.Equal(t, domain.ItemID("B"), currentID(t, v))
}

func TestView_WindowPriorityOrder(t *testing.T) {
	v := NewView(newSource(0, 0, 0, 0, 0, 0, 0), All())
	require.True(t, v.Seek("D"))

	assert.Equal(t, []domain.ItemID{"D", "E", "C", "F", "G"}, ids(v.Window(1, 3)))

	v.JumpToEnd()
	assert.Equal(t, []domain.ItemID{"G", "F", "E"}, ids(v.Window(2, 2)))
}

func TestView_RebuildReanchorsById(t *testing.T) {
	src := newSource(0, 0, 0, 0)
	v := NewView(src, All())
	require.True(t, v.Seek("C"))

	// A new file sorts before everything else
	src.items = append([]domain.Item{{ID: "0", Path: "/photos/0.jpg"}}, src.items...)
	v.Rebuild()
	assert.Equal(t, domain.ItemID("C"), currentID(t, v))
	assert.Equal(t, 5, v.Len())
}

func TestFilters(t *testing.T) {
	item := func(name string, r domain.Rating) domain.Item {
		return domain.Item{ID: domain.ItemID(name), Path: "/x/" + name, Rating: r}
	}

	assert.True(t, Unrated().Match(item("a.jpg", 0)))
	assert.False(t, Unrated().Match(item("a.jpg", 2)))
	assert.True(t, RatingAtLeast(3).Match(item("a.jpg", 4)))
	assert.False(t, RatingAtLeast(3).Match(item("a.jpg", 0)))
	assert.True(t, NameContains("dsc").Match(item("DSC_0042.JPG", 0)))
	assert.True(t, NameContains("").Match(item("anything.png", 0)))
	assert.False(t, NameContains("xyz").Match(item("DSC_0042.JPG", 0)))

	both := And(RatingAtLeast(2), NameContains("img"))
	assert.True(t, both.Match(item("IMG_1.jpg", 3)))
	assert.False(t, both.Match(item("IMG_1.jpg", 1)))
	assert.Equal(t, "rating>=2 & name~\"img\"", both.Name)

	assert.True(t, Filter{}.Matches(item("nil-predicate.jpg", 0)))
}
