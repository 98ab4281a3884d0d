package search

import (
	"testing"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(names ...string) []domain.Item {
	out := make([]domain.Item, len(names))
	for i, n := range names {
		out[i] = domain.Item{ID: domain.ItemID(n), Path: "/shoot/" + n}
	}
	return out
}

func TestNameIndex_Best(t *testing.T) {
	idx := NewNameIndex(items("IMG_0001.jpg", "beach_sunset.jpg", "IMG_0002.jpg", "sunrise.png"))

	best, ok := idx.Best("sunset")
	require.True(t, ok)
	assert.Equal(t, domain.ItemID("beach_sunset.jpg"), best.ID)

	best, ok = idx.Best("IMG_0002")
	require.True(t, ok)
	assert.Equal(t, domain.ItemID("IMG_0002.jpg"), best.ID, "matching is case-insensitive")
}

func TestNameIndex_NoMatch(t *testing.T) {
	idx := NewNameIndex(items("a.jpg", "b.jpg"))

	_, ok := idx.Best("zzz")
	assert.False(t, ok)
	assert.Nil(t, idx.Rank("   "))
	assert.Nil(t, NewNameIndex(nil).Rank("a"))
}

func TestNameIndex_RankReportsMatchedIndexes(t *testing.T) {
	idx := NewNameIndex(items("dsc_0042.jpg"))
	results := idx.Rank("dsc")
	require.Len(t, results, 1)
	assert.Equal(t, []int{0, 1, 2}, results[0].MatchedIndexes)
}
