package search

import (
	"strings"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Result is a ranked match with metadata for highlighting
type Result struct {
	Item           domain.Item
	MatchedIndexes []int // Rune positions in the file name that matched
	Score          int   // Higher is better
}

// NameIndex implements sahilm/fuzzy.Source over item file names
type NameIndex struct {
	items      []domain.Item
	lowerNames []string // Pre-computed lowercase names
}

// NewNameIndex builds an index over items (usually the filtered view)
func NewNameIndex(items []domain.Item) *NameIndex {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = strings.ToLower(item.Name())
	}
	return &NameIndex{items: items, lowerNames: names}
}

// String returns the lowercase name at index i (implements fuzzy.Source)
func (idx *NameIndex) String(i int) string { return idx.lowerNames[i] }

// Len returns the number of items (implements fuzzy.Source)
func (idx *NameIndex) Len() int { return len(idx.items) }

// Rank returns matches for query, best first. Ties keep view order.
func (idx *NameIndex) Rank(query string) []Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, idx)
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Item:           idx.items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Best returns the highest ranked item for query
func (idx *NameIndex) Best(query string) (domain.Item, bool) {
	results := idx.Rank(query)
	if len(results) == 0 {
		return domain.Item{}, false
	}
	return results[0].Item, true
}
