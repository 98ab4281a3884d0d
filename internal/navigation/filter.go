package navigation

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/culler/internal/domain"
)

// Predicate decides whether an item belongs to the view. It must be pure
// with respect to the item it is given.
type Predicate func(item domain.Item) bool

// Filter is a named predicate. Exactly one filter is active on a View.
type Filter struct {
	Name  string
	Match Predicate
}

// Matches treats a nil predicate as "match everything"
func (f Filter) Matches(item domain.Item) bool {
	if f.Match == nil {
		return true
	}
	return f.Match(item)
}

// All matches every item
func All() Filter {
	return Filter{Name: "all", Match: func(domain.Item) bool { return true }}
}

// Unrated matches items without a rating
func Unrated() Filter {
	return Filter{
		Name:  "unrated",
		Match: func(item domain.Item) bool { return !item.Rating.IsRated() },
	}
}

// RatingEquals matches items rated exactly r
func RatingEquals(r domain.Rating) Filter {
	return Filter{
		Name:  fmt.Sprintf("rating=%d", int(r)),
		Match: func(item domain.Item) bool { return item.Rating == r },
	}
}

// RatingAtLeast matches rated items with a rating of r or more
func RatingAtLeast(r domain.Rating) Filter {
	return Filter{
		Name:  fmt.Sprintf("rating>=%d", int(r)),
		Match: func(item domain.Item) bool { return item.Rating.IsRated() && item.Rating >= r },
	}
}

// NameContains fuzzy-matches the query against the file name (case and
// accent insensitive). An empty query matches everything.
func NameContains(query string) Filter {
	query = strings.TrimSpace(query)
	return Filter{
		Name: fmt.Sprintf("name~%q", query),
		Match: func(item domain.Item) bool {
			if query == "" {
				return true
			}
			return fuzzy.MatchNormalizedFold(query, item.Name())
		},
	}
}

// InSet matches items whose id is reported present by contains.
// The view must be told about membership changes via ItemChanged.
func InSet(name string, contains func(domain.ItemID) bool) Filter {
	return Filter{
		Name:  name,
		Match: func(item domain.Item) bool { return contains(item.ID) },
	}
}

// And matches items accepted by every filter
func And(filters ...Filter) Filter {
	names := make([]string, 0, len(filters))
	for _, f := range filters {
		names = append(names, f.Name)
	}
	return Filter{
		Name: strings.Join(names, " & "),
		Match: func(item domain.Item) bool {
			for _, f := range filters {
				if !f.Matches(item) {
					return false
				}
			}
			return true
		},
	}
}
