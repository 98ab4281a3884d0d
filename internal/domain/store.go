package domain

// RatingStore persists ratings and marks (BoltDB + memory).
// Keys are scoped to a catalog root so several photo directories can share
// one database file.
type RatingStore interface {
	// === Ratings ===
	GetRatings(root string) (map[ItemID]Rating, error)
	SetRating(root string, id ItemID, rating Rating) error

	// === Marks ===
	GetMarks(root string) ([]ItemID, error)
	SetMarked(root string, id ItemID, marked bool) error

	// === Invalidation ===
	ClearRoot(root string) error

	Close() error
}
