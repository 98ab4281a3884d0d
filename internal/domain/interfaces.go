package domain

import "context"

// Decoder turns a file on disk into a decoded image of the requested variant.
// Implementations must be safe for concurrent use by pool workers.
type Decoder interface {
	Decode(ctx context.Context, key LoadKey, path string) (*DecodedImage, error)
}

// DecoderFunc adapts a plain function to the Decoder interface
type DecoderFunc func(ctx context.Context, key LoadKey, path string) (*DecodedImage, error)

func (f DecoderFunc) Decode(ctx context.Context, key LoadKey, path string) (*DecodedImage, error) {
	return f(ctx, key, path)
}

// RatingObserver receives rating-changed notifications from the catalog.
type RatingObserver interface {
	OnRatingChanged(id ItemID, rating Rating)
}

// RatingObserverFunc adapts a function to RatingObserver
type RatingObserverFunc func(id ItemID, rating Rating)

func (f RatingObserverFunc) OnRatingChanged(id ItemID, rating Rating) { f(id, rating) }
