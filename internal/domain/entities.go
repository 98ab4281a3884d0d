package domain

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"
)

// ItemID identifies a catalog item. It is the slash-separated path of the
// file relative to the catalog root and is stable across sessions.
type ItemID string

// Rating is a user rating. RatingNone means the item is unrated.
type Rating int

const (
	RatingNone Rating = 0
	RatingMin  Rating = 1
	RatingMax  Rating = 5
)

// IsRated returns true if the rating holds a value in [RatingMin, RatingMax]
func (r Rating) IsRated() bool {
	return r >= RatingMin && r <= RatingMax
}

// Valid returns true for RatingNone and every rated value
func (r Rating) Valid() bool {
	return r == RatingNone || r.IsRated()
}

// Stars renders the rating as a fixed-width star string
func (r Rating) Stars() string {
	if !r.IsRated() {
		return strings.Repeat("·", int(RatingMax))
	}
	return strings.Repeat("★", int(r)) + strings.Repeat("☆", int(RatingMax-r))
}

func (r Rating) String() string {
	if !r.IsRated() {
		return "unrated"
	}
	return fmt.Sprintf("%d", int(r))
}

// Item represents a single image in the catalog
type Item struct {
	ID      ItemID    // Path relative to the catalog root
	Path    string    // Absolute path on disk
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
	Rating  Rating    // Current rating (RatingNone if unrated)
}

// Name returns the base file name
func (i Item) Name() string {
	return filepath.Base(i.Path)
}

// Ext returns the lowercase file extension without the dot
func (i Item) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(i.Path)), ".")
}

// Variant selects the resolution a load produces
type Variant int

const (
	VariantFull    Variant = iota // Original resolution
	VariantPreview                // Fit inside the preview box
	VariantThumb                  // Fit inside the thumbnail box
)

func (v Variant) String() string {
	switch v {
	case VariantFull:
		return "full"
	case VariantPreview:
		return "preview"
	case VariantThumb:
		return "thumb"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant converts a config string to a Variant
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preview":
		return VariantPreview, nil
	case "full":
		return VariantFull, nil
	case "thumb", "thumbnail":
		return VariantThumb, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

// LoadKey is the identity of a load task and of a cache entry
type LoadKey struct {
	Item    ItemID
	Variant Variant
}

func (k LoadKey) String() string {
	return string(k.Item) + "@" + k.Variant.String()
}

// DecodedImage is the output of a decode
type DecodedImage struct {
	Key       LoadKey
	Image     image.Image
	Width     int
	Height    int
	SourceW   int // Width before any resize
	SourceH   int // Height before any resize
	DecodedAt time.Time
}

// Bytes estimates the in-memory footprint of the decoded pixels (RGBA)
func (d *DecodedImage) Bytes() int64 {
	if d == nil {
		return 0
	}
	return int64(d.Width) * int64(d.Height) * 4
}
