// Package decode turns image files into decoded pixels at a requested variant.
package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/nfnt/resize"
)

// Options sizes the scaled variants
type Options struct {
	PreviewWidth  int
	PreviewHeight int
	ThumbSize     int
	Filter        string // Resampling filter name
}

// ImageDecoder decodes with the registered codecs, applies the EXIF
// orientation, and scales with nfnt/resize. Safe for concurrent use.
type ImageDecoder struct {
	opts   Options
	interp resize.InterpolationFunction
	logger *slog.Logger
}

// New creates a decoder
func New(opts Options, logger *slog.Logger) *ImageDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageDecoder{opts: opts, interp: ParseFilter(opts.Filter), logger: logger}
}

// ParseFilter maps a filter name to a resampling function (Lanczos3 by default)
func ParseFilter(name string) resize.InterpolationFunction {
	switch strings.ToLower(name) {
	case "nearest":
		return resize.NearestNeighbor
	case "bilinear":
		return resize.Bilinear
	case "bicubic":
		return resize.Bicubic
	case "lanczos2":
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

// Decode reads path and produces the variant named by key. A context
// cancelled before the file is opened aborts the load; once decoding has
// started it runs to completion and the image is returned.
func (d *ImageDecoder) Decode(ctx context.Context, key domain.LoadKey, path string) (*domain.DecodedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.DecodeError{Key: key, Path: path, Err: err}
	}
	defer f.Close()

	// Camera JPEGs store portrait shots sideways plus an orientation tag
	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			err = fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
		}
		return nil, &domain.DecodeError{Key: key, Path: path, Err: err}
	}

	bounds := src.Bounds()
	out := d.scale(src, key.Variant)
	ob := out.Bounds()

	d.logger.Debug("decoded",
		"key", key.String(),
		"source", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		"size", fmt.Sprintf("%dx%d", ob.Dx(), ob.Dy()),
		"elapsed", time.Since(start))

	return &domain.DecodedImage{
		Key:       key,
		Image:     out,
		Width:     ob.Dx(),
		Height:    ob.Dy(),
		SourceW:   bounds.Dx(),
		SourceH:   bounds.Dy(),
		DecodedAt: time.Now(),
	}, nil
}

// scale fits img inside the variant's box, never upscaling
func (d *ImageDecoder) scale(img image.Image, v domain.Variant) image.Image {
	var w, h int
	switch v {
	case domain.VariantPreview:
		w, h = d.opts.PreviewWidth, d.opts.PreviewHeight
	case domain.VariantThumb:
		w, h = d.opts.ThumbSize, d.opts.ThumbSize
	default:
		return img
	}
	if w <= 0 || h <= 0 {
		return img
	}
	return resize.Thumbnail(uint(w), uint(h), img, d.interp)
}
