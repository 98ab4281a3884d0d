package decode

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newDecoder() *ImageDecoder {
	return New(Options{PreviewWidth: 40, PreviewHeight: 40, ThumbSize: 10, Filter: "bilinear"}, nil)
}

func TestDecode_Variants(t *testing.T) {
	path := writePNG(t, 100, 50)
	d := newDecoder()

	tests := []struct {
		variant domain.Variant
		w, h    int
	}{
		{domain.VariantFull, 100, 50},
		{domain.VariantPreview, 40, 20},
		{domain.VariantThumb, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			key := domain.LoadKey{Item: "frame.png", Variant: tt.variant}
			img, err := d.Decode(context.Background(), key, path)
			require.NoError(t, err)
			assert.Equal(t, key, img.Key)
			assert.Equal(t, tt.w, img.Width)
			assert.Equal(t, tt.h, img.Height)
			assert.Equal(t, 100, img.SourceW)
			assert.Equal(t, 50, img.SourceH)
			assert.False(t, img.DecodedAt.IsZero())
		})
	}
}

func TestDecode_SmallImagesAreNotUpscaled(t *testing.T) {
	path := writePNG(t, 8, 6)
	img, err := newDecoder().Decode(context.Background(), domain.LoadKey{Variant: domain.VariantPreview}, path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 6, img.Height)
}

func TestDecode_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "notes.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not an image"), 0o644))
	key := domain.LoadKey{Item: "x", Variant: domain.VariantFull}
	d := newDecoder()

	_, err := d.Decode(context.Background(), key, filepath.Join(dir, "missing.png"))
	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, key, de.Key)

	_, err = d.Decode(context.Background(), key, garbage)
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestDecode_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDecoder().Decode(ctx, domain.LoadKey{}, writePNG(t, 4, 4))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrDecodeFailed)
}

func TestParseFilter_DefaultsToLanczos3(t *testing.T) {
	assert.Equal(t, resize.Lanczos3, ParseFilter(""))
	assert.Equal(t, resize.NearestNeighbor, ParseFilter("NEAREST"))
}

// writeRotatedJPEG writes a 16x8 JPEG, red on the left and blue on the
// right, tagged with EXIF orientation 6 (rotate 90 clockwise to view).
func writeRotatedJPEG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 8 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	// APP1: "Exif\0\0", big-endian TIFF header, one IFD entry (0x0112 SHORT 6)
	app1 := []byte{
		0xFF, 0xE1, 0x00, 0x22,
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	raw := buf.Bytes()
	out := append(append(append([]byte{}, raw[:2]...), app1...), raw[2:]...)

	path := filepath.Join(t.TempDir(), "portrait.jpg")
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestDecode_AppliesExifOrientation(t *testing.T) {
	key := domain.LoadKey{Item: "portrait.jpg", Variant: domain.VariantFull}
	img, err := newDecoder().Decode(context.Background(), key, writeRotatedJPEG(t))
	require.NoError(t, err)

	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 16, img.Height)
	assert.Equal(t, 8, img.SourceW)
	assert.Equal(t, 16, img.SourceH)

	// The left edge became the top edge
	r, _, b, _ := img.Image.At(4, 2).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, b>>8, uint32(60))
	r, _, b, _ = img.Image.At(4, 13).RGBA()
	assert.Less(t, r>>8, uint32(60))
	assert.Greater(t, b>>8, uint32(200))
}

// The "GATE" format blocks inside the codec until gateRelease is closed
var (
	gateStarted = make(chan struct{}, 1)
	gateRelease = make(chan struct{})
)

func init() {
	image.RegisterFormat("gate", "GATE",
		func(io.Reader) (image.Image, error) {
			gateStarted <- struct{}{}
			<-gateRelease
			return image.NewRGBA(image.Rect(0, 0, 6, 4)), nil
		},
		func(io.Reader) (image.Config, error) {
			return image.Config{ColorModel: color.RGBAModel, Width: 6, Height: 4}, nil
		})
}

func TestDecode_CancelDuringDecodeStillReturnsImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.gate")
	require.NoError(t, os.WriteFile(path, []byte("GATE"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		img *domain.DecodedImage
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := newDecoder().Decode(ctx, domain.LoadKey{Item: "slow.gate", Variant: domain.VariantFull}, path)
		done <- result{img, err}
	}()

	select {
	case <-gateStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("decode never started")
	}
	cancel()
	close(gateRelease)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, 6, res.img.Width)
	case <-time.After(5 * time.Second):
		t.Fatal("decode never finished")
	}
}
