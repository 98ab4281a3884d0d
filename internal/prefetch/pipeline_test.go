package prefetch

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/decode"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Files starting with "SLOW" decode through a codec that waits on slowRelease
var (
	slowStarted = make(chan struct{}, 1)
	slowRelease = make(chan struct{})
)

func init() {
	image.RegisterFormat("slow", "SLOW",
		func(io.Reader) (image.Image, error) {
			slowStarted <- struct{}{}
			<-slowRelease
			return image.NewRGBA(image.Rect(0, 0, 6, 4)), nil
		},
		func(io.Reader) (image.Config, error) {
			return image.Config{ColorModel: color.RGBAModel, Width: 6, Height: 4}, nil
		})
}

// A decode that is already running when its item leaves the window is not
// thrown away: the cancel is advisory and the image still reaches the cache.
func TestPipeline_RunningDecodeThatLeftWindowIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.slow")
	require.NoError(t, os.WriteFile(path, []byte("SLOW"), 0o644))

	p := pool.New(1, nil)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	c := cache.New(1<<20, nil)
	s := New(Config{MaxQueued: 1, Variant: domain.VariantFull}, p, c, decode.New(decode.Options{}, nil), nil)

	item := domain.Item{ID: "a.slow", Path: path}
	k := domain.LoadKey{Item: item.ID, Variant: domain.VariantFull}
	s.Sync(navigation.ViewChanged{Generation: 1, Item: item, HasItem: true, Len: 1}, []domain.Item{item})

	select {
	case <-slowStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("decode never started")
	}

	// Filter now matches nothing
	s.Sync(navigation.ViewChanged{Generation: 2, Position: -1}, nil)
	close(slowRelease)

	var res pool.Result
	select {
	case res = <-p.Results():
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}
	assert.True(t, res.Cancelled, "cancel was requested while running")
	require.NoError(t, res.Err)

	out := s.Complete(res)
	assert.False(t, out.Needed)
	assert.True(t, out.Stored)
	got := c.Get(k)
	assert.Equal(t, cache.StateReady, got.State)
	assert.Equal(t, 6, got.Image.Width)
	assert.EqualValues(t, 1, s.Stats().Obsolete)
	assert.Zero(t, s.Stats().Inflight)
}
