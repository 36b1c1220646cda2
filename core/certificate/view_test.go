package certificate

import (
	"context"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

type fakeSurface struct {
	mu     sync.Mutex
	w, h   int
	closed bool
}

func (s *fakeSurface) Width() int         { return s.w }
func (s *fakeSurface) Height() int        { return s.h }
func (s *fakeSurface) Image() image.Image { return image.NewRGBA(image.Rect(0, 0, s.w, s.h)) }
func (s *fakeSurface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Image())
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeRenderer hands out fake surfaces; before, when set, runs ahead of each render.
type fakeRenderer struct {
	mu       sync.Mutex
	surfaces []*fakeSurface
	before   func()
	err      error
}

func (r *fakeRenderer) Render(_ context.Context, g *scene.Graph, scale float64) (Surface, error) {
	if r.before != nil {
		r.before()
	}
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSurface{w: int(float64(g.Width) * scale), h: int(float64(g.Height) * scale)}
	r.mu.Lock()
	r.surfaces = append(r.surfaces, s)
	r.mu.Unlock()
	return s, nil
}

func TestView_Render(t *testing.T) {
	v := NewView()
	r := new(fakeRenderer)
	g := scene.NewGraph(100, 50)
	ctx := context.Background()

	first, err := v.Render(ctx, r, g, 1)
	require.NoError(t, err)
	assert.Same(t, first, v.Surface())

	second, err := v.Render(ctx, r, g, 2)
	require.NoError(t, err)
	assert.True(t, r.surfaces[0].isClosed(), "the previous surface is disposed")
	assert.False(t, r.surfaces[1].isClosed())
	assert.Equal(t, 200, second.Width())
	assert.Equal(t, uint64(2), v.Generation())

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.True(t, r.surfaces[1].isClosed())
	assert.Nil(t, v.Surface())

	_, err = v.Render(ctx, r, g, 1)
	assert.Equal(t, ErrViewClosed, err)
	assert.Len(t, r.surfaces, 2, "a closed view starts no render")
}

// a render finishing after Close is discarded and its surface disposed
func TestView_closedDuringRender(t *testing.T) {
	v := NewView()
	r := &fakeRenderer{}
	r.before = func() { _ = v.Close() }

	_, err := v.Render(context.Background(), r, scene.NewGraph(10, 10), 1)
	assert.Equal(t, ErrViewClosed, err)
	require.Len(t, r.surfaces, 1)
	assert.True(t, r.surfaces[0].isClosed())
	assert.True(t, v.Closed())
}

func TestView_renderError(t *testing.T) {
	v := NewView()
	boom := errors.New("boom")
	_, err := v.Render(context.Background(), &fakeRenderer{err: boom}, scene.NewGraph(10, 10), 1)
	assert.Equal(t, boom, errors.Cause(err))
	assert.Nil(t, v.Surface())
}

func TestView_concurrentRenders(t *testing.T) {
	v := NewView()
	r := new(fakeRenderer)
	g := scene.NewGraph(10, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = v.Render(context.Background(), r, g, 1)
		}()
	}
	wg.Wait()

	var open int
	for _, s := range r.surfaces {
		if !s.isClosed() {
			open++
		}
	}
	assert.Equal(t, 1, open, "only the current surface stays alive")
	assert.Equal(t, uint64(8), v.Generation())
}
