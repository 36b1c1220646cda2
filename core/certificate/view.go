package certificate

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

// View owns the surface of one displayed certificate.
// One render cycle runs at a time; each new cycle disposes the previous surface
// before painting a new one, and a closed view discards whatever arrives late.
type View struct {
	cycle sync.Mutex // held for a whole render cycle

	mu      sync.Mutex
	gen     uint64
	surface Surface
	closed  bool
}

func NewView() *View {
	return new(View)
}

// begin starts a new generation, disposing the current surface.
func (v *View) begin() (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrViewClosed
	}
	v.gen++
	err := v.disposeLocked()
	return v.gen, err
}

// commit binds s to the view if gen is still current; otherwise s is closed.
func (v *View) commit(gen uint64, s Surface) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.gen {
		_ = s.Close()
		return false
	}
	v.surface = s
	return true
}

func (v *View) disposeLocked() error {
	if v.surface == nil {
		return nil
	}
	err := v.surface.Close()
	v.surface = nil
	return errors.Wrap(err, "disposing surface")
}

// Render paints g with r and binds the result to the view.
func (v *View) Render(ctx context.Context, r Renderer, g *scene.Graph, scale float64) (Surface, error) {
	v.cycle.Lock()
	defer v.cycle.Unlock()

	gen, err := v.begin()
	if err != nil {
		return nil, err
	}
	s, err := r.Render(ctx, g, scale)
	if err != nil {
		return nil, errors.Wrap(err, "rendering certificate")
	}
	if !v.commit(gen, s) {
		return nil, ErrViewClosed
	}
	return s, nil
}

// Surface returns the currently displayed surface, if any.
func (v *View) Surface() Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.surface
}

// Generation counts the render cycles started on the view.
func (v *View) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen
}

// Close disposes the surface. Renders still in flight are discarded. Close is idempotent.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.disposeLocked()
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
