// Package rendersvc paints certificate scene graphs with gogpu/gg.
package rendersvc

import (
	"context"
	"image"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	"github.com/digitalmadrasa/madrasa/core/scene"
)

// fabric defaults
const (
	defaultFontSize   = 40.0
	defaultLineHeight = 1.16
)

var errEmptyCanvas = errors.New("canvas has no area")

type (
	Options struct {
		Fonts        *Fonts
		Fetcher      ImageFetcher // optional; images are skipped without one
		FetchTimeout time.Duration
		Logger       core.Logger
	}

	// Renderer is a software certificate.Renderer.
	Renderer struct {
		fonts        *Fonts
		fetcher      ImageFetcher
		fetchTimeout time.Duration
		logger       core.Logger
	}
)

var _ certificate.Renderer = (*Renderer)(nil)

func New(opts Options) *Renderer {
	return &Renderer{
		fonts:        opts.Fonts,
		fetcher:      opts.Fetcher,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
	}
}

// surface is a painted context; closing it releases the context.
type surface struct {
	mu  sync.Mutex
	dc  *gg.Context
	img image.Image
	w   int
	h   int
}

var _ certificate.Surface = (*surface)(nil)

func (s *surface) Width() int  { return s.w }
func (s *surface) Height() int { return s.h }

func (s *surface) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

func (s *surface) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return errors.New("surface disposed")
	}
	return s.dc.EncodePNG(w)
}

func (s *surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return nil
	}
	err := s.dc.Close()
	s.dc, s.img = nil, nil
	return err
}

// xform maps node coordinates onto the canvas: (ox + x*sx, oy + y*sy).
type xform struct {
	ox, oy float64
	sx, sy float64
	alpha  float64
}

func (t xform) point(x, y float64) (float64, float64) {
	return t.ox + x*t.sx, t.oy + y*t.sy
}

// box returns the canvas rectangle of a node laid out on a width x height box.
func (t xform) box(f scene.Frame, width, height float64) (x, y, w, h float64) {
	nsx, nsy := f.Scale()
	ax, ay := f.Anchor()
	w, h = width*nsx, height*nsy
	x, y = t.point(f.Left-ax*w, f.Top-ay*h)
	return x, y, w * t.sx, h * t.sy
}

// Render paints g on a new surface of the graph size multiplied by scale.
func (r *Renderer) Render(ctx context.Context, g *scene.Graph, scale float64) (certificate.Surface, error) {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(g.Width) * scale))
	h := int(math.Round(float64(g.Height) * scale))
	if w <= 0 || h <= 0 {
		return nil, errEmptyCanvas
	}
	if r.fonts != nil && r.fonts.Released() {
		return nil, core.NewShutdownError("renderer fonts released")
	}

	imgs := r.fetchAll(ctx, g)
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "rendering certificate")
	}

	dc := gg.NewContext(w, h)
	p := painter{dc: dc, fonts: r.fonts, imgs: imgs}

	bg, ok := parseColor(g.Background)
	if !ok {
		bg = gg.RGBA{R: 1, G: 1, B: 1, A: 1}
	}
	dc.ClearWithColor(bg)

	root := xform{sx: scale, sy: scale, alpha: 1}
	if g.BackgroundImage != nil {
		p.image(root, g.BackgroundImage)
	}
	for _, n := range g.Nodes {
		p.node(root, n)
	}
	if p.err != nil {
		_ = dc.Close()
		return nil, errors.Wrap(p.err, "painting certificate")
	}
	return &surface{dc: dc, img: dc.Image(), w: w, h: h}, nil
}

type painter struct {
	dc    *gg.Context
	fonts *Fonts
	imgs  map[string]image.Image
	err   error
}

func (p *painter) keep(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) setColor(c gg.RGBA, alpha float64) {
	p.dc.SetRGBA(c.R, c.G, c.B, c.A*alpha)
}

func (p *painter) node(t xform, n scene.Node) {
	switch n := n.(type) {
	case *scene.Text:
		p.text(t, n)
	case *scene.Shape:
		p.shape(t, n)
	case *scene.Image:
		p.image(t, n)
	case *scene.Group:
		p.group(t, n)
	}
}

// group children are positioned relative to the group center.
func (p *painter) group(t xform, n *scene.Group) {
	x, y, w, h := t.box(n.Frame, n.Width, n.Height)
	nsx, nsy := n.Scale()
	child := xform{
		ox:    x + w/2,
		oy:    y + h/2,
		sx:    t.sx * nsx,
		sy:    t.sy * nsy,
		alpha: t.alpha * n.Alpha(),
	}
	for _, c := range n.Children {
		p.node(child, c)
	}
}

func (p *painter) shape(t xform, n *scene.Shape) {
	alpha := t.alpha * n.Alpha()
	width, height := n.Width, n.Height

	switch strings.ToLower(n.Type) {
	case "rect":
		x, y, w, h := t.box(n.Frame, width, height)
		nsx, _ := n.Scale()
		if rx := math.Max(n.Rx, n.Ry) * nsx * t.sx; rx > 0 {
			p.dc.DrawRoundedRectangle(x, y, w, h, rx)
		} else {
			p.dc.DrawRectangle(x, y, w, h)
		}
	case "circle":
		if width == 0 {
			width, height = 2*n.Radius, 2*n.Radius
		}
		x, y, w, h := t.box(n.Frame, width, height)
		p.dc.DrawEllipse(x+w/2, y+h/2, w/2, h/2)
	case "ellipse":
		if width == 0 {
			width, height = 2*n.Rx, 2*n.Ry
		}
		x, y, w, h := t.box(n.Frame, width, height)
		p.dc.DrawEllipse(x+w/2, y+h/2, w/2, h/2)
	case "line":
		if width == 0 && height == 0 {
			width, height = math.Abs(n.X2-n.X1), math.Abs(n.Y2-n.Y1)
		}
		x, y, w, h := t.box(n.Frame, width, height)
		x1, x2 := x, x+w
		if n.X1 > n.X2 {
			x1, x2 = x2, x1
		}
		y1, y2 := y, y+h
		if n.Y1 > n.Y2 {
			y1, y2 = y2, y1
		}
		p.dc.DrawLine(x1, y1, x2, y2)
	case "triangle":
		x, y, w, h := t.box(n.Frame, width, height)
		p.dc.MoveTo(x+w/2, y)
		p.dc.LineTo(x+w, y+h)
		p.dc.LineTo(x, y+h)
		p.dc.ClosePath()
	default:
		// paths & polygons carry geometry the scene does not model
		return
	}

	if c, ok := parseColor(n.Fill); ok && strings.ToLower(n.Type) != "line" {
		p.setColor(c, alpha)
		p.keep(p.dc.FillPreserve())
	}
	if c, ok := parseColor(n.Stroke); ok && n.StrokeWidth > 0 {
		nsx, _ := n.Scale()
		p.setColor(c, alpha)
		p.dc.SetLineWidth(n.StrokeWidth * nsx * t.sx)
		p.keep(p.dc.StrokePreserve())
	}
	p.dc.ClearPath()
}

func (p *painter) image(t xform, n *scene.Image) {
	src, ok := p.imgs[n.Src]
	if !ok {
		return
	}
	b := src.Bounds()
	width, height := n.Width, n.Height
	if width == 0 || height == 0 {
		width, height = float64(b.Dx()), float64(b.Dy())
	}
	x, y, w, h := t.box(n.Frame, width, height)
	p.dc.DrawImageEx(gg.ImageBufFromImage(src), gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  w,
		DstHeight: h,
		Opacity:   t.alpha * n.Alpha(),
	})
}

func (p *painter) text(t xform, n *scene.Text) {
	if p.fonts == nil || strings.TrimSpace(n.Content) == "" {
		return
	}
	c, ok := parseColor(n.Fill)
	if !ok {
		c = gg.RGBA{A: 1} // fabric paints text black by default
	}

	size := n.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	nsx, nsy := n.Scale()
	face := p.fonts.Face(n.FontFamily, n.FontWeight.Bold(), strings.EqualFold(n.FontStyle, "italic"), size*nsy*t.sy)
	if face == nil {
		return
	}
	p.dc.SetFont(face)

	lh := n.LineHeight
	if lh <= 0 {
		lh = defaultLineHeight
	}
	lines := n.Lines()
	lineStep := size * lh * nsy * t.sy

	// the box is the declared width, or the widest line
	boxW := n.Width * nsx * t.sx
	for _, line := range lines {
		if lw, _ := p.dc.MeasureString(line); lw > boxW {
			boxW = lw
		}
	}
	boxH := lineStep * float64(len(lines))
	ax, ay := n.Anchor()
	x0, y0 := t.point(n.Left, n.Top)
	x0 -= ax * boxW
	y0 -= ay * boxH

	ascent := face.Metrics().Ascent
	p.setColor(c, t.alpha*n.Alpha())
	for i, line := range lines {
		lw, _ := p.dc.MeasureString(line)
		x := x0
		switch strings.ToLower(n.TextAlign) {
		case "center":
			x += (boxW - lw) / 2
		case "right":
			x += boxW - lw
		}
		p.dc.DrawString(line, x, y0+float64(i)*lineStep+ascent)
	}
}
