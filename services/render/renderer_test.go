package rendersvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	"github.com/digitalmadrasa/madrasa/core/scene"
	"github.com/digitalmadrasa/madrasa/tests"
)

type stubFetcher map[string]image.Image

func (f stubFetcher) Fetch(_ context.Context, src string) (image.Image, error) {
	if img, ok := f[src]; ok {
		return img, nil
	}
	return nil, errors.New("not found")
}

func newRenderer(t *testing.T, fetcher ImageFetcher) *Renderer {
	fonts, err := NewFonts("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fonts.Close() })
	return New(Options{Fonts: fonts, Fetcher: fetcher, Logger: new(testutil.Logger)})
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

const doc = `{
	"width": 400, "height": 300, "background": "#ffffff",
	"objects": [
		{"type": "rect", "left": 10, "top": 10, "width": 380, "height": 280, "fill": "transparent", "stroke": "#1f3a5f", "strokeWidth": 8, "rx": 12},
		{"type": "circle", "left": 20, "top": 20, "radius": 10, "fill": "rgb(200, 0, 0)"},
		{"type": "textbox", "left": 200, "top": 150, "width": 300, "originX": "center", "originY": "center", "textAlign": "center", "text": "Aisha Khan", "fontSize": 32, "fontWeight": "bold", "fill": "#111111"},
		{"type": "image", "left": 300, "top": 220, "width": 40, "height": 40, "src": "https://cdn.test/seal.png"},
		{"type": "image", "left": 0, "top": 0, "src": "https://cdn.test/missing.png"},
		{"type": "group", "left": 50, "top": 230, "width": 100, "height": 40, "objects": [
			{"type": "line", "left": -50, "top": 0, "width": 100, "height": 0, "x1": 0, "y1": 0, "x2": 100, "y2": 0, "stroke": "black", "strokeWidth": 2}
		]}
	]
}`

func TestRenderer_Render(t *testing.T) {
	fetcher := stubFetcher{"https://cdn.test/seal.png": solid(8, 8, color.RGBA{R: 0xc9, G: 0xa2, B: 0x27, A: 0xff})}
	r := newRenderer(t, fetcher)
	g, rep := scene.Load([]byte(doc), scene.DefaultSize)
	require.False(t, rep.Degraded())

	tests := []struct {
		name         string
		scale        float64
		wantW, wantH int
	}{
		{name: "screen", scale: 1, wantW: 400, wantH: 300},
		{name: "export", scale: 2, wantW: 800, wantH: 600},
		{name: "invalid scale", scale: 0, wantW: 400, wantH: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Render(context.Background(), g, tt.scale)
			require.NoError(t, err)
			defer s.Close()

			if s.Width() != tt.wantW || s.Height() != tt.wantH {
				t.Errorf("Render() size = %dx%d; want %dx%d", s.Width(), s.Height(), tt.wantW, tt.wantH)
			}
			b := s.Image().Bounds()
			assert.Equal(t, tt.wantW, b.Dx())
			assert.Equal(t, tt.wantH, b.Dy())
		})
	}
}

func TestRenderer_paintsContent(t *testing.T) {
	fetcher := stubFetcher{"https://cdn.test/seal.png": solid(8, 8, color.RGBA{G: 0xff, A: 0xff})}
	r := newRenderer(t, fetcher)
	g, _ := scene.Load([]byte(doc), scene.DefaultSize)

	s, err := r.Render(context.Background(), g, 1)
	require.NoError(t, err)
	defer s.Close()
	img := s.Image()

	// image node
	_, gr, _, _ := img.At(320, 240).RGBA()
	assert.Greater(t, gr, uint32(0xf000), "seal image should be painted")

	// border stroke
	cr, cg, cb, _ := img.At(10, 150).RGBA()
	assert.False(t, cr > 0xf000 && cg > 0xf000 && cb > 0xf000, "border should be painted")

	// text pixels exist around the center
	var dark int
	for x := 100; x < 300; x++ {
		for y := 130; y < 170; y++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 50, "text should be painted")
}

func TestRenderer_idempotent(t *testing.T) {
	r := newRenderer(t, nil)
	g, _ := scene.Load([]byte(doc), scene.DefaultSize)
	orig := g.Clone()

	encode := func() []byte {
		s, err := r.Render(context.Background(), g, 1)
		require.NoError(t, err)
		defer s.Close()
		var buf bytes.Buffer
		require.NoError(t, s.EncodePNG(&buf))
		return buf.Bytes()
	}
	first, second := encode(), encode()
	if !bytes.Equal(first, second) {
		t.Error("Render() twice produced different pixels")
	}
	if !reflect.DeepEqual(orig, g) {
		t.Error("Render() modified the graph")
	}
}

func TestRenderer_fallbackLayout(t *testing.T) {
	r := newRenderer(t, nil)
	g := scene.NewGraph(600, 424)
	values := certificate.ValueMap{StudentName: "Student Name", CourseTitle: "Course", CertificateID: "CERT-1"}
	require.True(t, certificate.FallbackLayout(g, values))

	s, err := r.Render(context.Background(), g, 1)
	require.NoError(t, err)
	defer s.Close()

	var buf bytes.Buffer
	require.NoError(t, s.EncodePNG(&buf))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)

	var inked int
	b := decoded.Bounds()
	for x := b.Min.X; x < b.Max.X; x += 2 {
		for y := b.Min.Y; y < b.Max.Y; y += 2 {
			if r, g, b, _ := decoded.At(x, y).RGBA(); r < 0xe000 || g < 0xe000 || b < 0xe000 {
				inked++
			}
		}
	}
	assert.Greater(t, inked, 500, "fallback layout should never be blank")
}

func TestSurface_Close(t *testing.T) {
	r := newRenderer(t, nil)
	s, err := r.Render(context.Background(), scene.NewGraph(10, 10), 1)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close() is idempotent")
	assert.Nil(t, s.Image())
	assert.Error(t, s.EncodePNG(new(bytes.Buffer)))
}

func TestRenderer_emptyCanvas(t *testing.T) {
	r := newRenderer(t, nil)
	_, err := r.Render(context.Background(), &scene.Graph{}, 1)
	assert.Equal(t, errEmptyCanvas, err)
}

func TestRenderer_fontsReleased(t *testing.T) {
	fonts, err := NewFonts("")
	require.NoError(t, err)
	r := New(Options{Fonts: fonts})
	require.NoError(t, fonts.Close())

	_, err = r.Render(context.Background(), scene.NewGraph(10, 10), 1)
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err))
}

func TestDecodeDataURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(3, 2, color.Black)))
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	img, err := HTTPFetcher{}.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = HTTPFetcher{}.Fetch(context.Background(), "ftp://cdn.test/x.png")
	assert.Equal(t, errUnsupportedSource, err)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in     scene.Paint
		want   [4]uint8
		wantOk bool
	}{
		{in: "#ff0000", want: [4]uint8{255, 0, 0, 255}, wantOk: true},
		{in: "#fff", want: [4]uint8{255, 255, 255, 255}, wantOk: true},
		{in: "rgb(0, 128, 255)", want: [4]uint8{0, 128, 255, 255}, wantOk: true},
		{in: "rgba(0,0,0,0.5)", want: [4]uint8{0, 0, 0, 127}, wantOk: true},
		{in: "White", want: [4]uint8{255, 255, 255, 255}, wantOk: true},
		{in: "transparent"},
		{in: ""},
		{in: "hsl(0, 100%, 50%)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			c, ok := parseColor(tt.in)
			if ok != tt.wantOk {
				t.Fatalf("parseColor(%q) ok = %v; want %v", tt.in, ok, tt.wantOk)
			}
			if !ok {
				return
			}
			got := [4]uint8{uint8(c.R*255 + .5), uint8(c.G*255 + .5), uint8(c.B*255 + .5), uint8(c.A * 255)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFonts_builtin(t *testing.T) {
	fonts, err := NewFonts("")
	require.NoError(t, err)
	defer fonts.Close()

	for _, key := range []fontKey{
		{classSans, false, false},
		{classSans, true, true},
		{classSerif, false, false},
		{classSerif, true, false},
		{classMono, true, false},
	} {
		_, ok := fonts.sources[key]
		assert.True(t, ok, "missing builtin %s", key.filename())
	}
	assert.NotNil(t, fonts.Face("Playfair Display", true, false, 24))
	assert.NotNil(t, fonts.Face("Georgia", false, true, 24), "serif italic falls back to serif regular")
}

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"":                 classSans,
		"Arial":            classSans,
		"Open Sans":        classSans,
		"serif":            classSerif,
		"Times New Roman":  classSerif,
		"Playfair Display": classSerif,
		"Courier New":      classMono,
		"JetBrains Mono":   classMono,
	}
	for family, want := range tests {
		if got := classify(family); got != want {
			t.Errorf("classify(%q) = %q; want %q", family, got, want)
		}
	}
}
