package certificate

import (
	"context"
	"image"
	"io"
	"regexp"
	"strings"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

// Page orientations
const (
	Landscape = "landscape"
	Portrait  = "portrait"
)

type (
	// Surface is a painted raster. It must be closed once it is no longer displayed.
	Surface interface {
		Width() int
		Height() int
		Image() image.Image
		EncodePNG(w io.Writer) error
		Close() error
	}

	// Renderer paints a graph onto a new surface of the graph size multiplied by scale.
	// It must not modify the graph, and equal graphs must paint identical pixels.
	Renderer interface {
		Render(ctx context.Context, g *scene.Graph, scale float64) (Surface, error)
	}

	// DocumentWriter wraps a PNG of width x height pixels into a single-page document.
	DocumentWriter interface {
		WriteDocument(w io.Writer, png []byte, width, height int) (Page, error)
	}

	// Page is the page of an exported document, in pixels (1px = 1pt).
	Page struct {
		Width       float64 `json:"width"`
		Height      float64 `json:"height"`
		Orientation string  `json:"orientation"`
	}
)

// PageFor returns the page that exactly holds a width x height image.
func PageFor(width, height int) Page {
	p := Page{Width: float64(width), Height: float64(height), Orientation: Portrait}
	if width > height {
		p.Orientation = Landscape
	}
	return p
}

var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

// Filename derives a download filename from the course title.
func Filename(title, ext string) string {
	name := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(title, " "))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = "certificate"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
