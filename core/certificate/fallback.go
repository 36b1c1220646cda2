package certificate

import "github.com/digitalmadrasa/madrasa/core/scene"

// Fallback layout styling.
const (
	FallbackTitle  = "Certificate of Completion"
	fallbackInset  = 40.0
	fallbackStroke = 40.0

	fallbackBackground = "#ffffff"
	fallbackBorder     = "#1f3a5f"
	fallbackInk        = "#1a1a1a"
	fallbackAccent     = "#c9a227"
	fallbackMuted      = "#6b6b6b"
	fallbackSerif      = "serif"
)

// FallbackLayout fills an empty graph with the default certificate: a rounded border,
// the title, the student name, the course title and the certificate id.
// It does nothing to a graph that already has drawable nodes.
func FallbackLayout(g *scene.Graph, values ValueMap) bool {
	if !g.IsEmpty() {
		return false
	}
	w, h := float64(g.Width), float64(g.Height)
	if g.Background.IsNone() {
		g.Background = fallbackBackground
	}

	g.Add(
		&scene.Shape{
			Type: "rect",
			Frame: scene.Frame{
				Left: w / 2, Top: h / 2,
				Width: w - 2*fallbackInset, Height: h - 2*fallbackInset,
				OriginX: "center", OriginY: "center",
			},
			Fill:        "transparent",
			Stroke:      fallbackBorder,
			StrokeWidth: fallbackStroke,
			Rx:          24, Ry: 24,
		},
		centered("text", FallbackTitle, w/2, h*0.28, h*0.075, fallbackInk, true),
		centered("text", values.StudentName, w/2, h*0.47, h*0.06, fallbackInk, true),
		centered("text", values.CourseTitle, w/2, h*0.60, h*0.04, fallbackAccent, false),
		&scene.Text{
			Type:       "text",
			Frame:      scene.Frame{Left: fallbackInset * 2.5, Top: h - fallbackInset*2.5, OriginY: "bottom"},
			Content:    "ID: " + values.CertificateID,
			FontFamily: "sans-serif",
			FontSize:   h * 0.02,
			Fill:       fallbackMuted,
		},
	)
	return true
}

func centered(typ, content string, x, y, size float64, fill scene.Paint, bold bool) *scene.Text {
	t := &scene.Text{
		Type:       typ,
		Frame:      scene.Frame{Left: x, Top: y, OriginX: "center", OriginY: "center"},
		Content:    content,
		FontFamily: fallbackSerif,
		FontSize:   size,
		TextAlign:  "center",
		Fill:       fill,
	}
	if bold {
		t.FontWeight = "bold"
	}
	return t
}
