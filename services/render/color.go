package rendersvc

import (
	"strconv"
	"strings"

	"github.com/gogpu/gg"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"gold":    "#ffd700",
	"silver":  "#c0c0c0",
	"gray":    "#808080",
	"grey":    "#808080",
	"navy":    "#000080",
	"maroon":  "#800000",
	"purple":  "#800080",
	"teal":    "#008080",
	"orange":  "#ffa500",
	"brown":   "#a52a2a",
	"crimson": "#dc143c",
}

// parseColor reads hex, rgb(a) & a few named CSS colors. ok is false for no paint.
func parseColor(p scene.Paint) (gg.RGBA, bool) {
	if p.IsNone() {
		return gg.RGBA{}, false
	}
	s := strings.ToLower(strings.TrimSpace(string(p)))
	if hex, ok := namedColors[s]; ok {
		s = hex
	}

	switch {
	case strings.HasPrefix(s, "#"):
		return gg.Hex(s), true
	case strings.HasPrefix(s, "rgb"):
		open, closing := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
		if open < 0 || closing < open {
			return gg.RGBA{}, false
		}
		parts := strings.Split(s[open+1:closing], ",")
		if len(parts) < 3 {
			return gg.RGBA{}, false
		}
		vals := [4]float64{0, 0, 0, 1}
		for i := 0; i < len(parts) && i < 4; i++ {
			v := strings.TrimSpace(parts[i])
			pct := strings.HasSuffix(v, "%")
			f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
			if err != nil {
				return gg.RGBA{}, false
			}
			switch {
			case pct:
				f /= 100
			case i < 3:
				f /= 255
			}
			vals[i] = clamp01(f)
		}
		return gg.RGBA{R: vals[0], G: vals[1], B: vals[2], A: vals[3]}, true
	default:
		return gg.RGBA{}, false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
