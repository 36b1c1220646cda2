// Package scene models certificate template scenes as a closed tree of drawable nodes.
//
// Template scenes are authored in a fabric.js-style editor and stored as JSON
// (`{"width":…,"height":…,"objects":[…]}`); this package decodes them into
// Text, Shape, Image and Group nodes so the rest of the pipeline never has to
// inspect untyped objects.
package scene

import "strings"

// Default canvas dimensions (A4-like 1.414:1 ratio).
const (
	DefaultWidth  = 2000
	DefaultHeight = 1414
)

type Kind int

const (
	KindText Kind = iota + 1
	KindShape
	KindImage
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindShape:
		return "shape"
	case KindImage:
		return "image"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Node is implemented by *Text, *Shape, *Image and *Group only.
type Node interface {
	Kind() Kind
	Bounds() Frame
	clone() Node
}

// Frame is the placement shared by every node, in canvas pixels.
type Frame struct {
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	ScaleX  float64 `json:"scaleX,omitempty"`
	ScaleY  float64 `json:"scaleY,omitempty"`
	Angle   float64 `json:"angle,omitempty"`
	OriginX string  `json:"originX,omitempty"` // left | center | right
	OriginY string  `json:"originY,omitempty"` // top | center | bottom
	Opacity float64 `json:"opacity,omitempty"`
}

// Scale returns the effective x & y scale factors (unset means 1).
func (f Frame) Scale() (float64, float64) {
	sx, sy := f.ScaleX, f.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// Alpha returns the node opacity (unset means opaque).
func (f Frame) Alpha() float64 {
	if f.Opacity <= 0 || f.Opacity > 1 {
		return 1
	}
	return f.Opacity
}

// Anchor returns the anchor ratios for OriginX/OriginY: 0 (left/top), .5 (center), 1 (right/bottom).
func (f Frame) Anchor() (float64, float64) {
	return originRatio(f.OriginX), originRatio(f.OriginY)
}

func originRatio(origin string) float64 {
	switch strings.ToLower(origin) {
	case "center":
		return 0.5
	case "right", "bottom":
		return 1
	default:
		return 0
	}
}

// Text is a text-bearing node; Content is the only field substitution rewrites.
type Text struct {
	Type string `json:"type"` // text | i-text | textbox
	Frame
	Content    string  `json:"text"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontWeight Weight  `json:"fontWeight,omitempty"`
	FontStyle  string  `json:"fontStyle,omitempty"`
	TextAlign  string  `json:"textAlign,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"`
	Fill       Paint   `json:"fill,omitempty"`
}

func (n *Text) Kind() Kind { return KindText }
func (n *Text) Bounds() Frame { return n.Frame }
func (n *Text) clone() Node {
	c := *n
	return &c
}

// Lines splits the content on line breaks.
func (n *Text) Lines() []string {
	return strings.Split(strings.ReplaceAll(n.Content, "\r\n", "\n"), "\n")
}

// Shape covers every vector primitive (rect, circle, ellipse, line, triangle, polygon, path...).
type Shape struct {
	Type string `json:"type"`
	Frame
	Fill        Paint   `json:"fill,omitempty"`
	Stroke      Paint   `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Rx          float64 `json:"rx,omitempty"`
	Ry          float64 `json:"ry,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	X1          float64 `json:"x1,omitempty"`
	Y1          float64 `json:"y1,omitempty"`
	X2          float64 `json:"x2,omitempty"`
	Y2          float64 `json:"y2,omitempty"`
}

func (n *Shape) Kind() Kind { return KindShape }
func (n *Shape) Bounds() Frame { return n.Frame }
func (n *Shape) clone() Node {
	c := *n
	return &c
}

// Image is a raster placed from a URL.
type Image struct {
	Type string `json:"type"`
	Frame
	Src string `json:"src"`
}

func (n *Image) Kind() Kind { return KindImage }
func (n *Image) Bounds() Frame { return n.Frame }
func (n *Image) clone() Node {
	c := *n
	return &c
}

// Group holds child nodes positioned relative to the group's center (fabric semantics).
type Group struct {
	Type string `json:"type"`
	Frame
	Children []Node `json:"objects"`
}

func (n *Group) Kind() Kind { return KindGroup }
func (n *Group) Bounds() Frame { return n.Frame }
func (n *Group) clone() Node {
	c := *n
	c.Children = cloneNodes(n.Children)
	return &c
}

// Graph is a loaded scene: resolved canvas size plus top-level drawable nodes.
type Graph struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Background      Paint  `json:"background,omitempty"`
	BackgroundImage *Image `json:"backgroundImage,omitempty"`
	Nodes           []Node `json:"objects"`
}

// NewGraph returns an empty graph of the given size.
func NewGraph(width, height int) *Graph {
	return &Graph{Width: width, Height: height, Nodes: make([]Node, 0)}
}

// IsEmpty reports whether the graph has no drawable nodes.
func (g *Graph) IsEmpty() bool {
	return g == nil || len(g.Nodes) == 0
}

// Add appends nodes to the top level of the graph.
func (g *Graph) Add(nodes ...Node) {
	g.Nodes = append(g.Nodes, nodes...)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := *g
	if g.BackgroundImage != nil {
		img := *g.BackgroundImage
		c.BackgroundImage = &img
	}
	c.Nodes = cloneNodes(g.Nodes)
	return &c
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}
