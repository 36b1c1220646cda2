package scene

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Size is the canvas size used when a document does not declare its own.
type Size struct {
	Width  int
	Height int
}

// DefaultSize is the A4-like 2000x1414 canvas.
var DefaultSize = Size{Width: DefaultWidth, Height: DefaultHeight}

func (s Size) orDefault() Size {
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	return s
}

// Report describes what Load made of a document.
type Report struct {
	Supplied bool  // a non-empty document was given
	ParseErr error // the document could not be parsed; the graph is empty
	Skipped  int   // objects that could not be decoded
}

// Degraded reports whether the document was supplied but (partly) unusable.
func (r Report) Degraded() bool {
	return r.ParseErr != nil || r.Skipped > 0
}

// Load decodes a scene document into a new Graph. The document may be a JSON
// object, a JSON string holding the object, or absent (nil, empty or null).
// A document that fails to parse yields an empty graph of the default size and a
// Report carrying the error: callers fall back rather than abort.
// doc is never modified.
func Load(doc []byte, def Size) (*Graph, Report) {
	def = def.orDefault()
	var rep Report

	raw, err := unwrap(doc)
	if err != nil {
		rep.Supplied = true
		rep.ParseErr = err
		return NewGraph(def.Width, def.Height), rep
	}
	if raw == nil {
		return NewGraph(def.Width, def.Height), rep
	}
	rep.Supplied = true

	var head docHeader
	if err = json.Unmarshal(raw, &head); err != nil {
		rep.ParseErr = errors.Wrap(err, "parsing scene document")
		return NewGraph(def.Width, def.Height), rep
	}

	// the canvas size is fixed before any node is loaded
	size := def
	if w := int(math.Round(float64(head.Width))); w > 0 {
		size.Width = w
	}
	if h := int(math.Round(float64(head.Height))); h > 0 {
		size.Height = h
	}
	g := NewGraph(size.Width, size.Height)
	g.Background = head.Background

	if len(head.BackgroundImage) > 0 && !bytes.Equal(bytes.TrimSpace(head.BackgroundImage), []byte("null")) {
		if n, _, err := decodeNode(head.BackgroundImage); err == nil {
			if img, ok := n.(*Image); ok && img.Src != "" {
				g.BackgroundImage = img
			}
		}
	}

	nodes, skipped := decodeNodes(head.Objects)
	g.Add(nodes...)
	rep.Skipped = skipped
	return g, rep
}

// LoadValue loads an already-structured document (e.g. a decoded map).
func LoadValue(v interface{}, def Size) (*Graph, Report) {
	if v == nil {
		return Load(nil, def)
	}
	switch d := v.(type) {
	case []byte:
		return Load(d, def)
	case json.RawMessage:
		return Load(d, def)
	case string:
		b, _ := json.Marshal(d)
		return Load(b, def)
	}
	b, err := json.Marshal(v)
	if err != nil {
		g, _ := Load(nil, def)
		return g, Report{Supplied: true, ParseErr: errors.Wrap(err, "encoding scene document")}
	}
	return Load(b, def)
}

// unwrap returns the document object bytes, nil when there is no document.
func unwrap(doc []byte) ([]byte, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
		return nil, nil
	}
	if doc[0] != '"' {
		return doc, nil
	}

	var s string
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, errors.Wrap(err, "decoding scene string")
	}
	inner := bytes.TrimSpace([]byte(s))
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		return nil, nil
	}
	if inner[0] == '"' { // double-encoded
		return unwrap(inner)
	}
	return inner, nil
}
