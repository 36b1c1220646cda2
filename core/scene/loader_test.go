package scene

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"version": "5.3.0",
	"width": 1600,
	"height": 1131,
	"background": "#fffdf5",
	"backgroundImage": {"type": "image", "src": "https://cdn.test/bg.png", "left": 0, "top": 0},
	"objects": [
		{"type": "rect", "left": 20, "top": 20, "width": 1560, "height": 1091, "fill": "transparent", "stroke": "#c9a227", "strokeWidth": 12, "rx": 24, "ry": 24},
		{"type": "textbox", "left": 800, "top": 300, "originX": "center", "text": "Congrats {{student_name}}", "fontSize": 64, "fontWeight": 700, "fill": "#111"},
		{"type": "i-text", "left": 800, "top": 450, "text": "{{course_title}}", "fontSize": 40, "fill": {"type": "linear", "colorStops": []}},
		{"type": "group", "left": 100, "top": 900, "objects": [
			{"type": "text", "left": 0, "top": 0, "text": "{{date}}"},
			{"type": "circle", "radius": 30}
		]},
		{"type": "text", "visible": false, "text": "hidden"}
	]
}`

func TestLoad(t *testing.T) {
	stringDoc, _ := json.Marshal(sampleDoc)

	tests := []struct {
		name         string
		doc          []byte
		wantW, wantH int
		wantNodes    int
		wantSupplied bool
		wantParseErr bool
	}{
		{name: "absent", doc: nil, wantW: DefaultWidth, wantH: DefaultHeight},
		{name: "null", doc: []byte("null"), wantW: DefaultWidth, wantH: DefaultHeight},
		{name: "empty string", doc: []byte(`""`), wantW: DefaultWidth, wantH: DefaultHeight},
		{name: "object", doc: []byte(sampleDoc), wantW: 1600, wantH: 1131, wantNodes: 4, wantSupplied: true},
		{name: "string-encoded object", doc: stringDoc, wantW: 1600, wantH: 1131, wantNodes: 4, wantSupplied: true},
		{name: "invalid json string", doc: []byte(`"not valid json"`), wantW: DefaultWidth, wantH: DefaultHeight, wantSupplied: true, wantParseErr: true},
		{name: "raw garbage", doc: []byte(`not valid json`), wantW: DefaultWidth, wantH: DefaultHeight, wantSupplied: true, wantParseErr: true},
		{name: "no size", doc: []byte(`{"objects":[{"type":"text","text":"x"}]}`), wantW: DefaultWidth, wantH: DefaultHeight, wantNodes: 1, wantSupplied: true},
		{name: "empty objects", doc: []byte(`{"width":800,"height":600,"objects":[]}`), wantW: 800, wantH: 600, wantSupplied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rep := Load(tt.doc, DefaultSize)
			require.NotNil(t, g)
			if g.Width != tt.wantW || g.Height != tt.wantH {
				t.Errorf("Load() size = %dx%d; want %dx%d", g.Width, g.Height, tt.wantW, tt.wantH)
			}
			if len(g.Nodes) != tt.wantNodes {
				t.Errorf("Load() nodes = %d; want %d", len(g.Nodes), tt.wantNodes)
			}
			if rep.Supplied != tt.wantSupplied {
				t.Errorf("Load() Supplied = %v; want %v", rep.Supplied, tt.wantSupplied)
			}
			if (rep.ParseErr != nil) != tt.wantParseErr {
				t.Errorf("Load() ParseErr = %v; wantParseErr %v", rep.ParseErr, tt.wantParseErr)
			}
		})
	}
}

func TestLoad_nodes(t *testing.T) {
	g, rep := Load([]byte(sampleDoc), DefaultSize)
	require.NoError(t, rep.ParseErr)
	assert.Equal(t, 0, rep.Skipped)
	assert.Equal(t, Paint("#fffdf5"), g.Background)
	require.NotNil(t, g.BackgroundImage)
	assert.Equal(t, "https://cdn.test/bg.png", g.BackgroundImage.Src)

	rect, ok := g.Nodes[0].(*Shape)
	require.True(t, ok, "first node should be a shape")
	assert.Equal(t, "rect", rect.Type)
	assert.True(t, rect.Fill.IsNone())
	assert.Equal(t, 12.0, rect.StrokeWidth)

	title, ok := g.Nodes[1].(*Text)
	require.True(t, ok, "second node should be text")
	assert.True(t, title.FontWeight.Bold())
	assert.Equal(t, "Congrats {{student_name}}", title.Content)
	ax, _ := title.Anchor()
	assert.Equal(t, 0.5, ax)

	course, ok := g.Nodes[2].(*Text)
	require.True(t, ok, "third node should be text")
	assert.Equal(t, Paint(""), course.Fill, "gradients decode to no paint")

	grp, ok := g.Nodes[3].(*Group)
	require.True(t, ok, "fourth node should be a group")
	assert.Len(t, grp.Children, 2)

	assert.Len(t, g.Texts(), 3)
	assert.Len(t, g.Images(), 1)
}

func TestLoad_skipsUndecodableObjects(t *testing.T) {
	doc := []byte(`{"objects":[{"type":"text","text":"ok"},{"type":"text","text":42},{"type":"rect","left":"x"}]}`)
	g, rep := Load(doc, DefaultSize)
	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, 2, rep.Skipped)
	assert.True(t, rep.Degraded())
}

func TestLoad_idempotent(t *testing.T) {
	doc := []byte(sampleDoc)
	orig := append([]byte(nil), doc...)

	g1, _ := Load(doc, DefaultSize)
	g2, _ := Load(doc, DefaultSize)
	if !reflect.DeepEqual(g1, g2) {
		t.Error("Load() twice produced different graphs")
	}
	if string(doc) != string(orig) {
		t.Error("Load() mutated its source document")
	}

	// mutating one graph never leaks into another
	g1.Texts()[0].Content = "changed"
	assert.Equal(t, "Congrats {{student_name}}", g2.Texts()[0].Content)
}

func TestLoadValue(t *testing.T) {
	var structured map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sampleDoc), &structured))

	g, rep := LoadValue(structured, DefaultSize)
	require.NoError(t, rep.ParseErr)
	assert.Equal(t, 1600, g.Width)
	assert.Len(t, g.Nodes, 4)

	g, rep = LoadValue("not valid json", DefaultSize)
	assert.Error(t, rep.ParseErr)
	assert.True(t, g.IsEmpty())

	g, rep = LoadValue(nil, Size{Width: 100, Height: 50})
	assert.False(t, rep.Supplied)
	assert.Equal(t, 100, g.Width)
	assert.Equal(t, 50, g.Height)
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"text":    KindText,
		"i-text":  KindText,
		"IText":   KindText,
		"Textbox": KindText,
		"image":   KindImage,
		"group":   KindGroup,
		"rect":    KindShape,
		"polygon": KindShape,
		"":        KindShape,
	}
	for tag, want := range tests {
		if got := Classify(tag); got != want {
			t.Errorf("Classify(%q) = %v; want %v", tag, got, want)
		}
	}
}

func TestGraph_Clone(t *testing.T) {
	g, _ := Load([]byte(sampleDoc), DefaultSize)
	c := g.Clone()
	require.True(t, reflect.DeepEqual(g, c))

	c.Nodes[3].(*Group).Children[0].(*Text).Content = "x"
	c.BackgroundImage.Src = "y"
	assert.Equal(t, "{{date}}", g.Nodes[3].(*Group).Children[0].(*Text).Content)
	assert.Equal(t, "https://cdn.test/bg.png", g.BackgroundImage.Src)
}
