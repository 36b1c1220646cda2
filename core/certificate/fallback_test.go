package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

func TestFallbackLayout(t *testing.T) {
	g := scene.NewGraph(2000, 1414)
	require.True(t, FallbackLayout(g, testValues))
	require.Len(t, g.Nodes, 5)

	border, ok := g.Nodes[0].(*scene.Shape)
	require.True(t, ok)
	assert.Equal(t, "rect", border.Type)
	assert.Equal(t, 1920.0, border.Width)
	assert.Equal(t, 1334.0, border.Height)
	assert.Equal(t, 40.0, border.StrokeWidth)

	var texts []string
	for _, txt := range g.Texts() {
		texts = append(texts, txt.Content)
	}
	assert.Equal(t, []string{FallbackTitle, "Aisha Khan", "Advanced React", "ID: CERT-42"}, texts)
	assert.Equal(t, scene.Paint("#ffffff"), g.Background)

	id := g.Nodes[4].(*scene.Text)
	assert.Equal(t, 100.0, id.Left)
	assert.Equal(t, 1314.0, id.Top)
	assert.Equal(t, "bottom", id.OriginY)
}

func TestFallbackLayout_keepsContent(t *testing.T) {
	g := scene.NewGraph(800, 600)
	g.Background = "#000000"
	g.Add(&scene.Text{Type: "text", Content: "Hello"})

	assert.False(t, FallbackLayout(g, testValues))
	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, scene.Paint("#000000"), g.Background)
}

func TestFallbackLayout_keepsBackground(t *testing.T) {
	g := scene.NewGraph(800, 600)
	g.Background = "#fdf6e3"
	require.True(t, FallbackLayout(g, testValues))
	assert.Equal(t, scene.Paint("#fdf6e3"), g.Background)
}
