package scene

// Walk visits every node depth-first, parents before children.
func (g *Graph) Walk(fn func(Node)) {
	walk(g.Nodes, fn)
}

func walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		if grp, ok := n.(*Group); ok {
			walk(grp.Children, fn)
		}
	}
}

// Texts returns every text node of the graph, including those nested in groups.
func (g *Graph) Texts() []*Text {
	var texts []*Text
	g.Walk(func(n Node) {
		if t, ok := n.(*Text); ok {
			texts = append(texts, t)
		}
	})
	return texts
}

// Images returns every image node, the background image first.
func (g *Graph) Images() []*Image {
	var imgs []*Image
	if g.BackgroundImage != nil {
		imgs = append(imgs, g.BackgroundImage)
	}
	g.Walk(func(n Node) {
		if img, ok := n.(*Image); ok {
			imgs = append(imgs, img)
		}
	})
	return imgs
}
