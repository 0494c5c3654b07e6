package network

import "github.com/pkg/errors"

// Grid returns a w x h lattice where each node is joined to its four street
// neighbors. Node ids run row-major from 0. It stands in for a city street
// network when no edge list is supplied.
func Grid(w, h int) (*Graph, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("grid dimensions must be positive, got %dx%d", w, h)
	}
	g := New()
	id := func(x, y int) NodeID { return NodeID(y*w + x) }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.AddNode(id(x, y))
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+1 < w {
				g.AddEdge(id(x, y), id(x+1, y))
			}
			if y+1 < h {
				g.AddEdge(id(x, y), id(x, y+1))
			}
		}
	}
	return g, nil
}
