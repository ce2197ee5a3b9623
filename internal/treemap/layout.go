package treemap

import "math"

// Rect is an axis-aligned rectangle in chart coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Area returns W × H.
func (r Rect) Area() float64 { return r.W * r.H }

// Tile is a positioned node. Depth is 0 for the root, 1 for sectors.
type Tile struct {
	Node  *Node
	Rect  Rect
	Depth int
}

// LayoutOptions reserves room for parent captions.
type LayoutOptions struct {
	Header  float64 // caption band at the top of every parent
	Padding float64 // inset of children on the other three sides
}

// Layout positions every node of the tree inside bounds using the squarified
// algorithm. Parents come before their children in the result.
func Layout(root *Node, bounds Rect, opts LayoutOptions) []Tile {
	if root == nil {
		return nil
	}
	var tiles []Tile
	layoutNode(root, bounds, 0, opts, &tiles)
	return tiles
}

func layoutNode(n *Node, r Rect, depth int, opts LayoutOptions, out *[]Tile) {
	*out = append(*out, Tile{Node: n, Rect: r, Depth: depth})
	if n.IsLeaf() || len(n.Children) == 0 {
		return
	}
	inner := Rect{
		X: r.X + opts.Padding,
		Y: r.Y + opts.Header,
		W: r.W - 2*opts.Padding,
		H: r.H - opts.Header - opts.Padding,
	}
	if inner.W <= 0 || inner.H <= 0 {
		return
	}
	values := make([]float64, len(n.Children))
	for i, c := range n.Children {
		values[i] = c.Value
	}
	rects := squarify(values, inner)
	for i, c := range n.Children {
		layoutNode(c, rects[i], depth+1, opts, out)
	}
}

// squarify splits r into one rectangle per value with areas proportional to
// the values, keeping aspect ratios close to 1. values should be sorted in
// descending order.
func squarify(values []float64, r Rect) []Rect {
	out := make([]Rect, len(values))
	total := sum(values)
	if total <= 0 || r.W <= 0 || r.H <= 0 {
		return out
	}
	scale := r.Area() / total
	areas := make([]float64, len(values))
	for i, v := range values {
		areas[i] = math.Max(v, 0) * scale
	}

	for i := 0; i < len(areas); {
		side := math.Min(r.W, r.H)
		j := i + 1
		for j < len(areas) && worst(areas[i:j+1], side) <= worst(areas[i:j], side) {
			j++
		}
		r = placeRow(areas[i:j], r, out[i:j])
		i = j
	}
	return out
}

// worst is the largest aspect ratio in row when laid along side.
func worst(row []float64, side float64) float64 {
	s := sum(row)
	if s <= 0 || side <= 0 {
		return math.Inf(1)
	}
	lo, hi := row[0], row[0]
	for _, a := range row[1:] {
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if lo <= 0 {
		return math.Inf(1)
	}
	s2, w2 := s*s, side*side
	return math.Max(w2*hi/s2, s2/(w2*lo))
}

// placeRow lays row along the shorter side of r and returns the remainder.
func placeRow(row []float64, r Rect, dst []Rect) Rect {
	s := sum(row)
	if r.W >= r.H {
		w := s / r.H
		y := r.Y
		for k, a := range row {
			h := a / w
			dst[k] = Rect{X: r.X, Y: y, W: w, H: h}
			y += h
		}
		return Rect{X: r.X + w, Y: r.Y, W: r.W - w, H: r.H}
	}
	h := s / r.W
	x := r.X
	for k, a := range row {
		w := a / h
		dst[k] = Rect{X: x, Y: r.Y, W: w, H: h}
		x += w
	}
	return Rect{X: r.X, Y: r.Y + h, W: r.W, H: r.H - h}
}

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}
