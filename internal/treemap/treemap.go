// Package treemap builds the sector/instrument hierarchy and lays it out as
// nested rectangles.
package treemap

import (
	"sort"

	"TWHeatmap/internal/model"
)

// DefaultRootLabel is the caption of the root node.
const DefaultRootLabel = "台灣 50 市場結構"

// Node is one rectangle of the chart. Leaves carry their row; a parent's
// value is the sum of its children and its change is their size-weighted mean.
type Node struct {
	Label     string
	Value     float64
	ChangePct float64
	Row       *model.MarketRow
	Children  []*Node
}

// IsLeaf reports whether the node is an instrument.
func (n *Node) IsLeaf() bool { return n.Row != nil }

// Build groups rows into root → sector → instrument. Rows with a non-positive
// size are ignored. Siblings are ordered by value, largest first.
func Build(rows []model.MarketRow, rootLabel string) *Node {
	if rootLabel == "" {
		rootLabel = DefaultRootLabel
	}
	root := &Node{Label: rootLabel}
	sectors := make(map[string]*Node)

	for i := range rows {
		r := rows[i]
		if !(r.Size > 0) {
			continue
		}
		sec, ok := sectors[r.Sector]
		if !ok {
			sec = &Node{Label: r.Sector}
			sectors[r.Sector] = sec
			root.Children = append(root.Children, sec)
		}
		sec.Children = append(sec.Children, &Node{
			Label:     r.Label,
			Value:     r.Size,
			ChangePct: r.ChangePct,
			Row:       &r,
		})
	}

	for _, sec := range root.Children {
		sortByValue(sec.Children)
		aggregate(sec)
	}
	sortByValue(root.Children)
	aggregate(root)
	return root
}

// Leaves returns every instrument node under n in depth-first order.
func (n *Node) Leaves() []*Node {
	if n.IsLeaf() {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

func aggregate(n *Node) {
	var total, weighted float64
	for _, c := range n.Children {
		total += c.Value
		weighted += c.Value * c.ChangePct
	}
	n.Value = total
	if total > 0 {
		n.ChangePct = weighted / total
	}
}

func sortByValue(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Value > nodes[j].Value })
}
