// Package pick tracks the objects that can be hit by a pointer ray and
// resolves rays to them.
package pick

import (
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

// Pickable is an object subtree eligible for hit testing. Buttons carry a
// colour; the base object does not.
type Pickable struct {
	ID      int
	Node    *scene.Node
	Toggled bool
	// Color is set once by Set.Add and never changed.
	Color *scene.Color
	// OriginalAxisOffset caches the Axis coordinate of Node.Position before
	// the last toggle.
	OriginalAxisOffset float64
	Axis               math3d.Axis
}

// IsButton reports whether the pickable is a colour button.
func (p *Pickable) IsButton() bool { return p.Color != nil }

// Name returns the node's name.
func (p *Pickable) Name() string { return p.Node.Name }

// Set is the append-only collection of pickables for a session.
type Set struct {
	items []*Pickable
	byID  map[int]*Pickable
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{byID: make(map[int]*Pickable)}
}

// Add registers node as a pickable and tags its subtree with the new ID.
// Nodes already tagged by another pickable keep their tag, along with
// their descendants. A nil color registers the base object.
func (s *Set) Add(node *scene.Node, color *scene.Color, axis math3d.Axis) *Pickable {
	p := &Pickable{ID: len(s.items) + 1, Node: node, Axis: axis}
	if color != nil {
		c := *color
		p.Color = &c
	}
	node.Walk(func(n *scene.Node) bool {
		if n.PickID != scene.NoPick && n != node {
			return false
		}
		n.PickID = p.ID
		return true
	})
	s.items = append(s.items, p)
	s.byID[p.ID] = p
	return p
}

// Get returns the pickable with the given ID, or nil.
func (s *Set) Get(id int) *Pickable { return s.byID[id] }

// Owner returns the pickable a node belongs to via its tag, or nil.
func (s *Set) Owner(n *scene.Node) *Pickable {
	if n == nil {
		return nil
	}
	return s.byID[n.PickID]
}

// All returns the pickables in insertion order.
func (s *Set) All() []*Pickable { return s.items }

// Buttons returns the colour buttons in insertion order.
func (s *Set) Buttons() []*Pickable {
	var out []*Pickable
	for _, p := range s.items {
		if p.IsButton() {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of pickables.
func (s *Set) Len() int { return len(s.items) }
