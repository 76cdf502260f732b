package models

import (
	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// Node is one entry of a loaded model hierarchy. Transforms are local to the
// parent; Rotation holds XYZ Euler angles in radians.
type Node struct {
	Name        string
	Translation math3d.Vec3
	Rotation    math3d.Vec3
	Scale       math3d.Vec3
	Mesh        *Mesh // nil for grouping nodes
	Children    []*Node
}

// NewNode returns a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Scale: math3d.One3()}
}

// Local returns the node's local transform.
func (n *Node) Local() math3d.Mat4 {
	return math3d.Compose(n.Translation, n.Rotation, n.Scale)
}

// Add appends children and returns n for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Model is a named forest of nodes, as produced by the loaders.
type Model struct {
	Name  string
	Roots []*Node
}

// Walk visits every node depth-first with its accumulated world transform.
func (m *Model) Walk(fn func(n *Node, world math3d.Mat4)) {
	var visit func(n *Node, parent math3d.Mat4)
	visit = func(n *Node, parent math3d.Mat4) {
		world := parent.Mul(n.Local())
		fn(n, world)
		for _, c := range n.Children {
			visit(c, world)
		}
	}
	for _, r := range m.Roots {
		visit(r, math3d.Identity())
	}
}

// Stats counts nodes, vertices and triangles across the hierarchy.
func (m *Model) Stats() (nodes, vertices, triangles int) {
	m.Walk(func(n *Node, _ math3d.Mat4) {
		nodes++
		if n.Mesh != nil {
			vertices += n.Mesh.VertexCount()
			triangles += n.Mesh.TriangleCount()
		}
	})
	return nodes, vertices, triangles
}

// Bounds returns the model's bounding box in model space.
func (m *Model) Bounds() math3d.AABB {
	box := math3d.EmptyAABB()
	m.Walk(func(n *Node, world math3d.Mat4) {
		if n.Mesh != nil && n.Mesh.VertexCount() > 0 {
			box = box.Union(n.Mesh.Bounds().Transform(world))
		}
	})
	return box
}

// Flatten bakes every mesh into a single model-space mesh.
func (m *Model) Flatten() *Mesh {
	out := NewMesh(m.Name)
	m.Walk(func(n *Node, world math3d.Mat4) {
		if n.Mesh == nil {
			return
		}
		part := n.Mesh.Clone()
		part.Transform(world)
		out.Append(part)
	})
	out.CalculateBounds()
	return out
}
