// Package scene holds the object graph the session mutates and the renderer
// draws: nodes with local transforms, optional meshes and flat colours.
package scene

import (
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/models"
)

// NoPick marks a node that belongs to no pickable object.
const NoPick = 0

// Transform is a node's local position, XYZ Euler rotation and scale.
type Transform struct {
	Position math3d.Vec3
	Rotation math3d.Vec3
	Scale    math3d.Vec3
}

// IdentityTransform returns the rest transform.
func IdentityTransform() Transform {
	return Transform{Scale: math3d.One3()}
}

// Matrix returns T * R * S.
func (t Transform) Matrix() math3d.Mat4 {
	return math3d.Compose(t.Position, t.Rotation, t.Scale)
}

// Node is an element of the scene graph. Rotation.Y is the yaw.
type Node struct {
	Name     string
	Position math3d.Vec3
	Rotation math3d.Vec3
	Scale    math3d.Vec3

	Mesh  *models.Mesh
	Color Color

	// Button marks subtrees that keep their own colour when the base is
	// recoloured.
	Button bool
	// PickID names the pickable object this node belongs to (NoPick if none).
	PickID int

	parent   *Node
	children []*Node
}

// New creates a node with an identity transform.
func New(name string) *Node {
	return &Node{Name: name, Scale: math3d.One3()}
}

// FromModel mirrors a loaded model as a subtree under a root named after it.
func FromModel(m *models.Model) *Node {
	root := New(m.Name)
	var build func(src *models.Node) *Node
	build = func(src *models.Node) *Node {
		n := New(src.Name)
		n.Position, n.Rotation, n.Scale = src.Translation, src.Rotation, src.Scale
		n.Mesh = src.Mesh
		for _, c := range src.Children {
			n.Add(build(c))
		}
		return n
	}
	for _, r := range m.Roots {
		root.Add(build(r))
	}
	return root
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Add attaches children to n, detaching them from any previous parent.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil || c == n {
			continue
		}
		if c.parent != nil {
			c.parent.Remove(c)
		}
		c.parent = n
		n.children = append(n.children, c)
	}
}

// Remove detaches child from n and reports whether it was attached.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Transform returns the local transform.
func (n *Node) Transform() Transform {
	return Transform{Position: n.Position, Rotation: n.Rotation, Scale: n.Scale}
}

// SetTransform replaces the local transform.
func (n *Node) SetTransform(t Transform) {
	n.Position, n.Rotation, n.Scale = t.Position, t.Rotation, t.Scale
}

// Local returns the local transform matrix.
func (n *Node) Local() math3d.Mat4 {
	return n.Transform().Matrix()
}

// World returns the node's transform in scene space.
func (n *Node) World() math3d.Mat4 {
	m := n.Local()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Local().Mul(m)
	}
	return m
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// WalkWorld visits n and its descendants with their world matrices.
func (n *Node) WalkWorld(fn func(node *Node, world math3d.Mat4)) {
	var parent math3d.Mat4
	if n.parent != nil {
		parent = n.parent.World()
	} else {
		parent = math3d.Identity()
	}
	n.walkWorld(parent, fn)
}

func (n *Node) walkWorld(parent math3d.Mat4, fn func(*Node, math3d.Mat4)) {
	world := parent.Mul(n.Local())
	fn(n, world)
	for _, c := range n.children {
		c.walkWorld(world, fn)
	}
}

// Find returns the first node named name in the subtree, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// SetColor sets the colour of every node in the subtree.
func (n *Node) SetColor(c Color) {
	n.Walk(func(x *Node) bool {
		x.Color = c
		return true
	})
}

// MarkButton flags the whole subtree as button geometry.
func (n *Node) MarkButton() {
	n.Walk(func(x *Node) bool {
		x.Button = true
		return true
	})
}

// Bounds returns the world-space box around every mesh in the subtree.
func (n *Node) Bounds() math3d.AABB {
	box := math3d.EmptyAABB()
	n.WalkWorld(func(x *Node, world math3d.Mat4) {
		if x.Mesh != nil && x.Mesh.VertexCount() > 0 {
			box = box.Union(x.Mesh.Bounds().Transform(world))
		}
	})
	return box
}

// Count returns the number of nodes and mesh triangles in the subtree.
func (n *Node) Count() (nodes, triangles int) {
	n.Walk(func(x *Node) bool {
		nodes++
		if x.Mesh != nil {
			triangles += x.Mesh.TriangleCount()
		}
		return true
	})
	return nodes, triangles
}
