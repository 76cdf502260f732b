package models

import (
	"fmt"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// NewBox returns an axis-aligned box of the given size centred on the origin.
// Each side has its own four vertices so normals stay flat.
func NewBox(name string, size math3d.Vec3) *Mesh {
	h := size.Scale(0.5)
	mesh := NewMesh(name)
	sides := []struct {
		normal, u, v math3d.Vec3
	}{
		{math3d.V3(1, 0, 0), math3d.V3(0, 1, 0), math3d.V3(0, 0, 1)},
		{math3d.V3(-1, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 1, 0), math3d.V3(0, 0, 1), math3d.V3(1, 0, 0)},
		{math3d.V3(0, -1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, 1)},
		{math3d.V3(0, 0, 1), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 0, -1), math3d.V3(0, 1, 0), math3d.V3(1, 0, 0)},
	}
	for _, s := range sides {
		base := len(mesh.Vertices)
		center := s.normal.Mul(h)
		u, v := s.u.Mul(h), s.v.Mul(h)
		for _, c := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := center.Add(u.Scale(c[0])).Add(v.Scale(c[1]))
			mesh.Vertices = append(mesh.Vertices, MeshVertex{Position: p, Normal: s.normal})
		}
		mesh.Faces = append(mesh.Faces,
			Face{V: [3]int{base, base + 1, base + 2}},
			Face{V: [3]int{base, base + 2, base + 3}},
		)
	}
	mesh.CalculateBounds()
	return mesh
}

// Builtin switch geometry: a plate facing +Z with three caps along X.
var (
	SwitchPlateSize = math3d.V3(2.6, 1.0, 0.4)
	ButtonCapSize   = math3d.V3(0.6, 0.6, 0.3)
	ButtonSpacing   = 0.85
)

// SwitchModel returns the procedural stand-in for the switch housing.
func SwitchModel() *Model {
	plate := NewNode("plate")
	plate.Mesh = NewBox("plate", SwitchPlateSize)
	root := NewNode("switch").Add(plate)
	return &Model{Name: "switch", Roots: []*Node{root}}
}

// ButtonModel returns the procedural cap for button n (1, 2 or 3, left to
// right). The root sits at the origin; the cap is offset within it so a
// translation of the root moves the cap relative to the housing.
func ButtonModel(n int) (*Model, error) {
	if n < 1 || n > 3 {
		return nil, fmt.Errorf("no builtin button %d", n)
	}
	name := fmt.Sprintf("button%02d", n)
	capNode := NewNode(name + "_cap")
	capNode.Mesh = NewBox(name+"_cap", ButtonCapSize)
	capNode.Translation = math3d.V3(float64(n-2)*ButtonSpacing, 0, (SwitchPlateSize.Z+ButtonCapSize.Z)/2)
	root := NewNode(name).Add(capNode)
	return &Model{Name: name, Roots: []*Node{root}}, nil
}
