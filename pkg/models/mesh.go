// Package models provides triangle meshes, model hierarchies and the loaders
// that produce them (glTF/GLB, STL and procedural primitives).
package models

import (
	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// Mesh is an indexed triangle mesh in its node's local space.
type Mesh struct {
	Name     string
	Vertices []MeshVertex
	Faces    []Face

	// Bounding box (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds the vertex attributes the renderer uses.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
}

// Face is a triangle referencing three entries of Mesh.Vertices.
type Face struct {
	V [3]int
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: make([]MeshVertex, 0),
		Faces:    make([]Face, 0),
	}
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		m.BoundsMin, m.BoundsMax = math3d.Zero3(), math3d.Zero3()
		return
	}
	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Bounds returns the local bounding box as an AABB.
func (m *Mesh) Bounds() math3d.AABB {
	if len(m.Vertices) == 0 {
		return math3d.EmptyAABB()
	}
	return math3d.AABB{Min: m.BoundsMin, Max: m.BoundsMax}
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Midpoint(m.BoundsMax)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// Triangle returns the three corner positions of face i.
func (m *Mesh) Triangle(i int) (a, b, c math3d.Vec3) {
	f := m.Faces[i].V
	return m.Vertices[f[0]].Position, m.Vertices[f[1]].Position, m.Vertices[f[2]].Position
}

func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	a, b, c := m.Vertices[f.V[0]].Position, m.Vertices[f.V[1]].Position, m.Vertices[f.V[2]].Position
	return b.Sub(a).Cross(c.Sub(a))
}

// CalculateNormals assigns each face's normal to its vertices (flat shading).
// Vertices shared between faces end up with the normal of the last face.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals averages area-weighted face normals per vertex.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, vi := range f.V {
			m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// HasNormals reports whether any vertex carries a usable normal.
func (m *Mesh) HasNormals() bool {
	for _, v := range m.Vertices {
		if v.Normal.LenSq() > 1e-6 {
			return true
		}
	}
	return false
}

// Transform bakes mat into the vertex positions and normals.
func (m *Mesh) Transform(mat math3d.Mat4) {
	for i := range m.Vertices {
		m.Vertices[i].Position = mat.MulVec3(m.Vertices[i].Position)
		m.Vertices[i].Normal = mat.MulVec3Dir(m.Vertices[i].Normal).Normalize()
	}
	m.CalculateBounds()
}

// Append adds other's geometry to m.
func (m *Mesh) Append(other *Mesh) {
	base := len(m.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, f := range other.Faces {
		m.Faces = append(m.Faces, Face{V: [3]int{f.V[0] + base, f.V[1] + base, f.V[2] + base}})
	}
	m.CalculateBounds()
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := &Mesh{
		Name:      m.Name,
		Vertices:  make([]MeshVertex, len(m.Vertices)),
		Faces:     make([]Face, len(m.Faces)),
		BoundsMin: m.BoundsMin,
		BoundsMax: m.BoundsMax,
	}
	copy(clone.Vertices, m.Vertices)
	copy(clone.Faces, m.Faces)
	return clone
}

// GetVertex returns the position and normal of vertex i.
func (m *Mesh) GetVertex(i int) (pos, normal math3d.Vec3) {
	v := m.Vertices[i]
	return v.Position, v.Normal
}

// GetFace returns the vertex indices for face i.
func (m *Mesh) GetFace(i int) [3]int {
	return m.Faces[i].V
}

// faceKey sorts the indices so the same triangle matches in any winding.
func faceKey(v0, v1, v2 int) [3]int {
	if v0 > v1 {
		v0, v1 = v1, v0
	}
	if v1 > v2 {
		v1, v2 = v2, v1
	}
	if v0 > v1 {
		v0, v1 = v1, v0
	}
	return [3]int{v0, v1, v2}
}

// filterFaces keeps the faces for which keep returns true and reports how
// many were dropped.
func (m *Mesh) filterFaces(keep func(i int, f Face) bool) int {
	kept := m.Faces[:0:0]
	for i, f := range m.Faces {
		if keep(i, f) {
			kept = append(kept, f)
		}
	}
	removed := len(m.Faces) - len(kept)
	m.Faces = kept
	return removed
}

// DeduplicateFaces drops repeated triangles regardless of winding, keeping
// the first occurrence. It returns the number of faces removed.
func (m *Mesh) DeduplicateFaces() int {
	seen := make(map[[3]int]struct{}, len(m.Faces))
	return m.filterFaces(func(_ int, f Face) bool {
		key := faceKey(f.V[0], f.V[1], f.V[2])
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

// RemoveInternalFaces drops pairs of triangles over the same vertices with
// opposite normals, which appear where meshes were merged.
func (m *Mesh) RemoveInternalFaces() int {
	groups := make(map[[3]int][]int)
	normals := make([]math3d.Vec3, len(m.Faces))
	for i, f := range m.Faces {
		normals[i] = m.faceNormal(f).Normalize()
		key := faceKey(f.V[0], f.V[1], f.V[2])
		groups[key] = append(groups[key], i)
	}

	drop := make(map[int]bool)
	for _, idx := range groups {
		for a := 0; a < len(idx); a++ {
			if drop[idx[a]] {
				continue
			}
			for b := a + 1; b < len(idx); b++ {
				if !drop[idx[b]] && normals[idx[a]].Dot(normals[idx[b]]) < -0.99 {
					drop[idx[a]], drop[idx[b]] = true, true
					break
				}
			}
		}
	}
	if len(drop) == 0 {
		return 0
	}
	return m.filterFaces(func(i int, _ Face) bool { return !drop[i] })
}

// RemoveDegenerateFaces drops triangles with repeated indices or near-zero
// area. Such faces cannot be hit by a ray and only cost raster time.
func (m *Mesh) RemoveDegenerateFaces() int {
	const minArea = 1e-10
	return m.filterFaces(func(_ int, f Face) bool {
		if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[0] == f.V[2] {
			return false
		}
		return m.faceNormal(f).Len()*0.5 > minArea
	})
}

// RemoveUnreferencedVertices compacts Vertices to the ones faces use.
func (m *Mesh) RemoveUnreferencedVertices() {
	if len(m.Vertices) == 0 {
		return
	}
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	compact := make([]MeshVertex, 0, len(m.Vertices))
	for fi := range m.Faces {
		for k, vi := range m.Faces[fi].V {
			if remap[vi] < 0 {
				remap[vi] = len(compact)
				compact = append(compact, m.Vertices[vi])
			}
			m.Faces[fi].V[k] = remap[vi]
		}
	}
	m.Vertices = compact
}

// CleanMesh runs every cleanup pass and returns the number of faces removed.
// Internal faces go before deduplication, which would otherwise hide one
// half of each opposing pair.
func (m *Mesh) CleanMesh() int {
	removed := m.RemoveDegenerateFaces()
	removed += m.RemoveInternalFaces()
	removed += m.DeduplicateFaces()
	m.RemoveUnreferencedVertices()
	m.CalculateBounds()
	return removed
}
