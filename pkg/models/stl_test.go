package models

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"testing/fstest"
)

const twoFacetSTL = `solid plate
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 1 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid plate`

func binarySTL(t *testing.T, tris [][4][3]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(tris))); err != nil {
		t.Fatal(err)
	}
	for _, tri := range tris {
		if err := binary.Write(&buf, binary.LittleEndian, tri); err != nil {
			t.Fatal(err)
		}
		buf.Write([]byte{0, 0})
	}
	return buf.Bytes()
}

func TestSTLLoadASCII(t *testing.T) {
	mesh, err := NewSTLLoader().Load(strings.NewReader(twoFacetSTL), "test.stl")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mesh.Name != "plate" {
		t.Errorf("Name = %q, want %q", mesh.Name, "plate")
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", mesh.TriangleCount())
	}
	// Shared edge vertices are deduplicated.
	if mesh.VertexCount() != 4 {
		t.Errorf("VertexCount = %d, want 4", mesh.VertexCount())
	}
}

func TestSTLLoadBinary(t *testing.T) {
	data := binarySTL(t, [][4][3]float32{
		{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	})
	mesh, err := NewSTLLoader().LoadBytes(data, "bin.stl")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if mesh.TriangleCount() != 1 || mesh.VertexCount() != 3 {
		t.Errorf("got %d triangles, %d vertices; want 1, 3", mesh.TriangleCount(), mesh.VertexCount())
	}
	if mesh.Vertices[0].Normal.Z != 1 {
		t.Errorf("Normal.Z = %f, want 1", mesh.Vertices[0].Normal.Z)
	}
}

func TestSTLBinaryTruncated(t *testing.T) {
	data := binarySTL(t, [][4][3]float32{{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}})
	binary.LittleEndian.PutUint32(data[80:84], 3)
	if _, err := NewSTLLoader().LoadBytes(data, "bad.stl"); err == nil {
		t.Error("expected error for truncated binary STL")
	}
}

func TestSTLDetection(t *testing.T) {
	if isBinarySTL([]byte("solid test\nfacet normal 0 0 1\n")) {
		t.Error("ASCII STL detected as binary")
	}
	bin := binarySTL(t, nil)
	if !isBinarySTL(bin) {
		t.Error("binary STL not detected")
	}
	// A binary header that happens to start with "solid".
	copy(bin, "solid header")
	if !isBinarySTL(bin) {
		t.Error("binary STL with solid header not detected")
	}
}

func TestSTLVertexOutsideFacet(t *testing.T) {
	_, err := NewSTLLoader().Load(strings.NewReader("solid x\nvertex 0 0 0\nendsolid x\n"), "x.stl")
	if err == nil {
		t.Error("expected error for vertex outside facet")
	}
}

func TestSTLSmoothNormals(t *testing.T) {
	src := `solid bend
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 -1 0
    outer loop
      vertex 0 0 0
      vertex 0 0 1
      vertex 1 0 0
    endloop
  endfacet
endsolid bend`

	loader := NewSTLLoader()
	loader.SmoothNormals = true
	mesh, err := loader.Load(strings.NewReader(src), "bend.stl")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, v := range mesh.Vertices {
		if l := v.Normal.Len(); math.Abs(l-1) > 1e-6 {
			t.Errorf("normal at %v has length %f, want 1", v.Position, l)
		}
	}
}

func TestSTLLoadFS(t *testing.T) {
	fsys := fstest.MapFS{"parts/plate.stl": {Data: []byte(twoFacetSTL)}}
	model, err := NewSTLLoader().LoadFS(fsys, "parts/plate.stl")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	nodes, verts, tris := model.Stats()
	if nodes != 1 || verts != 4 || tris != 2 {
		t.Errorf("Stats() = %d, %d, %d; want 1, 4, 2", nodes, verts, tris)
	}
	b := model.Bounds()
	if b.Min.X != 0 || b.Max.X != 1 || b.Max.Y != 1 {
		t.Errorf("Bounds() = %+v, want (0,0,0)-(1,1,0)", b)
	}
	if _, err := NewSTLLoader().LoadFS(fsys, "missing.stl"); err == nil {
		t.Error("expected error for missing file")
	}
}
