package models

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// STLLoader loads STL (stereolithography) files in both ASCII and binary formats.
type STLLoader struct {
	// Options
	SmoothNormals bool // Average normals per vertex for smooth shading
	Clean         bool // Run CleanMesh after parsing
}

// NewSTLLoader creates a new STL loader with default settings.
func NewSTLLoader() *STLLoader {
	return &STLLoader{Clean: true}
}

// LoadFS reads name from fsys and parses it as a single-node model.
func (l *STLLoader) LoadFS(fsys fs.FS, name string) (*Model, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL file: %w", err)
	}
	mesh, err := l.LoadBytes(data, path.Base(name))
	if err != nil {
		return nil, err
	}
	root := NewNode(mesh.Name)
	root.Mesh = mesh
	return &Model{Name: path.Base(name), Roots: []*Node{root}}, nil
}

// Load parses STL from a reader. The whole stream is buffered to detect the format.
func (l *STLLoader) Load(r io.Reader, name string) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL data: %w", err)
	}
	return l.LoadBytes(data, name)
}

// LoadBytes parses STL from a byte slice.
func (l *STLLoader) LoadBytes(data []byte, name string) (*Mesh, error) {
	var (
		mesh *Mesh
		err  error
	)
	if isBinarySTL(data) {
		mesh, err = l.loadBinary(data, name)
	} else {
		mesh, err = l.loadASCII(data, name)
	}
	if err != nil {
		return nil, err
	}
	if l.Clean {
		mesh.CleanMesh()
	}
	if l.SmoothNormals {
		mesh.CalculateSmoothNormals()
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// isBinarySTL reports whether data is binary STL: an 80-byte header, a
// triangle count and 50 bytes per triangle. Binary files may still start with
// "solid", so for those the size has to match exactly.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return true
	}
	triCount := uint64(binary.LittleEndian.Uint32(data[80:84]))
	return uint64(len(data)) == 84+triCount*50
}

// vertexIndex deduplicates vertices by exact position.
type vertexIndex struct {
	mesh *Mesh
	seen map[math3d.Vec3]int
}

func newVertexIndex(m *Mesh) *vertexIndex {
	return &vertexIndex{mesh: m, seen: make(map[math3d.Vec3]int)}
}

func (vi *vertexIndex) add(pos, normal math3d.Vec3) int {
	if idx, ok := vi.seen[pos]; ok {
		return idx
	}
	idx := len(vi.mesh.Vertices)
	vi.mesh.Vertices = append(vi.mesh.Vertices, MeshVertex{Position: pos, Normal: normal})
	vi.seen[pos] = idx
	return idx
}

func (l *STLLoader) loadBinary(data []byte, name string) (*Mesh, error) {
	triCount := int(binary.LittleEndian.Uint32(data[80:84]))
	if want := 84 + triCount*50; len(data) < want {
		return nil, fmt.Errorf("binary STL truncated: expected %d bytes, got %d", want, len(data))
	}

	mesh := NewMesh(name)
	verts := newVertexIndex(mesh)
	readVec := func(o int) math3d.Vec3 {
		return math3d.V3(
			float64(readFloat32LE(data[o:])),
			float64(readFloat32LE(data[o+4:])),
			float64(readFloat32LE(data[o+8:])),
		)
	}

	for i := range triCount {
		o := 84 + i*50
		normal := readVec(o)
		var f Face
		for v := range 3 {
			f.V[v] = verts.add(readVec(o+12+v*12), normal)
		}
		mesh.Faces = append(mesh.Faces, f)
	}
	return mesh, nil
}

func (l *STLLoader) loadASCII(data []byte, name string) (*Mesh, error) {
	mesh := NewMesh(name)
	verts := newVertexIndex(mesh)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	var (
		normal        math3d.Vec3
		corners       []int
		inFacet, loop bool
	)

	parse3 := func(fields []string, what string) (math3d.Vec3, error) {
		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return math3d.Vec3{}, fmt.Errorf("line %d: invalid %s: %w", lineNum, what, err)
			}
			xyz[i] = v
		}
		return math3d.V3(xyz[0], xyz[1], xyz[2]), nil
	}

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}
		case "facet":
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				n, err := parse3(fields[2:5], "normal")
				if err != nil {
					return nil, err
				}
				normal = n.Normalize()
			}
			inFacet, corners = true, corners[:0]
		case "outer":
			loop = len(fields) >= 2 && strings.EqualFold(fields[1], "loop")
		case "vertex":
			if !inFacet || !loop {
				return nil, fmt.Errorf("line %d: vertex outside facet/loop", lineNum)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs x y z", lineNum)
			}
			p, err := parse3(fields[1:4], "vertex")
			if err != nil {
				return nil, err
			}
			corners = append(corners, verts.add(p, normal))
		case "endloop":
			loop = false
		case "endfacet":
			if len(corners) >= 3 {
				mesh.Faces = append(mesh.Faces, Face{V: [3]int{corners[0], corners[1], corners[2]}})
			}
			inFacet = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	return mesh, nil
}
