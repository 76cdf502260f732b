package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// ErrExternalBuffer is returned for glTF buffers that reference files by URI
// and were not resolved by the decoder.
var ErrExternalBuffer = errors.New("gltf: external buffer data not loaded")

// ErrMalformed is returned for documents whose accessors, buffer views or
// buffers reference data that does not exist.
var ErrMalformed = errors.New("gltf: malformed document")

// GLTFLoader loads glTF/GLB documents into a node hierarchy, one models.Node
// per glTF node, so that individual parts keep their own transforms.
type GLTFLoader struct {
	// Options
	CalculateNormals bool // Generate normals for primitives that lack them
	SmoothNormals    bool // Average generated normals per vertex
}

// NewGLTFLoader creates a new glTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    false,
	}
}

// LoadFS opens name inside fsys and decodes it. Relative buffer URIs of
// .gltf files are resolved against the same filesystem.
func (l *GLTFLoader) LoadFS(fsys fs.FS, name string) (*Model, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	defer f.Close()
	sub, err := fs.Sub(fsys, path.Dir(name))
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(f, sub).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf %s: %w", name, err)
	}
	return l.Convert(doc, path.Base(name))
}

// Load decodes a self-contained document (GLB or .gltf with data URIs).
func (l *GLTFLoader) Load(r io.Reader, name string) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf %s: %w", name, err)
	}
	return l.Convert(doc, name)
}

// Convert builds a Model from an already decoded document. Only the default
// scene is converted; documents without scenes use every parentless node.
func (l *GLTFLoader) Convert(doc *gltf.Document, name string) (*Model, error) {
	model := &Model{Name: name}
	meshes := make(map[int]*Mesh)
	for _, idx := range rootNodes(doc) {
		n, err := l.convertNode(doc, idx, meshes, 0)
		if err != nil {
			return nil, err
		}
		model.Roots = append(model.Roots, n)
	}
	return model, nil
}

func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		sceneIdx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			sceneIdx = *doc.Scene
		}
		if doc.Scenes[sceneIdx] == nil {
			return nil
		}
		return doc.Scenes[sceneIdx].Nodes
	}
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// maxNodeDepth bounds recursion on malformed documents with cycles.
const maxNodeDepth = 64

func (l *GLTFLoader) convertNode(doc *gltf.Document, idx int, meshes map[int]*Mesh, depth int) (*Node, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, fmt.Errorf("gltf node %d out of range", idx)
	}
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("gltf node hierarchy deeper than %d", maxNodeDepth)
	}
	src := doc.Nodes[idx]
	if src == nil {
		return nil, fmt.Errorf("%w: node %d is null", ErrMalformed, idx)
	}
	node := NewNode(src.Name)
	node.Translation, node.Rotation, node.Scale = nodeTransform(src)

	if src.Mesh != nil {
		mi := *src.Mesh
		mesh, ok := meshes[mi]
		if !ok {
			if mi < 0 || mi >= len(doc.Meshes) || doc.Meshes[mi] == nil {
				return nil, fmt.Errorf("gltf mesh %d out of range", mi)
			}
			var err error
			mesh, err = l.convertMesh(doc, doc.Meshes[mi])
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", doc.Meshes[mi].Name, err)
			}
			meshes[mi] = mesh
		}
		// Instances share vertex data; nothing mutates meshes after load.
		node.Mesh = mesh
	}

	for _, c := range src.Children {
		child, err := l.convertNode(doc, c, meshes, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// nodeTransform returns translation, Euler rotation and scale. A non-identity
// matrix takes precedence over TRS and is decomposed.
func nodeTransform(n *gltf.Node) (t, r, s math3d.Vec3) {
	if n.Matrix != identityMatrix && n.Matrix != [16]float64{} {
		return decompose(math3d.Mat4FromSlice(n.Matrix[:]))
	}
	t = math3d.V3(n.Translation[0], n.Translation[1], n.Translation[2])
	q := math3d.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
	r = q.Euler()
	s = math3d.V3(n.Scale[0], n.Scale[1], n.Scale[2])
	if s == math3d.Zero3() {
		s = math3d.One3()
	}
	return t, r, s
}

// decompose splits an affine matrix without shear into TRS parts.
func decompose(m math3d.Mat4) (t, r, s math3d.Vec3) {
	t = m.Translation()
	col := func(c int) math3d.Vec3 { return math3d.V3(m.At(0, c), m.At(1, c), m.At(2, c)) }
	s = math3d.V3(col(0).Len(), col(1).Len(), col(2).Len())
	rot := math3d.Identity()
	for c, sc := range [3]float64{s.X, s.Y, s.Z} {
		if sc == 0 {
			continue
		}
		for row := range 3 {
			rot[row*4+c] = m.At(row, c) / sc
		}
	}
	return t, math3d.EulerFromMat4(rot), s
}

func (l *GLTFLoader) convertMesh(doc *gltf.Document, src *gltf.Mesh) (*Mesh, error) {
	mesh := NewMesh(src.Name)
	generated := false
	for _, prim := range src.Primitives {
		if prim == nil || (prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0) {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := readVec3Accessor(doc, posIdx)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}
		var normals []math3d.Vec3
		if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, err = readVec3Accessor(doc, normIdx); err != nil {
				return nil, fmt.Errorf("read normals: %w", err)
			}
		}
		if len(normals) < len(positions) {
			generated = true
		}

		base := len(mesh.Vertices)
		for i, p := range positions {
			v := MeshVertex{Position: p}
			if i < len(normals) {
				v.Normal = normals[i]
			}
			mesh.Vertices = append(mesh.Vertices, v)
		}

		var indices []int
		if prim.Indices != nil {
			if indices, err = readIndices(doc, *prim.Indices); err != nil {
				return nil, fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]int, len(positions))
			for i := range indices {
				indices[i] = i
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			f := Face{V: [3]int{base + indices[i], base + indices[i+1], base + indices[i+2]}}
			if f.V[0] >= len(mesh.Vertices) || f.V[1] >= len(mesh.Vertices) || f.V[2] >= len(mesh.Vertices) {
				return nil, fmt.Errorf("index out of range in primitive")
			}
			mesh.Faces = append(mesh.Faces, f)
		}
	}

	if l.CalculateNormals && generated {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()
	return mesh, nil
}

func accessorBytes(doc *gltf.Document, accessorIdx int) (*gltf.Accessor, []byte, int, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, nil, 0, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	acc := doc.Accessors[accessorIdx]
	if acc == nil {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d is null", ErrMalformed, accessorIdx)
	}
	if acc.BufferView == nil {
		return nil, nil, 0, fmt.Errorf("accessor %d has no buffer view", accessorIdx)
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d count %d offset %d", ErrMalformed, accessorIdx, acc.Count, acc.ByteOffset)
	}
	if v := *acc.BufferView; v < 0 || v >= len(doc.BufferViews) || doc.BufferViews[v] == nil {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d buffer view %d out of range", ErrMalformed, accessorIdx, v)
	}
	bv := doc.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) || doc.Buffers[bv.Buffer] == nil {
		return nil, nil, 0, fmt.Errorf("%w: buffer %d out of range", ErrMalformed, bv.Buffer)
	}
	if bv.ByteOffset < 0 || bv.ByteStride < 0 {
		return nil, nil, 0, fmt.Errorf("%w: buffer view %d offset %d stride %d", ErrMalformed, *acc.BufferView, bv.ByteOffset, bv.ByteStride)
	}
	buf := doc.Buffers[bv.Buffer]
	if buf.Data == nil {
		if buf.URI != "" {
			return nil, nil, 0, fmt.Errorf("%w: %s", ErrExternalBuffer, buf.URI)
		}
		return nil, nil, 0, fmt.Errorf("buffer %d has no data", bv.Buffer)
	}
	start := bv.ByteOffset + acc.ByteOffset
	if start > len(buf.Data) {
		return nil, nil, 0, fmt.Errorf("accessor %d starts past buffer end", accessorIdx)
	}
	return acc, buf.Data[start:], bv.ByteStride, nil
}

// readVec3Accessor reads float VEC3 data.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	acc, data, stride, err := accessorBytes(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorVec3 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("expected float VEC3, got %v/%v", acc.Type, acc.ComponentType)
	}
	if stride == 0 {
		stride = 12
	}
	if acc.Count > 0 && (acc.Count-1)*stride+12 > len(data) {
		return nil, fmt.Errorf("accessor %d truncated", accessorIdx)
	}
	out := make([]math3d.Vec3, acc.Count)
	for i := range out {
		o := i * stride
		out[i] = math3d.V3(
			float64(readFloat32LE(data[o:])),
			float64(readFloat32LE(data[o+4:])),
			float64(readFloat32LE(data[o+8:])),
		)
	}
	return out, nil
}

// readIndices reads an unsigned SCALAR index accessor.
func readIndices(doc *gltf.Document, accessorIdx int) ([]int, error) {
	acc, data, stride, err := accessorBytes(doc, accessorIdx)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR indices, got %v", acc.Type)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("unsupported index component type %v", acc.ComponentType)
	}
	if stride == 0 {
		stride = size
	}
	if acc.Count > 0 && (acc.Count-1)*stride+size > len(data) {
		return nil, fmt.Errorf("accessor %d truncated", accessorIdx)
	}
	out := make([]int, acc.Count)
	for i := range out {
		o := i * stride
		switch size {
		case 1:
			out[i] = int(data[o])
		case 2:
			out[i] = int(binary.LittleEndian.Uint16(data[o:]))
		default:
			out[i] = int(binary.LittleEndian.Uint32(data[o:]))
		}
	}
	return out, nil
}

// readFloat32LE reads a little-endian float32 from a byte slice.
func readFloat32LE(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}
