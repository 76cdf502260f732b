package render

import (
	"math"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// Vertex represents a vertex with all attributes needed for rasterization.
type Vertex struct {
	Position math3d.Vec3 // World position
	Normal   math3d.Vec3 // World normal (for lighting)
	Color    Color
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// Viewport is the framebuffer rectangle NDC is mapped to.
type Viewport struct {
	X, Y, Width, Height int
}

// MeshRenderer is the mesh view the rasterizer draws from. *models.Mesh
// implements it.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3)
	GetFace(i int) [3]int
}

// RenderStats counts triangles for the HUD.
type RenderStats struct {
	Drawn  int // Triangles that reached the fill loop
	Culled int // Back-facing or behind the camera
}

// Rasterizer handles software triangle rasterization.
type Rasterizer struct {
	camera   *Camera
	fb       *Framebuffer
	zbuffer  []float64 // Depth buffer (1D array, row-major)
	viewport Viewport
	Stats    RenderStats
	// TwoSided draws back faces with flipped normals instead of culling them.
	TwoSided bool
}

// NewRasterizer creates a new rasterizer covering the whole framebuffer.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{camera: camera, fb: fb}
	r.Resize()
	return r
}

// Resize matches the depth buffer and viewport to the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		r.viewport = Viewport{}
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
	r.viewport = Viewport{Width: r.fb.Width, Height: r.fb.Height}
}

// SetCamera switches the camera used for projection.
func (r *Rasterizer) SetCamera(c *Camera) { r.camera = c }

// Camera returns the current camera.
func (r *Rasterizer) Camera() *Camera { return r.camera }

// SetViewport restricts drawing to vp, clipped to the framebuffer.
func (r *Rasterizer) SetViewport(vp Viewport) {
	if r.fb == nil {
		return
	}
	vp.X = max(0, min(vp.X, r.fb.Width))
	vp.Y = max(0, min(vp.Y, r.fb.Height))
	vp.Width = max(0, min(vp.Width, r.fb.Width-vp.X))
	vp.Height = max(0, min(vp.Height, r.fb.Height-vp.Y))
	r.viewport = vp
}

// Viewport returns the active viewport.
func (r *Rasterizer) Viewport() Viewport { return r.viewport }

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
	r.Stats = RenderStats{}
}

// Depth returns the stored depth at (x, y).
func (r *Rasterizer) Depth(x, y int) float64 {
	if r.fb == nil || x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.fb.Width+x]
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y  float64 // Screen coordinates
	Z     float64 // NDC depth
	Color Color
}

// project maps a world point into the viewport. ok is false behind the eye.
func (r *Rasterizer) project(viewProj math3d.Mat4, p math3d.Vec3) (x, y, z float64, ok bool) {
	clip := viewProj.MulVec4(math3d.V4FromV3(p, 1))
	if clip.W <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.PerspectiveDivide()
	vp := r.viewport
	x = float64(vp.X) + (ndc.X+1)*0.5*float64(vp.Width)
	y = float64(vp.Y) + (1-ndc.Y)*0.5*float64(vp.Height) // Y flipped
	return x, y, ndc.Z, true
}

// shade applies ambient plus diffuse lighting to a vertex colour.
func shade(c Color, normal, light math3d.Vec3) Color {
	intensity := math.Max(0, normal.Dot(light))
	return MultiplyColor(c, 0.3+0.7*intensity)
}

// DrawTriangleGouraud rasterizes a triangle with per-vertex lighting
// interpolated across it. Triangles with a vertex behind the camera are
// skipped rather than clipped.
func (r *Rasterizer) DrawTriangleGouraud(tri Triangle, lightDir math3d.Vec3) {
	if r.fb == nil || r.camera == nil {
		return
	}
	viewProj := r.camera.ViewProjectionMatrix()
	light := lightDir.Normalize()

	var sv [3]screenVertex
	for i := range 3 {
		x, y, z, ok := r.project(viewProj, tri.V[i].Position)
		if !ok {
			r.Stats.Culled++
			return
		}
		sv[i] = screenVertex{X: x, Y: y, Z: z}
	}

	// Counter-clockwise in NDC is clockwise on screen.
	edge1 := math3d.V2(sv[1].X-sv[0].X, sv[1].Y-sv[0].Y)
	edge2 := math3d.V2(sv[2].X-sv[0].X, sv[2].Y-sv[0].Y)
	cross := edge1.X*edge2.Y - edge1.Y*edge2.X
	if cross == 0 {
		return
	}
	flip := 1.0
	if cross > 0 {
		if !r.TwoSided {
			r.Stats.Culled++
			return
		}
		flip = -1
	}
	for i := range 3 {
		sv[i].Color = shade(tri.V[i].Color, tri.V[i].Normal.Scale(flip), light)
	}
	r.Stats.Drawn++

	vp := r.viewport
	minX := int(math.Max(float64(vp.X), math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(vp.X+vp.Width-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(float64(vp.Y), math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(vp.Y+vp.Height-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			bc := barycentric(
				sv[0].X, sv[0].Y,
				sv[1].X, sv[1].Y,
				sv[2].X, sv[2].Y,
				px, py,
			)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}
			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z < -1 || z > 1 {
				continue
			}
			i := y*r.fb.Width + x
			if z >= r.zbuffer[i] {
				continue
			}
			r.zbuffer[i] = z
			r.fb.Pixels[i] = interpolateColor3(sv[0].Color, sv[1].Color, sv[2].Color, bc)
		}
	}
}

// DrawMesh renders mesh with Gouraud shading. Vertices without a normal
// use the face normal.
func (r *Rasterizer) DrawMesh(mesh MeshRenderer, transform math3d.Mat4, color Color, lightDir math3d.Vec3) {
	for i := range mesh.TriangleCount() {
		face := mesh.GetFace(i)
		var tri Triangle
		for k := range 3 {
			p, n := mesh.GetVertex(face[k])
			tri.V[k] = Vertex{
				Position: transform.MulVec3(p),
				Normal:   transform.MulVec3Dir(n).Normalize(),
				Color:    color,
			}
		}
		faceNormal := tri.V[1].Position.Sub(tri.V[0].Position).
			Cross(tri.V[2].Position.Sub(tri.V[0].Position)).Normalize()
		for k := range 3 {
			if tri.V[k].Normal.LenSq() == 0 {
				tri.V[k].Normal = faceNormal
			}
		}
		r.DrawTriangleGouraud(tri, lightDir)
	}
}

// DrawMeshWireframe renders the edges of mesh.
func (r *Rasterizer) DrawMeshWireframe(mesh MeshRenderer, transform math3d.Mat4, color Color) {
	for i := range mesh.TriangleCount() {
		face := mesh.GetFace(i)
		p0, _ := mesh.GetVertex(face[0])
		p1, _ := mesh.GetVertex(face[1])
		p2, _ := mesh.GetVertex(face[2])
		v0, v1, v2 := transform.MulVec3(p0), transform.MulVec3(p1), transform.MulVec3(p2)
		r.drawLine3D(v0, v1, color)
		r.drawLine3D(v1, v2, color)
		r.drawLine3D(v2, v0, color)
	}
}

// drawLine3D draws a projected segment. Segments crossing behind the
// camera are dropped.
func (r *Rasterizer) drawLine3D(a, b math3d.Vec3, color Color) {
	if r.fb == nil || r.camera == nil {
		return
	}
	viewProj := r.camera.ViewProjectionMatrix()
	x0, y0, _, okA := r.project(viewProj, a)
	x1, y1, _, okB := r.project(viewProj, b)
	if !okA || !okB {
		return
	}
	r.fb.DrawLine(int(x0), int(y0), int(x1), int(y1), color)
}

// barycentric calculates barycentric coordinates for point (px, py) in triangle.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

// interpolateColor3 interpolates between 3 colors using barycentric coords.
func interpolateColor3(c0, c1, c2 Color, bc math3d.Vec3) Color {
	return RGB(
		clampChannel(float64(c0.R)*bc.X+float64(c1.R)*bc.Y+float64(c2.R)*bc.Z),
		clampChannel(float64(c0.G)*bc.X+float64(c1.G)*bc.Y+float64(c2.G)*bc.Z),
		clampChannel(float64(c0.B)*bc.X+float64(c1.B)*bc.Y+float64(c2.B)*bc.Z),
	)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
