package render

import (
	"image"

	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/xr"
)

// DefaultIPD is the eye separation used for stereo rendering, in world units.
const DefaultIPD = 0.064

// Surface draws a scene graph into a framebuffer. While an immersive
// session is active it renders side-by-side stereo, one eye per half.
type Surface struct {
	xr.Presenter

	Camera     *Camera
	Root       *scene.Node
	Background Color
	LightDir   math3d.Vec3
	IPD        float64
	Wireframe  bool

	fb     *Framebuffer
	raster *Rasterizer
	frames int
}

// NewSurface creates a surface of width by height pixels viewed through cam.
func NewSurface(width, height int, cam *Camera) *Surface {
	fb := NewFramebuffer(width, height)
	s := &Surface{
		Camera:     cam,
		Root:       scene.New("scene"),
		Background: RGB(30, 30, 40),
		LightDir:   math3d.V3(0.5, 1, 0.8).Normalize(),
		IPD:        DefaultIPD,
		fb:         fb,
		raster:     NewRasterizer(cam, fb),
	}
	s.syncAspect()
	return s
}

// AddToScene attaches n to the scene root.
func (s *Surface) AddToScene(n *scene.Node) { s.Root.Add(n) }

// RemoveFromScene detaches n from the scene root.
func (s *Surface) RemoveFromScene(n *scene.Node) { s.Root.Remove(n) }

// Resize reallocates the framebuffer and updates the camera aspect.
func (s *Surface) Resize(width, height int) {
	s.fb.Resize(width, height)
	s.raster.Resize()
	s.syncAspect()
}

func (s *Surface) syncAspect() {
	if s.fb.Height > 0 {
		s.Camera.SetAspectRatio(float64(s.fb.Width) / float64(s.fb.Height))
	}
}

// Framebuffer returns the render target.
func (s *Surface) Framebuffer() *Framebuffer { return s.fb }

// Image returns a copy of the last frame.
func (s *Surface) Image() *image.RGBA { return s.fb.ToImage() }

// Frames returns the number of frames rendered.
func (s *Surface) Frames() int { return s.frames }

// Stats returns the triangle counts of the last frame.
func (s *Surface) Stats() RenderStats { return s.raster.Stats }

// Render draws one frame.
func (s *Surface) Render() error {
	s.fb.Clear(s.Background)
	s.raster.ClearDepth()
	w, h := s.fb.Width, s.fb.Height
	if s.IsPresenting() && w >= 2 {
		half := w / 2
		for i, offset := range []float64{-s.IPD / 2, s.IPD / 2} {
			eye := s.Camera.Eye(offset)
			eye.SetAspectRatio(float64(half) / float64(max(h, 1)))
			s.drawView(eye, Viewport{X: i * half, Width: half, Height: h})
		}
	} else {
		s.drawView(s.Camera, Viewport{Width: w, Height: h})
	}
	s.frames++
	return nil
}

func (s *Surface) drawView(cam *Camera, vp Viewport) {
	s.raster.SetCamera(cam)
	s.raster.SetViewport(vp)
	s.Root.WalkWorld(func(n *scene.Node, world math3d.Mat4) {
		if n.Mesh == nil {
			return
		}
		if s.Wireframe {
			s.raster.DrawMeshWireframe(n.Mesh, world, FromScene(n.Color))
			return
		}
		s.raster.DrawMesh(n.Mesh, world, FromScene(n.Color), s.LightDir)
	})
	s.raster.SetCamera(s.Camera)
}
