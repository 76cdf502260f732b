package render

import (
	"math"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// Camera is a perspective camera looking at a target point.
type Camera struct {
	position math3d.Vec3
	target   math3d.Vec3
	up       math3d.Vec3
	fov      float64 // vertical, radians
	aspect   float64
	near     float64
	far      float64
}

// NewCamera returns a camera at (0, 0, 5) looking at the origin.
func NewCamera() *Camera {
	return &Camera{
		position: math3d.V3(0, 0, 5),
		up:       math3d.V3(0, 1, 0),
		fov:      math.Pi / 3,
		aspect:   1,
		near:     0.1,
		far:      100,
	}
}

// SetAspectRatio sets width / height.
func (c *Camera) SetAspectRatio(aspect float64) {
	if aspect > 0 {
		c.aspect = aspect
	}
}

// SetFOV sets the vertical field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	if fov > 0 && fov < math.Pi {
		c.fov = fov
	}
}

// SetClipPlanes sets the near and far clip distances.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.near, c.far = near, far
}

// SetPosition moves the camera without changing its target.
func (c *Camera) SetPosition(p math3d.Vec3) {
	c.position = p
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target math3d.Vec3) {
	c.target = target
}

// Orbit places the camera distance units from target at the given yaw and
// pitch and looks at target. Pitch is clamped short of the poles.
func (c *Camera) Orbit(target math3d.Vec3, yaw, pitch, distance float64) {
	const limit = math.Pi/2 - 0.01
	pitch = math.Max(-limit, math.Min(limit, pitch))
	offset := math3d.V3(
		distance*math.Cos(pitch)*math.Sin(yaw),
		distance*math.Sin(pitch),
		distance*math.Cos(pitch)*math.Cos(yaw),
	)
	c.position = target.Add(offset)
	c.target = target
}

// Position returns the eye position.
func (c *Camera) Position() math3d.Vec3 { return c.position }

// Target returns the look-at point.
func (c *Camera) Target() math3d.Vec3 { return c.target }

// Aspect returns the aspect ratio.
func (c *Camera) Aspect() float64 { return c.aspect }

// FOV returns the vertical field of view in radians.
func (c *Camera) FOV() float64 { return c.fov }

// Right returns the camera's unit right vector.
func (c *Camera) Right() math3d.Vec3 {
	forward := c.target.Sub(c.position).Normalize()
	return forward.Cross(c.up).Normalize()
}

// Eye returns a copy shifted offset units along the right vector, keeping
// the view direction parallel. Used for stereo rendering.
func (c *Camera) Eye(offset float64) *Camera {
	eye := *c
	shift := c.Right().Scale(offset)
	eye.position = c.position.Add(shift)
	eye.target = c.target.Add(shift)
	return &eye
}

// ViewMatrix returns the world-to-view transform.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	return math3d.LookAt(c.position, c.target, c.up)
}

// ProjectionMatrix returns the perspective projection.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	return math3d.Perspective(c.fov, c.aspect, c.near, c.far)
}

// ViewProjectionMatrix returns projection * view.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// Ray returns the world-space ray through normalized device coordinates
// (ndcX, ndcY), both in [-1, 1] with +Y up. The ray starts on the near plane.
func (c *Camera) Ray(ndcX, ndcY float64) math3d.Ray {
	inv := c.ViewProjectionMatrix().Inverse()
	near := inv.MulVec4(math3d.V4(ndcX, ndcY, -1, 1)).PerspectiveDivide()
	far := inv.MulVec4(math3d.V4(ndcX, ndcY, 1, 1)).PerspectiveDivide()
	return math3d.NewRay(near, far.Sub(near))
}
