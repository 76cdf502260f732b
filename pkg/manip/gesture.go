package manip

import (
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

// Gesture scales and yaws a node from two touch points. Every move is
// computed against the snapshot taken at Start, so intermediate samples
// never accumulate.
type Gesture struct {
	active bool

	initialDistance float64
	initialAngle    float64
	initialScale    math3d.Vec3
	initialYaw      float64
}

// Active reports whether a gesture is in progress.
func (g *Gesture) Active() bool { return g.active }

// Start snapshots the touch pair and the target's scale and yaw.
func (g *Gesture) Start(target *scene.Node, a, b math3d.Vec2) {
	if target == nil {
		return
	}
	g.active = true
	g.initialDistance = a.Distance(b)
	g.initialAngle = a.AngleTo(b)
	g.initialScale = target.Scale
	g.initialYaw = target.Rotation.Y
}

// Move applies scale = s0 * d/d0 and yaw = yaw0 + (angle - angle0). A zero
// starting distance leaves the scale untouched.
func (g *Gesture) Move(target *scene.Node, a, b math3d.Vec2) {
	if !g.active || target == nil {
		return
	}
	if g.initialDistance > 0 {
		target.Scale = g.initialScale.Scale(a.Distance(b) / g.initialDistance)
	}
	target.Rotation.Y = g.initialYaw + (a.AngleTo(b) - g.initialAngle)
}

// End freezes the target at its last computed transform.
func (g *Gesture) End() {
	*g = Gesture{}
}
