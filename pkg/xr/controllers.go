package xr

import (
	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// DefaultReach is how far in front of the viewer an emulated grip sits.
const DefaultReach = 3.0

var forward = math3d.V3(0, 0, -1)

// PoseAlongRay returns a controller pose whose grip sits reach units along
// ray and whose -Z axis points along it.
func PoseAlongRay(ray math3d.Ray, reach float64) input.Pose {
	r := ray
	return input.Pose{
		Position:    ray.At(reach),
		Orientation: math3d.QuatBetween(forward, ray.Dir),
		TargetRay:   &r,
	}
}

// Emulator stands in for tracked controllers when only a pointer is
// available. Controller 0 follows the pointer; any controller can be pinned
// in place so two-handed grabs can be exercised.
type Emulator struct {
	Reach float64

	poses  [input.MaxControllers]input.Pose
	pinned [input.MaxControllers]bool
}

// NewEmulator returns an emulator with DefaultReach.
func NewEmulator() *Emulator {
	return &Emulator{Reach: DefaultReach}
}

// Point moves controller i along ray unless it is pinned, and returns its pose.
func (e *Emulator) Point(i int, ray math3d.Ray) input.Pose {
	if i < 0 || i >= input.MaxControllers {
		return input.Pose{}
	}
	if !e.pinned[i] {
		e.poses[i] = PoseAlongRay(ray, e.Reach)
	}
	return e.poses[i]
}

// Pose returns the last pose of controller i.
func (e *Emulator) Pose(i int) input.Pose {
	if i < 0 || i >= input.MaxControllers {
		return input.Pose{}
	}
	return e.poses[i]
}

// Pin freezes controller i at pose p.
func (e *Emulator) Pin(i int, p input.Pose) {
	if i < 0 || i >= input.MaxControllers {
		return
	}
	e.poses[i] = p
	e.pinned[i] = true
}

// Unpin lets controller i follow Point again.
func (e *Emulator) Unpin(i int) {
	if i >= 0 && i < input.MaxControllers {
		e.pinned[i] = false
	}
}

// Pinned reports whether controller i is pinned.
func (e *Emulator) Pinned(i int) bool {
	return i >= 0 && i < input.MaxControllers && e.pinned[i]
}

// Reset unpins every controller and clears poses.
func (e *Emulator) Reset() {
	e.poses = [input.MaxControllers]input.Pose{}
	e.pinned = [input.MaxControllers]bool{}
}
