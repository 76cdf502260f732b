package main

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/render"
)

const (
	dragSensitivity = 0.03
	zoomStep        = 0.5
	minDistance     = 1.0
	maxDistance     = 20.0
	pitchLimit      = math.Pi/2 - 0.05
)

// OrbitAxis tracks one orbit angle. Drags add to Velocity; a critically
// damped spring brings Velocity back to zero.
type OrbitAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // internal spring velocity (for animating Velocity toward 0)
}

// NewOrbitAxis creates an axis resting at pos.
func NewOrbitAxis(fps int, pos float64) OrbitAxis {
	return OrbitAxis{
		Position:  pos,
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies velocity to position and decays velocity toward 0.
func (a *OrbitAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// Orbit is a spring-damped orbit camera around a fixed center. The zoom
// distance eases toward its target instead of jumping.
type Orbit struct {
	Yaw, Pitch OrbitAxis
	Distance   float64
	ZoomTarget float64

	center     math3d.Vec3
	home       [3]float64
	zoomSpring harmonica.Spring
	zoomVel    float64
	fps        int
}

// NewOrbit creates an orbit that starts at eye looking at center.
func NewOrbit(fps int, eye, center math3d.Vec3) *Orbit {
	off := eye.Sub(center)
	dist := off.Len()
	var yaw, pitch float64
	if dist > 0 {
		yaw = math.Atan2(off.X, off.Z)
		pitch = math.Asin(off.Y / dist)
	}
	o := &Orbit{
		center:     center,
		home:       [3]float64{yaw, pitch, dist},
		zoomSpring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
		fps:        fps,
	}
	o.Reset()
	return o
}

// Drag turns a pointer movement of dx, dy cells into angular impulses.
func (o *Orbit) Drag(dx, dy int) {
	o.Yaw.Velocity -= float64(dx) * dragSensitivity
	o.Pitch.Velocity += float64(dy) * dragSensitivity
}

// Zoom moves the target distance by steps (negative is closer).
func (o *Orbit) Zoom(steps float64) {
	o.ZoomTarget = math.Max(minDistance, math.Min(maxDistance, o.ZoomTarget+steps*zoomStep))
}

// Update advances the springs by one frame.
func (o *Orbit) Update() {
	o.Yaw.Update()
	o.Pitch.Update()
	if o.Pitch.Position > pitchLimit || o.Pitch.Position < -pitchLimit {
		o.Pitch.Position = math.Max(-pitchLimit, math.Min(pitchLimit, o.Pitch.Position))
		o.Pitch.Velocity = 0
	}
	o.Distance, o.zoomVel = o.zoomSpring.Update(o.Distance, o.zoomVel, o.ZoomTarget)
}

// Apply places cam on the orbit.
func (o *Orbit) Apply(cam *render.Camera) {
	cam.Orbit(o.center, o.Yaw.Position, o.Pitch.Position, o.Distance)
}

// Reset returns to the starting view.
func (o *Orbit) Reset() {
	o.Yaw = NewOrbitAxis(o.fps, o.home[0])
	o.Pitch = NewOrbitAxis(o.fps, o.home[1])
	o.Distance = o.home[2]
	o.ZoomTarget = o.home[2]
	o.zoomVel = 0
}
