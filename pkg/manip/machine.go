// Package manip implements the grab state machine driven by tracked
// controllers and the two-finger touch gesture.
package manip

import (
	"fmt"
	"slices"

	"fortio.org/log"

	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

// State is the manipulation state.
type State int

const (
	Idle State = iota
	GrabbedSingle
	GrabbedDual
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GrabbedSingle:
		return "grabbed-single"
	case GrabbedDual:
		return "grabbed-dual"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// GrabState is the transient record of the controllers holding the object.
// InitialDistance and InitialScale are only meaningful with two sources.
type GrabState struct {
	Sources         []input.Source
	InitialDistance float64
	InitialScale    math3d.Vec3
}

// Machine tracks which controllers hold the target and applies their poses
// to it every frame.
type Machine struct {
	// Target returns the manipulated node, or nil while it is not loaded.
	Target func() *scene.Node

	poses [input.MaxControllers]input.Pose
	known [input.MaxControllers]bool
	grab  GrabState
}

// NewMachine returns an idle machine.
func NewMachine(target func() *scene.Node) *Machine {
	return &Machine{Target: target}
}

func (m *Machine) target() *scene.Node {
	if m.Target == nil {
		return nil
	}
	return m.Target()
}

// State returns the current state, derived from the number of holders.
func (m *Machine) State() State {
	switch len(m.grab.Sources) {
	case 0:
		return Idle
	case 1:
		return GrabbedSingle
	default:
		return GrabbedDual
	}
}

// Grab returns a copy of the grab state.
func (m *Machine) Grab() GrabState {
	g := m.grab
	g.Sources = slices.Clone(m.grab.Sources)
	return g
}

// Active returns the controllers currently holding the target, in grab order.
func (m *Machine) Active() []input.Source {
	return slices.Clone(m.grab.Sources)
}

// Holding reports whether src holds the target.
func (m *Machine) Holding(src input.Source) bool {
	return slices.Contains(m.grab.Sources, src)
}

// SetPose records the latest pose of controller i.
func (m *Machine) SetPose(i int, p input.Pose) {
	if i < 0 || i >= input.MaxControllers {
		return
	}
	m.poses[i] = p
	m.known[i] = true
}

// Pose returns the latest pose of controller i.
func (m *Machine) Pose(i int) (input.Pose, bool) {
	if i < 0 || i >= input.MaxControllers {
		return input.Pose{}, false
	}
	return m.poses[i], m.known[i]
}

func (m *Machine) position(src input.Source) math3d.Vec3 {
	return m.poses[src.Index].Position
}

// Start adds src as a holder. It reports false when src is not a
// controller, already holds, two controllers already hold, or there is no
// target. Joining as the second holder snapshots the controller distance
// and the target's scale.
func (m *Machine) Start(src input.Source) bool {
	t := m.target()
	switch {
	case t == nil, src.Kind != input.SourceController, src.Index < 0, src.Index >= input.MaxControllers:
		return false
	case m.Holding(src), len(m.grab.Sources) >= 2:
		return false
	}
	m.grab.Sources = append(m.grab.Sources, src)
	if len(m.grab.Sources) == 2 {
		a, b := m.grab.Sources[0], m.grab.Sources[1]
		m.grab.InitialDistance = m.position(a).Distance(m.position(b))
		m.grab.InitialScale = t.Scale
	}
	log.LogVf("Grab start by %s: %s", src, m.State())
	return true
}

// End removes src as a holder and reports whether it was holding.
func (m *Machine) End(src input.Source) bool {
	i := slices.Index(m.grab.Sources, src)
	if i < 0 {
		return false
	}
	m.grab.Sources = slices.Delete(m.grab.Sources, i, i+1)
	if len(m.grab.Sources) < 2 {
		m.grab.InitialDistance = 0
		m.grab.InitialScale = math3d.Vec3{}
	}
	log.LogVf("Grab end by %s: %s", src, m.State())
	return true
}

// Update applies the holders' current poses to the target. Call once per frame.
func (m *Machine) Update() {
	t := m.target()
	if t == nil {
		return
	}
	active := m.grab.Sources
	switch len(active) {
	case 1:
		t.Position = m.position(active[0])
	case 2:
		a, b := m.position(active[0]), m.position(active[1])
		t.Position = a.Midpoint(b)
		if m.grab.InitialDistance > 0 {
			t.Scale = m.grab.InitialScale.Scale(a.Distance(b) / m.grab.InitialDistance)
		}
		t.Rotation.Y = math3d.YawOf(b.Sub(a))
	}
}

// Reset drops every holder without touching the target.
func (m *Machine) Reset() {
	m.grab = GrabState{}
}
