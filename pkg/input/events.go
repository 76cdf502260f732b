// Package input classifies raw pointer, touch and controller events into
// picking rays and two-point gestures.
package input

import (
	"fmt"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// SourceKind identifies the device family of an input source.
type SourceKind int

const (
	SourceMouse SourceKind = iota
	SourceTouch
	SourceController
)

func (k SourceKind) String() string {
	switch k {
	case SourceMouse:
		return "mouse"
	case SourceTouch:
		return "touch"
	case SourceController:
		return "controller"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source is one input device. Index distinguishes controllers 0 and 1.
type Source struct {
	Kind  SourceKind
	Index int
}

// Controller returns the source for controller i.
func Controller(i int) Source { return Source{Kind: SourceController, Index: i} }

func (s Source) String() string {
	if s.Kind == SourceController {
		return fmt.Sprintf("controller%d", s.Index)
	}
	return s.Kind.String()
}

// Event is a raw device event.
type Event interface{ rawEvent() }

// PointerClick is a mouse click at viewport pixel coordinates.
type PointerClick struct{ X, Y float64 }

// Touch is one active touch point in viewport pixels.
type Touch struct {
	ID   int
	X, Y float64
}

// Pos returns the touch position as a vector.
func (t Touch) Pos() math3d.Vec2 { return math3d.V2(t.X, t.Y) }

// TouchStart, TouchMove and TouchEnd carry the touches active after the change.
type (
	TouchStart struct{ Touches []Touch }
	TouchMove  struct{ Touches []Touch }
	TouchEnd   struct{ Touches []Touch }
)

// Pose is a tracked controller transform in world space. TargetRay, when
// set, is the pointing ray reported by the runtime.
type Pose struct {
	Position    math3d.Vec3
	Orientation math3d.Quat
	TargetRay   *math3d.Ray
}

// Ray returns the controller's pointing ray: the target ray if present,
// otherwise the grip position looking down the orientation's -Z axis.
func (p Pose) Ray() math3d.Ray {
	if p.TargetRay != nil {
		return math3d.NewRay(p.TargetRay.Origin, p.TargetRay.Dir)
	}
	q := p.Orientation
	if q == (math3d.Quat{}) {
		q = math3d.QuatIdentity()
	}
	return math3d.NewRay(p.Position, q.Normalize().Rotate(math3d.V3(0, 0, -1)))
}

// SelectStart and SelectEnd are controller trigger press and release.
type (
	SelectStart struct {
		Index int
		Pose  Pose
	}
	SelectEnd struct {
		Index int
		Pose  Pose
	}
)

func (PointerClick) rawEvent() {}
func (TouchStart) rawEvent()   {}
func (TouchMove) rawEvent()    {}
func (TouchEnd) rawEvent()     {}
func (SelectStart) rawEvent()  {}
func (SelectEnd) rawEvent()    {}

// Action is a classified event.
type Action interface{ action() }

// PointEvent requests a pick along Ray.
type PointEvent struct {
	Source Source
	Ray    math3d.Ray
}

// GestureStart and GestureMove carry the two touch points in viewport pixels.
type (
	GestureStart struct{ A, B math3d.Vec2 }
	GestureMove  struct{ A, B math3d.Vec2 }
	GestureEnd   struct{}
)

// ReleaseEvent reports that a controller let go of its trigger.
type ReleaseEvent struct{ Source Source }

func (PointEvent) action()   {}
func (GestureStart) action() {}
func (GestureMove) action()  {}
func (GestureEnd) action()   {}
func (ReleaseEvent) action() {}
