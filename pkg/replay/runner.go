package replay

import (
	"context"
	"fmt"
	"math"
	"slices"

	"fortio.org/log"

	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/session"
)

// Immersive starts and ends the immersive session. *render.Surface
// implements it through its embedded presenter.
type Immersive interface {
	Enter() error
	Exit()
}

// Runner applies scripts to a loaded session.
type Runner struct {
	Session   *session.Session
	Immersive Immersive
}

// NewRunner returns a runner over s.
func NewRunner(s *session.Session, imm Immersive) *Runner {
	return &Runner{Session: s, Immersive: imm}
}

// Run executes every step in order and stops at the first error.
func (r *Runner) Run(ctx context.Context, script *Script) error {
	if script.Viewport[0] > 0 && script.Viewport[1] > 0 {
		r.Session.SetViewport(float64(script.Viewport[0]), float64(script.Viewport[1]))
	}
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := r.step(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Kind(), err)
		}
	}
	log.Infof("Replay %q: %d steps passed", script.Name, len(script.Steps))
	return nil
}

func (r *Runner) step(step Step) error {
	s := r.Session
	switch step.Kind() {
	case "click":
		s.HandleInput(input.PointerClick{X: step.Click[0], Y: step.Click[1]})
	case "touch":
		touches := make([]input.Touch, len(step.Touch.Points))
		for i, p := range step.Touch.Points {
			touches[i] = input.Touch{ID: i, X: p[0], Y: p[1]}
		}
		switch step.Touch.Phase {
		case "start":
			s.HandleInput(input.TouchStart{Touches: touches})
		case "move":
			s.HandleInput(input.TouchMove{Touches: touches})
		case "end":
			s.HandleInput(input.TouchEnd{Touches: touches})
		}
	case "select":
		pose := step.Select.Pose.pose()
		if step.Select.Phase == "start" {
			s.HandleInput(input.SelectStart{Index: step.Select.Controller, Pose: pose})
		} else {
			s.HandleInput(input.SelectEnd{Index: step.Select.Controller, Pose: pose})
		}
	case "pose":
		s.SetPose(step.Pose.Controller, step.Pose.pose())
	case "frames":
		for range step.Frames {
			if err := s.Frame(); err != nil {
				return err
			}
		}
	case "immersive":
		if r.Immersive == nil {
			return fmt.Errorf("%w: no immersive surface", ErrBadStep)
		}
		if step.Immersive == "enter" {
			return r.Immersive.Enter()
		}
		r.Immersive.Exit()
	case "expect":
		return r.check(step.Expect)
	}
	return nil
}

var forward = math3d.V3(0, 0, -1)

func (p Pose) pose() input.Pose {
	pos := vec(p.Position)
	dir := forward
	if p.Aim != nil {
		dir = vec(*p.Aim).Sub(pos)
	}
	ray := math3d.NewRay(pos, dir)
	return input.Pose{
		Position:    pos,
		Orientation: math3d.QuatBetween(forward, ray.Dir),
		TargetRay:   &ray,
	}
}

func (r *Runner) check(e *Expect) error {
	s := r.Session
	tol := e.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	if e.Color != "" {
		want, err := scene.ParseColor(e.Color)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadStep, err)
		}
		if got := s.Color(); got != want {
			return fmt.Errorf("%w: color %s, want %s", ErrExpectation, got, want)
		}
	}
	if e.State != "" {
		if got := s.Machine().State().String(); got != e.State {
			return fmt.Errorf("%w: state %s, want %s", ErrExpectation, got, e.State)
		}
	}
	if e.Toggled != nil {
		var got []string
		for _, b := range s.Set().Buttons() {
			if b.Toggled {
				got = append(got, b.Name())
			}
		}
		want := slices.Clone(*e.Toggled)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fmt.Errorf("%w: toggled %v, want %v", ErrExpectation, got, want)
		}
	}
	if e.Position == nil && e.Scale == nil && e.Yaw == nil {
		return nil
	}
	base := s.Base()
	if base == nil {
		return fmt.Errorf("%w: no base object", ErrExpectation)
	}
	if e.Position != nil && !base.Position.ApproxEqual(vec(*e.Position), tol) {
		return fmt.Errorf("%w: position %v, want %v", ErrExpectation, base.Position, vec(*e.Position))
	}
	if e.Scale != nil && !base.Scale.ApproxEqual(vec(*e.Scale), tol) {
		return fmt.Errorf("%w: scale %v, want %v", ErrExpectation, base.Scale, vec(*e.Scale))
	}
	if e.Yaw != nil && math.Abs(base.Rotation.Y-*e.Yaw) > tol {
		return fmt.Errorf("%w: yaw %.6f, want %.6f", ErrExpectation, base.Rotation.Y, *e.Yaw)
	}
	return nil
}

func vec(a [3]float64) math3d.Vec3 {
	return math3d.V3(a[0], a[1], a[2])
}
