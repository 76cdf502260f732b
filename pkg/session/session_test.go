package session

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/rgbswitch/pkg/assets"
	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/manip"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

type fakeSurface struct {
	presenting bool
	added      []*scene.Node
	removed    []*scene.Node
	renders    int
	onEnd      []func()
}

func (f *fakeSurface) AddToScene(n *scene.Node)      { f.added = append(f.added, n) }
func (f *fakeSurface) RemoveFromScene(n *scene.Node) { f.removed = append(f.removed, n) }
func (f *fakeSurface) Render() error                 { f.renders++; return nil }
func (f *fakeSurface) IsPresenting() bool            { return f.presenting }
func (f *fakeSurface) OnSessionEnd(fn func())        { f.onEnd = append(f.onEnd, fn) }

func (f *fakeSurface) exit() {
	f.presenting = false
	for _, fn := range f.onEnd {
		fn()
	}
}

// orthoCamera casts rays straight down -Z from z=5 over a 4x4 world window.
type orthoCamera struct{}

func (orthoCamera) Ray(x, y float64) math3d.Ray {
	return math3d.NewRay(math3d.V3(2*x, 2*y, 5), math3d.V3(0, 0, -1))
}

const viewport = 200

// pixel maps a world XY point to viewport pixels for orthoCamera.
func pixel(x, y float64) (float64, float64) {
	return viewport / 2 * (x/2 + 1), viewport / 2 * (1 - y/2)
}

func click(s *Session, x, y float64) {
	px, py := pixel(x, y)
	s.HandleInput(input.PointerClick{X: px, Y: py})
}

func touch(x, y float64) input.Touch {
	px, py := pixel(x, y)
	return input.Touch{X: px, Y: py}
}

// Button centres sit at x = -0.85, 0, 0.85; y=0.1 keeps rays off the
// triangle diagonals. (0, 0.4) hits the plate outside every cap.
var buttonAt = []math3d.Vec2{math3d.V2(-0.85, 0.1), math3d.V2(0, 0.1), math3d.V2(0.85, 0.1)}

var plateAt = math3d.V2(0, 0.4)

func pressButton(s *Session, i int) {
	click(s, buttonAt[i].X, buttonAt[i].Y)
}

// aim returns a controller pose gripping at pos and pointing down at (x, y).
func aim(pos math3d.Vec3, x, y float64) input.Pose {
	ray := math3d.NewRay(math3d.V3(x, y, 5), math3d.V3(0, 0, -1))
	return input.Pose{Position: pos, Orientation: math3d.QuatIdentity(), TargetRay: &ray}
}

// away returns a controller pose at pos whose ray misses everything.
func away(pos math3d.Vec3) input.Pose {
	ray := math3d.NewRay(pos, math3d.V3(0, 1, 0))
	return input.Pose{Position: pos, Orientation: math3d.QuatIdentity(), TargetRay: &ray}
}

func newSession(t *testing.T, opts Options, reg *assets.Registry) (*Session, *fakeSurface) {
	t.Helper()
	surf := &fakeSurface{}
	s := New(surf, orthoCamera{}, opts)
	s.SetViewport(viewport, viewport)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Start(ctx, reg)
	require.NoError(t, s.WaitReady(ctx))
	return s, surf
}

func defaultSession(t *testing.T) (*Session, *fakeSurface) {
	t.Helper()
	return newSession(t, DefaultOptions(), assets.NewRegistry(nil))
}

func TestLoadAttachesBaseAndButtons(t *testing.T) {
	s, surf := defaultSession(t)
	require.NotNil(t, s.Base())
	require.Len(t, surf.added, 1)
	assert.Same(t, s.Base(), surf.added[0])
	assert.Equal(t, 4, s.Set().Len())
	assert.Empty(t, s.Errors())

	plate := s.Base().Find("plate")
	require.NotNil(t, plate)
	assert.Equal(t, scene.RGB(0xDDDDDD), plate.Color)

	for i, want := range []scene.Color{scene.RGB(0xff0000), scene.RGB(0x00ff00), scene.RGB(0x0000ff)} {
		b := s.Button([]string{"button01", "button02", "button03"}[i])
		require.NotNil(t, b)
		assert.Same(t, s.Base(), b.Node.Parent())
		assert.Equal(t, want, *b.Color)
		b.Node.Walk(func(n *scene.Node) bool {
			assert.Equal(t, want, n.Color, "node %s", n.Name)
			return true
		})
	}
	assert.Equal(t, s.Base().Transform(), s.Original())
}

func TestColorSubsets(t *testing.T) {
	tests := []struct {
		name    string
		pressed []int
		want    uint32
	}{
		{"none", nil, 0xDDDDDD},
		{"red", []int{0}, 0xff0000},
		{"green", []int{1}, 0x00ff00},
		{"blue", []int{2}, 0x0000ff},
		{"red+green", []int{0, 1}, 0xffff00},
		{"red+blue", []int{0, 2}, 0xff00ff},
		{"green+blue", []int{1, 2}, 0x00ffff},
		{"all", []int{0, 1, 2}, 0xffffff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := defaultSession(t)
			for _, i := range tt.pressed {
				pressButton(s, i)
			}
			assert.Equal(t, scene.RGB(tt.want), s.Color())
			assert.Equal(t, scene.RGB(tt.want), s.Base().Find("plate").Color)
			assert.Equal(t, scene.RGB(0xff0000), s.Button("button01").Node.Find("button01_cap").Color)
		})
	}
}

func TestColorOrderIndependent(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		s, _ := defaultSession(t)
		for _, i := range order[:2] {
			pressButton(s, i)
		}
		// Untoggle the first pressed and toggle the last: only the last two remain.
		pressButton(s, order[0])
		pressButton(s, order[2])
		first := s.Color()

		s2, _ := defaultSession(t)
		pressButton(s2, order[2])
		pressButton(s2, order[1])
		assert.Equal(t, s2.Color(), first, "order %v", order)
	}
}

func TestToggleRoundTrip(t *testing.T) {
	s, _ := defaultSession(t)
	b := s.Button("button01")
	start := b.Node.Position

	pressButton(s, 0)
	assert.True(t, b.Toggled)
	assert.InDelta(t, start.Z+0.2, b.Node.Position.Z, 1e-12)
	assert.Equal(t, start.X, b.Node.Position.X)

	pressButton(s, 0)
	assert.False(t, b.Toggled)
	assert.Equal(t, start, b.Node.Position)
	assert.Equal(t, scene.RGB(0xDDDDDD), s.Color())
}

func TestMissChangesNothing(t *testing.T) {
	s, _ := defaultSession(t)
	pressButton(s, 1)
	before := s.Color()

	click(s, -1.9, 1.9)
	assert.Equal(t, before, s.Color())
	assert.True(t, s.Button("button02").Toggled)
	assert.False(t, s.Button("button01").Toggled)

	click(s, plateAt.X, plateAt.Y)
	assert.Equal(t, before, s.Color(), "base hits do not toggle")
	assert.Equal(t, manip.Idle, s.Machine().State(), "mouse never grabs")
}

func TestTouchPicksOutsideImmersive(t *testing.T) {
	s, _ := defaultSession(t)
	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(buttonAt[2].X, buttonAt[2].Y)}})
	assert.True(t, s.Button("button03").Toggled)

	before := s.Base().Transform()
	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(-1, 0), touch(1, 0)}})
	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(-1.5, 0), touch(1.5, 0)}})
	assert.False(t, s.Gesture().Active())
	assert.Equal(t, before, s.Base().Transform())

	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(-1, 0), touch(0, 0), touch(1, 0)}})
	assert.Equal(t, before, s.Base().Transform())
}

func TestControllerSingleGrabFollows(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true

	s.HandleInput(input.SelectStart{Index: 1, Pose: aim(math3d.V3(0, 0, 2), -1.9, 1.9)})
	assert.Equal(t, manip.Idle, s.Machine().State(), "missing the base does not grab")

	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(0.5, 0, 2), plateAt.X, plateAt.Y)})
	require.Equal(t, manip.GrabbedSingle, s.Machine().State())

	require.NoError(t, s.Frame())
	assert.Equal(t, math3d.V3(0.5, 0, 2), s.Base().Position)

	s.SetPose(0, away(math3d.V3(1, 1, 1)))
	require.NoError(t, s.Frame())
	assert.Equal(t, math3d.V3(1, 1, 1), s.Base().Position)
	assert.Equal(t, math3d.One3(), s.Base().Scale, "single grab never scales")
	assert.Equal(t, 2, surf.renders)

	s.HandleInput(input.SelectEnd{Index: 0, Pose: away(math3d.V3(1, 1, 1))})
	assert.Equal(t, manip.Idle, s.Machine().State())
	s.SetPose(0, away(math3d.V3(3, 3, 3)))
	require.NoError(t, s.Frame())
	assert.Equal(t, math3d.V3(1, 1, 1), s.Base().Position, "released object stays put")
}

func TestControllerDualGrab(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true

	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(-1, 0, 2), plateAt.X, plateAt.Y)})
	// The second controller joins without hitting the base.
	s.HandleInput(input.SelectStart{Index: 1, Pose: away(math3d.V3(1, 0, 2))})
	require.Equal(t, manip.GrabbedDual, s.Machine().State())
	g := s.Machine().Grab()
	assert.InDelta(t, 2, g.InitialDistance, 1e-12)
	assert.Equal(t, math3d.One3(), g.InitialScale)

	s.SetPose(1, away(math3d.V3(3, 0, 2)))
	require.NoError(t, s.Frame())
	assert.True(t, s.Base().Position.ApproxEqual(math3d.V3(1, 0, 2), 1e-12))
	assert.True(t, s.Base().Scale.ApproxEqual(math3d.V3(2, 2, 2), 1e-12), "scale %v", s.Base().Scale)
	assert.InDelta(t, 0, s.Base().Rotation.Y, 1e-12)

	// Controller 1 moves behind controller 0 at the same distance.
	s.SetPose(1, away(math3d.V3(-1, 0, 0)))
	require.NoError(t, s.Frame())
	assert.InDelta(t, math.Pi/2, s.Base().Rotation.Y, 1e-12)
	assert.True(t, s.Base().Scale.ApproxEqual(math3d.V3(1, 1, 1), 1e-12), "scale %v", s.Base().Scale)

	// Releasing the second controller falls back to following the first.
	s.HandleInput(input.SelectEnd{Index: 1, Pose: away(math3d.V3(-1, 0, 0))})
	require.Equal(t, manip.GrabbedSingle, s.Machine().State())
	assert.Equal(t, []input.Source{input.Controller(0)}, s.Machine().Active())
	scale := s.Base().Scale
	s.SetPose(0, away(math3d.V3(0, 2, 0)))
	require.NoError(t, s.Frame())
	assert.Equal(t, math3d.V3(0, 2, 0), s.Base().Position)
	assert.Equal(t, scale, s.Base().Scale)
}

func TestSecondControllerTogglesButton(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true

	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(0, 0, 2), plateAt.X, plateAt.Y)})
	require.Equal(t, manip.GrabbedSingle, s.Machine().State())

	s.HandleInput(input.SelectStart{Index: 1, Pose: aim(math3d.V3(1, 0, 2), buttonAt[0].X, buttonAt[0].Y)})
	assert.Equal(t, manip.GrabbedSingle, s.Machine().State())
	assert.True(t, s.Button("button01").Toggled)
	assert.Equal(t, scene.RGB(0xff0000), s.Color())

	// Selecting again with a holder is ignored.
	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(0, 0, 2), plateAt.X, plateAt.Y)})
	assert.Equal(t, []input.Source{input.Controller(0)}, s.Machine().Active())
}

func TestEndImmersiveDuringDualGrab(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true
	original := s.Original()

	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(-1, 0, 2), plateAt.X, plateAt.Y)})
	s.HandleInput(input.SelectStart{Index: 1, Pose: away(math3d.V3(1, 0, 2))})
	s.SetPose(1, away(math3d.V3(2, 1, 0)))
	require.NoError(t, s.Frame())
	require.NotEqual(t, original, s.Base().Transform())

	surf.exit()
	assert.Equal(t, manip.Idle, s.Machine().State())
	assert.Equal(t, original, s.Base().Transform())

	require.NoError(t, s.Frame())
	assert.Equal(t, original, s.Base().Transform(), "no stale holder moves the object")

	s.HandleInput(input.SelectEnd{Index: 0, Pose: away(math3d.V3(0, 0, 0))})
	assert.Equal(t, manip.Idle, s.Machine().State())
}

func TestImmersiveGesture(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true
	original := s.Original()

	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(-0.5, 0), touch(0.5, 0)}})
	require.True(t, s.Gesture().Active())

	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(-1, 0), touch(1, 0)}})
	assert.True(t, s.Base().Scale.ApproxEqual(math3d.V3(2, 2, 2), 1e-9), "scale %v", s.Base().Scale)
	assert.InDelta(t, 0, s.Base().Rotation.Y, 1e-9)

	// Rotate the pair a quarter turn on screen.
	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(0, -1), touch(0, 1)}})
	assert.InDelta(t, math.Pi/2, math.Abs(s.Base().Rotation.Y), 1e-9)

	// A single touch mid-gesture does not pick.
	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(buttonAt[0].X, buttonAt[0].Y)}})
	assert.False(t, s.Button("button01").Toggled)

	surf.exit()
	assert.False(t, s.Gesture().Active())
	assert.Equal(t, original, s.Base().Transform())

	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(-1.5, 0), touch(1.5, 0)}})
	assert.Equal(t, original, s.Base().Transform(), "moves after the session ended are ignored")
}

func TestGestureEndFreezes(t *testing.T) {
	s, surf := defaultSession(t)
	surf.presenting = true
	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(-0.5, 0), touch(0.5, 0)}})
	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(-0.25, 0), touch(0.25, 0)}})
	s.HandleInput(input.TouchEnd{Touches: []input.Touch{touch(-0.25, 0)}})
	assert.False(t, s.Gesture().Active())
	frozen := s.Base().Transform()
	assert.InDelta(t, 0.5, frozen.Scale.X, 1e-9)

	s.HandleInput(input.TouchMove{Touches: []input.Touch{touch(-1, 0), touch(1, 0)}})
	assert.Equal(t, frozen, s.Base().Transform())
}

var errBroken = errors.New("broken asset")

func brokenRegistry() *assets.Registry {
	reg := assets.NewRegistry(nil)
	reg.Register("broken:", assets.SourceFunc(func(context.Context, string) (*scene.Node, error) {
		return nil, errBroken
	}))
	return reg
}

func TestFailedButtonIsAbsent(t *testing.T) {
	opts := DefaultOptions()
	opts.Buttons[1].Asset = "broken:button02"
	s, _ := newSession(t, opts, brokenRegistry())

	require.NotNil(t, s.Base())
	assert.Equal(t, 3, s.Set().Len())
	assert.Nil(t, s.Button("button02"))
	assert.Nil(t, s.ButtonAt(1))
	assert.Equal(t, "button03", s.ButtonAt(2).Name())
	require.Len(t, s.Errors(), 1)
	assert.ErrorIs(t, s.Errors()[0], errBroken)

	click(s, buttonAt[1].X, buttonAt[1].Y)
	assert.Equal(t, scene.RGB(0xDDDDDD), s.Color())

	pressButton(s, 0)
	pressButton(s, 2)
	assert.Equal(t, scene.RGB(0xff00ff), s.Color())
}

func TestFailedBaseIsInert(t *testing.T) {
	var calls atomic.Int32
	reg := brokenRegistry()
	reg.Register("count:", assets.SourceFunc(func(ctx context.Context, id string) (*scene.Node, error) {
		calls.Add(1)
		return assets.Builtin{}.Load(ctx, assets.BuiltinPrefix+strings.TrimPrefix(id, "count:"))
	}))
	opts := DefaultOptions()
	opts.BaseAsset = "broken:switch"
	for i := range opts.Buttons {
		opts.Buttons[i].Asset = "count:" + strings.TrimPrefix(opts.Buttons[i].Asset, assets.BuiltinPrefix)
	}
	s, surf := newSession(t, opts, reg)

	assert.Nil(t, s.Base())
	assert.Empty(t, surf.added)
	assert.Zero(t, s.Set().Len())
	assert.Zero(t, calls.Load(), "buttons are never requested without a base")
	require.Len(t, s.Errors(), 4)
	for _, err := range s.Errors()[1:] {
		assert.ErrorIs(t, err, assets.ErrDependencyFailed)
	}

	surf.presenting = true
	pressButton(s, 0)
	s.HandleInput(input.SelectStart{Index: 0, Pose: aim(math3d.V3(0, 0, 2), plateAt.X, plateAt.Y)})
	s.HandleInput(input.TouchStart{Touches: []input.Touch{touch(-0.5, 0), touch(0.5, 0)}})
	assert.Equal(t, manip.Idle, s.Machine().State())
	assert.False(t, s.Gesture().Active())
	assert.Equal(t, scene.RGB(0xDDDDDD), s.Color())
	require.NoError(t, s.Frame())
	surf.exit()
}

func TestButtonAtFollowsConfiguredOrder(t *testing.T) {
	release := make(chan struct{})
	reg := assets.NewRegistry(nil)
	reg.Register("slow:", assets.SourceFunc(func(ctx context.Context, id string) (*scene.Node, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return assets.Builtin{}.Load(ctx, assets.BuiltinPrefix+strings.TrimPrefix(id, "slow:"))
	}))
	opts := DefaultOptions()
	opts.Buttons[0].Asset = "slow:button01"

	s := New(&fakeSurface{}, orthoCamera{}, opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Start(ctx, reg)
	for s.Set().Len() < 3 {
		require.NoError(t, ctx.Err(), "buttons 2 and 3 never loaded")
		time.Sleep(time.Millisecond)
		s.Poll()
	}
	assert.Nil(t, s.ButtonAt(0), "first button still loading")
	close(release)
	require.NoError(t, s.WaitReady(ctx))

	assert.Equal(t, "button01", s.Set().Buttons()[2].Name(), "set order follows load completion")
	for i, name := range []string{"button01", "button02", "button03"} {
		b := s.ButtonAt(i)
		require.NotNil(t, b)
		assert.Equal(t, name, b.Name())
	}
	assert.Nil(t, s.ButtonAt(3))
	assert.Nil(t, s.ButtonAt(-1))
}

func TestWaitReadyRequiresStart(t *testing.T) {
	s := New(&fakeSurface{}, orthoCamera{}, DefaultOptions())
	assert.False(t, s.Ready())
	assert.Error(t, s.WaitReady(context.Background()))
	s.Poll()
	assert.Nil(t, s.Base())
}
