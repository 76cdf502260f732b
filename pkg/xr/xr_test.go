package xr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

func TestPresenterLifecycle(t *testing.T) {
	var p Presenter
	var events []string
	p.OnSessionStart(func() { events = append(events, "start") })
	p.OnSessionEnd(func() { events = append(events, "end") })

	p.Exit() // no session: no callback
	assert.Empty(t, events)

	require.NoError(t, p.Enter())
	assert.True(t, p.IsPresenting())
	assert.ErrorIs(t, p.Enter(), ErrAlreadyPresenting)

	p.Exit()
	assert.False(t, p.IsPresenting())
	assert.True(t, p.Toggle())
	assert.False(t, p.Toggle())

	assert.Equal(t, []string{"start", "end", "start", "end"}, events)
	assert.Equal(t, 2, p.Sessions())
}

func TestPoseAlongRay(t *testing.T) {
	ray := math3d.NewRay(math3d.V3(0, 0, 5), math3d.V3(1, 0, -1))
	pose := PoseAlongRay(ray, 2)
	assert.True(t, pose.Position.ApproxEqual(ray.At(2), 1e-12))
	require.NotNil(t, pose.TargetRay)
	// The derived ray agrees with the explicit one.
	fromGrip := pose.Orientation.Rotate(math3d.V3(0, 0, -1))
	assert.True(t, fromGrip.ApproxEqual(ray.Dir, 1e-9), "got %v want %v", fromGrip, ray.Dir)
}

func TestEmulatorPinning(t *testing.T) {
	e := NewEmulator()
	a := math3d.NewRay(math3d.V3(0, 0, 5), math3d.V3(0, 0, -1))
	b := math3d.NewRay(math3d.V3(1, 0, 5), math3d.V3(0, 0, -1))

	p0 := e.Point(0, a)
	assert.Equal(t, math3d.V3(0, 0, 5-DefaultReach), p0.Position)

	e.Pin(1, p0)
	assert.True(t, e.Pinned(1))
	got := e.Point(1, b)
	assert.Equal(t, p0.Position, got.Position, "pinned controller must not follow")

	e.Unpin(1)
	got = e.Point(1, b)
	assert.Equal(t, math3d.V3(1, 0, 5-DefaultReach), got.Position)
	assert.Equal(t, got, e.Pose(1))

	e.Reset()
	assert.False(t, e.Pinned(1))
	assert.Equal(t, math3d.Vec3{}, e.Pose(0).Position)
	assert.Equal(t, math3d.Vec3{}, e.Point(7, a).Position)
}
