package main

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/rgbswitch/pkg/assets"
	"github.com/taigrr/rgbswitch/pkg/config"
	"github.com/taigrr/rgbswitch/pkg/manip"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/render"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/xr"
)

func TestOrbitStartsAtEye(t *testing.T) {
	o := NewOrbit(30, math3d.V3(0, 0, 5), math3d.Zero3())
	assert.InDelta(t, 0, o.Yaw.Position, 1e-9)
	assert.InDelta(t, 0, o.Pitch.Position, 1e-9)
	assert.InDelta(t, 5, o.Distance, 1e-9)

	cam := render.NewCamera()
	o.Apply(cam)
	assert.True(t, cam.Position().ApproxEqual(math3d.V3(0, 0, 5), 1e-9), "got %v", cam.Position())
}

func TestOrbitDragDecays(t *testing.T) {
	o := NewOrbit(30, math3d.V3(0, 0, 5), math3d.Zero3())
	o.Drag(10, 0)
	require.Less(t, o.Yaw.Velocity, 0.0)
	for range 300 {
		o.Update()
	}
	assert.InDelta(t, 0, o.Yaw.Velocity, 1e-3)
	assert.Less(t, o.Yaw.Position, 0.0)
}

func TestOrbitPitchClamped(t *testing.T) {
	o := NewOrbit(30, math3d.V3(0, 0, 5), math3d.Zero3())
	o.Drag(0, 1000)
	for range 10 {
		o.Update()
	}
	assert.LessOrEqual(t, math.Abs(o.Pitch.Position), pitchLimit)
}

func TestOrbitZoom(t *testing.T) {
	o := NewOrbit(30, math3d.V3(0, 0, 5), math3d.Zero3())
	o.Zoom(-100)
	assert.Equal(t, minDistance, o.ZoomTarget)
	for range 300 {
		o.Update()
	}
	assert.InDelta(t, minDistance, o.Distance, 1e-2)

	o.Zoom(100)
	assert.Equal(t, maxDistance, o.ZoomTarget)

	o.Reset()
	assert.InDelta(t, 5, o.Distance, 1e-9)
	assert.InDelta(t, 5, o.ZoomTarget, 1e-9)
}

// newTestViewer builds a viewer over an 80x20 cell buffer with the default
// switch loaded.
func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	cfg := config.Default()
	var out bytes.Buffer
	tr := render.NewTerminalRenderer(&out, 80, 20)
	w, h := tr.FramebufferSize()
	a, err := newApp(context.Background(), cfg, w, h)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.waitReady(ctx))
	v := &viewer{
		cfg:    cfg,
		tr:     tr,
		app:    a,
		cam:    a.surface.Camera,
		orbit:  NewOrbit(cfg.Viewer.FPS, a.surface.Camera.Position(), a.surface.Camera.Target()),
		emu:    xr.NewEmulator(),
		hud:    NewHUD(),
		state:  ViewState{Started: true, ShowHUD: true},
		width:  80,
		height: 20,
	}
	a.surface.OnSessionEnd(v.endImmersive)
	return v
}

// findCell returns a cell whose pointer ray hits a pickable accepted by want.
func findCell(t *testing.T, v *viewer, want func(button bool) bool) (int, int) {
	t.Helper()
	for row := range v.height {
		for col := range v.width {
			x, y := v.tr.CellToPixel(col, row)
			p, _, ok := v.app.session.Resolve(v.pointerRay(x, y))
			if ok && want(p.IsButton()) {
				return col, row
			}
		}
	}
	t.Fatal("no matching cell")
	return 0, 0
}

func isButton(b bool) bool { return b }
func isBase(b bool) bool   { return !b }

func TestViewerClickTogglesButton(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session
	before := s.Color()

	col, row := findCell(t, v, isButton)
	v.press(col, row)
	v.release(col, row)

	assert.NotEqual(t, before, s.Color())
	var toggled int
	for _, b := range s.Set().Buttons() {
		if b.Toggled {
			toggled++
		}
	}
	assert.Equal(t, 1, toggled)
}

func TestViewerDragOrbitsWithoutClick(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session
	before := s.Color()

	col, row := findCell(t, v, isButton)
	v.press(col, row)
	v.motion(col+5, row)
	v.release(col+5, row)

	assert.Equal(t, before, s.Color())
	assert.NotZero(t, v.orbit.Yaw.Velocity)
}

func TestViewerToggleButtonByIndex(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session
	v.toggleButton(0)
	v.toggleButton(1)
	v.toggleButton(2)
	assert.Equal(t, scene.RGB(0xffffff), s.Color())
	v.toggleButton(7)
	assert.Equal(t, scene.RGB(0xffffff), s.Color())

	v.toggleButton(1)
	assert.Equal(t, scene.RGB(0xff00ff), s.Color(), "2 turns off the second configured button")
	assert.False(t, s.ButtonAt(1).Toggled)
}

func TestViewerReleaseAfterExitIsNotClick(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session
	before := s.Color()
	require.NoError(t, v.app.surface.Enter())

	col, row := findCell(t, v, isButton)
	v.press(col, row)
	assert.NotEqual(t, before, s.Color(), "immersive press toggles")
	pressed := s.Color()

	v.app.surface.Exit()
	v.release(col, row)
	assert.Equal(t, pressed, s.Color())
	assert.False(t, v.mouseDown)
}

func TestViewerImmersiveGrab(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session
	require.NoError(t, v.app.surface.Enter())

	col, row := findCell(t, v, isBase)
	v.press(col, row)
	assert.Equal(t, manip.GrabbedSingle, s.Machine().State())

	v.motion(col+4, row)
	require.NoError(t, s.Frame())
	assert.False(t, s.Base().Position.ApproxEqual(s.Original().Position, 1e-9))

	v.release(col+4, row)
	assert.Equal(t, manip.Idle, s.Machine().State())

	v.app.surface.Exit()
	assert.Equal(t, s.Original(), s.Base().Transform())
}

func TestViewerSecondController(t *testing.T) {
	v := newTestViewer(t)
	s := v.app.session

	v.toggleSecondController()
	assert.False(t, v.emu.Pinned(1), "ignored outside immersive mode")

	require.NoError(t, v.app.surface.Enter())
	col, row := findCell(t, v, isBase)
	v.pointer(col, row)
	v.toggleSecondController()
	assert.True(t, v.emu.Pinned(1))
	assert.Equal(t, manip.GrabbedSingle, s.Machine().State())

	v.toggleSecondController()
	assert.False(t, v.emu.Pinned(1))
	assert.Equal(t, manip.Idle, s.Machine().State())

	v.toggleSecondController()
	require.True(t, v.emu.Pinned(1))
	v.app.surface.Exit()
	assert.False(t, v.emu.Pinned(1), "session end resets the emulator")
}

func TestHUDRender(t *testing.T) {
	h := NewHUD()
	st := hudStatus{
		Color:     render.RGB(255, 0, 0),
		Hex:       "#ff0000",
		State:     "idle",
		Toggled:   []string{"button01"},
		Immersive: true,
	}

	var hidden bytes.Buffer
	h.Render(&hidden, 80, 20, st, false)
	assert.Equal(t, "\x1b[1;1H\x1b[2K\x1b[20;1H\x1b[2K", hidden.String())

	var shown bytes.Buffer
	h.Render(&shown, 80, 20, st, true)
	out := shown.String()
	assert.Contains(t, out, "FPS")
	assert.Contains(t, out, "#ff0000")
	assert.Contains(t, out, "\x1b[48;2;255;0;0m")
	assert.Contains(t, out, "on: button01")
	assert.Contains(t, out, "[✓] VR")
	assert.Contains(t, out, "G: pin")
}

func TestStartOverlay(t *testing.T) {
	var out bytes.Buffer
	renderStartOverlay(&out, 80, 20)
	assert.Contains(t, out.String(), "P L A Y")
	assert.Contains(t, out.String(), "\x1b[8;23H")
}

func TestRunInfo(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runInfo(context.Background(), cmd, assets.NewRegistry(nil), assets.BuiltinPrefix+"switch"))
	for _, want := range []string{"Asset: builtin:switch", "Nodes:", "Vertices:", "Triangles:", "Bounds:"} {
		assert.Contains(t, out.String(), want)
	}

	err := runInfo(context.Background(), cmd, assets.NewRegistry(nil), "missing.glb")
	require.ErrorIs(t, err, assets.ErrUnknownAsset)
}

func TestRunSnapshot(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "switch.png")
	err := runSnapshot(context.Background(), config.Default(), snapshotOptions{
		output: out, width: 32, height: 24, immersive: true,
	})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestRunSnapshotRejectsFormat(t *testing.T) {
	err := runSnapshot(context.Background(), config.Default(), snapshotOptions{
		output: filepath.Join(t.TempDir(), "switch.gif"), width: 8, height: 8,
	})
	require.ErrorIs(t, err, render.ErrImageFormat)
}

func TestSetupLogging(t *testing.T) {
	old := logLevel
	defer func() { logLevel = old }()

	logLevel = "WARNING"
	assert.NoError(t, setupLogging(nil, nil))
	logLevel = "loud"
	err := setupLogging(nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "loud"))

	logLevel = "info"
	require.NoError(t, setupLogging(nil, nil))
}
