package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fortio.org/log"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/rgbswitch/pkg/config"
	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/render"
	"github.com/taigrr/rgbswitch/pkg/xr"
)

// ViewState holds the viewer toggles that are not part of the session.
type ViewState struct {
	Started bool // start overlay dismissed
	ShowHUD bool
}

// HUD draws the status lines over the rendered frame.
type HUD struct {
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a HUD with its FPS counter starting now.
func NewHUD() *HUD {
	return &HUD{fpsTime: time.Now()}
}

// UpdateFPS counts one frame and refreshes the FPS once per second.
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

const (
	reset     = "\x1b[0m"
	bold      = "\x1b[1m"
	dim       = "\x1b[2m"
	bgBlack   = "\x1b[40m"
	fgWhite   = "\x1b[97m"
	fgGreen   = "\x1b[92m"
	fgYellow  = "\x1b[93m"
	fgRed     = "\x1b[91m"
	fgCyan    = "\x1b[96m"
	clearLine = "\x1b[2K"
)

func moveTo(row, col int) string {
	return fmt.Sprintf("\x1b[%d;%dH", row, col)
}

// hudStatus is what the HUD shows about the session.
type hudStatus struct {
	Color     render.Color
	Hex       string
	State     string
	Toggled   []string
	Immersive bool
	Wireframe bool
	Loading   bool
	Errors    int
	Pinned    bool
}

// Render writes the HUD to w. The top and bottom rows are always cleared so
// toggling the HUD off works.
func (h *HUD) Render(w io.Writer, width, height int, st hudStatus, show bool) {
	var b strings.Builder
	b.WriteString(moveTo(1, 1) + clearLine)
	b.WriteString(moveTo(height, 1) + clearLine)
	defer func() { _, _ = io.WriteString(w, b.String()) }()
	if !show {
		return
	}

	fmt.Fprintf(&b, "%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)

	title := "rgbswitch"
	if st.Loading {
		title += " (loading)"
	}
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, max((width-len(title)-2)/2, 1)), bold, bgBlack, fgWhite, title, reset)

	swatch := fmt.Sprintf("\x1b[48;2;%d;%d;%dm   ", st.Color.R, st.Color.G, st.Color.B)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, max(width-12, 1)), swatch, bgBlack, fgCyan, st.Hex, reset)

	check := func(on bool) string {
		if on {
			return "[✓]"
		}
		return "[ ]"
	}
	toggled := "none"
	if len(st.Toggled) > 0 {
		toggled = strings.Join(st.Toggled, " ")
	}
	fmt.Fprintf(&b, "%s%s%s %s X-Ray  %s VR  %s  on: %s %s",
		moveTo(height, 1), bgBlack, fgWhite, check(st.Wireframe), check(st.Immersive), st.State, toggled, reset)
	if st.Pinned {
		fmt.Fprintf(&b, "%s%s ◉ pinned %s", bgBlack, fgYellow, reset)
	}
	if st.Errors > 0 {
		fmt.Fprintf(&b, "%s%s%s ⚠ %d asset errors %s", bgBlack, bold, fgRed, st.Errors, reset)
	}

	hint := " V: immersive  G: pin "
	if !st.Immersive {
		hint = " V: immersive "
	}
	fmt.Fprintf(&b, "%s%s%s%s%s", moveTo(height, max(width-len(hint), 1)), bgBlack, dim, fgYellow, hint+reset)
}

// renderStartOverlay draws the play prompt in the middle of the screen.
func renderStartOverlay(w io.Writer, width, height int) {
	lines := []string{
		"                                 ",
		"          ▶  P L A Y             ",
		"                                 ",
		"   click or press Enter to start ",
		"                                 ",
	}
	row := max((height-len(lines))/2, 1)
	var b strings.Builder
	for i, line := range lines {
		col := max((width-33)/2, 1)
		style := bgBlack + fgWhite
		if i == 1 {
			style += bold
		}
		fmt.Fprintf(&b, "%s%s%s%s", moveTo(row+i, col), style, line, reset)
	}
	_, _ = io.WriteString(w, b.String())
}

// viewer owns the terminal loop. Events are read on their own goroutine and
// handed to the render loop, which is the only goroutine touching the session.
type viewer struct {
	cfg    config.Config
	term   *uv.Terminal
	tr     *render.TerminalRenderer
	app    *app
	cam    *render.Camera
	orbit  *Orbit
	emu    *xr.Emulator
	hud    *HUD
	state  ViewState
	width  int
	height int
	quit   bool

	mouseDown    bool
	dragged      bool
	lastX, lastY int
	pointerX     float64
	pointerY     float64
}

func newViewer(ctx context.Context, cfg config.Config, term *uv.Terminal, width, height int) (*viewer, error) {
	tr := render.NewTerminalRenderer(term, width, height)
	fbWidth, fbHeight := tr.FramebufferSize()
	a, err := newApp(ctx, cfg, fbWidth, fbHeight)
	if err != nil {
		return nil, err
	}
	v := &viewer{
		cfg:    cfg,
		term:   term,
		tr:     tr,
		app:    a,
		cam:    a.surface.Camera,
		orbit:  NewOrbit(cfg.Viewer.FPS, a.surface.Camera.Position(), a.surface.Camera.Target()),
		emu:    xr.NewEmulator(),
		hud:    NewHUD(),
		state:  ViewState{ShowHUD: true},
		width:  width,
		height: height,
	}
	v.emu.Reach = cfg.XR.Reach
	a.surface.OnSessionEnd(v.endImmersive)
	return v, nil
}

// endImmersive drops the emulated controllers and any press in progress so a
// release after leaving immersive mode is not taken as a click.
func (v *viewer) endImmersive() {
	v.emu.Reset()
	v.mouseDown, v.dragged = false, false
}

func (v *viewer) resize(width, height int) {
	v.width, v.height = width, height
	v.tr = render.NewTerminalRenderer(v.term, width, height)
	fbWidth, fbHeight := v.tr.FramebufferSize()
	v.app.surface.Resize(fbWidth, fbHeight)
	v.app.session.SetViewport(float64(fbWidth), float64(fbHeight))
}

func (v *viewer) immersive() bool { return v.app.surface.IsPresenting() }

// pointerRay casts the ray under framebuffer pixel (x, y). In stereo each
// half of the framebuffer is one eye.
func (v *viewer) pointerRay(x, y float64) math3d.Ray {
	fb := v.app.surface.Framebuffer()
	w, h := float64(fb.Width), float64(max(fb.Height, 1))
	if !v.immersive() || fb.Width < 2 {
		return v.cam.Ray(2*x/w-1, 1-2*y/h)
	}
	half := float64(fb.Width / 2)
	offset := -v.app.surface.IPD / 2
	if x >= half {
		x -= half
		offset = -offset
	}
	eye := v.cam.Eye(offset)
	eye.SetAspectRatio(half / h)
	return eye.Ray(2*x/half-1, 1-2*y/h)
}

func (v *viewer) pointer(col, row int) {
	v.pointerX, v.pointerY = v.tr.CellToPixel(col, row)
}

func (v *viewer) handle(ev any) {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		v.term.Erase()
		v.term.Resize(ev.Width, ev.Height)
		v.resize(ev.Width, ev.Height)

	case uv.KeyPressEvent:
		v.key(ev)

	case uv.MouseClickEvent:
		if !v.state.Started {
			v.state.Started = true
			return
		}
		v.press(ev.X, ev.Y)

	case uv.MouseReleaseEvent:
		if v.state.Started {
			v.release(ev.X, ev.Y)
		}

	case uv.MouseMotionEvent:
		if v.state.Started {
			v.motion(ev.X, ev.Y)
		}

	case uv.MouseWheelEvent:
		if !v.state.Started {
			return
		}
		switch ev.Button {
		case uv.MouseWheelUp:
			v.orbit.Zoom(-1)
		case uv.MouseWheelDown:
			v.orbit.Zoom(1)
		}
	}
}

func (v *viewer) key(ev uv.KeyPressEvent) {
	switch {
	case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
		v.quit = true
		return
	case !v.state.Started:
		if ev.MatchString("enter", "space") {
			v.state.Started = true
		}
		return
	}
	switch {
	case ev.MatchString("1"):
		v.toggleButton(0)
	case ev.MatchString("2"):
		v.toggleButton(1)
	case ev.MatchString("3"):
		v.toggleButton(2)
	case ev.MatchString("v"):
		on := v.app.surface.Toggle()
		log.Infof("Immersive mode %v", on)
	case ev.MatchString("g"):
		v.toggleSecondController()
	case ev.MatchString("x"):
		v.app.surface.Wireframe = !v.app.surface.Wireframe
	case ev.MatchString("r"):
		v.orbit.Reset()
	case ev.MatchString("+", "="):
		v.orbit.Zoom(-1)
	case ev.MatchString("-", "_"):
		v.orbit.Zoom(1)
	case ev.MatchString("?"), ev.MatchString("shift+/"):
		v.state.ShowHUD = !v.state.ShowHUD
	}
}

// toggleButton toggles the i-th configured button if it has loaded.
func (v *viewer) toggleButton(i int) {
	s := v.app.session
	if b := s.ButtonAt(i); b != nil {
		s.Engine().OnButtonHit(b)
	}
}

// toggleSecondController pins controller 1 under the pointer and presses
// its trigger, or releases and unpins it.
func (v *viewer) toggleSecondController() {
	if !v.immersive() {
		return
	}
	s := v.app.session
	if v.emu.Pinned(1) {
		s.HandleInput(input.SelectEnd{Index: 1, Pose: v.emu.Pose(1)})
		v.emu.Unpin(1)
		return
	}
	pose := xr.PoseAlongRay(v.pointerRay(v.pointerX, v.pointerY), v.emu.Reach)
	v.emu.Pin(1, pose)
	s.HandleInput(input.SelectStart{Index: 1, Pose: pose})
}

func (v *viewer) press(col, row int) {
	v.mouseDown, v.dragged = true, false
	v.lastX, v.lastY = col, row
	v.pointer(col, row)
	if v.immersive() {
		pose := v.emu.Point(0, v.pointerRay(v.pointerX, v.pointerY))
		v.app.session.HandleInput(input.SelectStart{Index: 0, Pose: pose})
	}
}

func (v *viewer) motion(col, row int) {
	v.pointer(col, row)
	if v.immersive() {
		v.app.session.SetPose(0, v.emu.Point(0, v.pointerRay(v.pointerX, v.pointerY)))
		if v.mouseDown {
			v.dragged = true
		}
		return
	}
	if !v.mouseDown {
		return
	}
	dx, dy := col-v.lastX, row-v.lastY
	if dx != 0 || dy != 0 {
		v.dragged = true
		v.orbit.Drag(dx, dy)
	}
	v.lastX, v.lastY = col, row
}

// release ends a press. Outside immersive mode a press without drag is a
// click at the pixel under the pointer.
func (v *viewer) release(col, row int) {
	if !v.mouseDown {
		return
	}
	v.mouseDown = false
	v.pointer(col, row)
	s := v.app.session
	if v.immersive() {
		pose := v.emu.Point(0, v.pointerRay(v.pointerX, v.pointerY))
		s.HandleInput(input.SelectEnd{Index: 0, Pose: pose})
		return
	}
	if !v.dragged {
		s.HandleInput(input.PointerClick{X: v.pointerX, Y: v.pointerY})
	}
}

func (v *viewer) status() hudStatus {
	s := v.app.session
	col := s.Color()
	st := hudStatus{
		Color:     render.FromScene(col),
		Hex:       col.String(),
		State:     s.Machine().State().String(),
		Immersive: v.immersive(),
		Wireframe: v.app.surface.Wireframe,
		Loading:   !s.Ready(),
		Errors:    len(s.Errors()),
		Pinned:    v.emu.Pinned(1),
	}
	for _, b := range s.Set().Buttons() {
		if b.Toggled {
			st.Toggled = append(st.Toggled, b.Name())
		}
	}
	return st
}

// frame advances the camera, runs one session frame and draws it.
func (v *viewer) frame() error {
	v.orbit.Update()
	v.orbit.Apply(v.cam)
	if err := v.app.session.Frame(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	v.tr.Render(v.app.surface.Framebuffer())
	if err := v.tr.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if !v.state.Started {
		renderStartOverlay(os.Stdout, v.width, v.height)
	}
	v.hud.UpdateFPS()
	v.hud.Render(os.Stdout, v.width, v.height, v.status(), v.state.ShowHUD)
	return nil
}

// redirectLogs keeps log lines off the alternate screen. They go to path
// when set and are dropped otherwise. The returned func restores stderr.
func redirectLogs(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

func runViewer(ctx context.Context, cfg config.Config) error {
	restoreLogs, err := redirectLogs(logFile)
	if err != nil {
		return err
	}
	defer restoreLogs()

	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	v, err := newViewer(ctx, cfg, term, width, height)
	if err != nil {
		return err
	}

	events := make(chan any, 64)
	go func() {
		for ev := range term.Events() {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	targetDuration := time.Second / time.Duration(cfg.Viewer.FPS)
	for {
		now := time.Now()
	drain:
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				v.handle(ev)
			default:
				break drain
			}
		}
		if v.quit {
			return nil
		}

		if err := v.frame(); err != nil {
			return err
		}

		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
