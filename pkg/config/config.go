// Package config loads the rgbswitch TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/taigrr/rgbswitch/pkg/assets"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/render"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/session"
	"github.com/taigrr/rgbswitch/pkg/xr"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full program configuration.
type Config struct {
	Assets Assets `toml:"assets"`
	Toggle Toggle `toml:"toggle"`
	Camera Camera `toml:"camera"`
	XR     XR     `toml:"xr"`
	Viewer Viewer `toml:"viewer"`
}

// Assets names the base object and its buttons. Dir is the directory file
// assets are resolved against.
type Assets struct {
	Dir     string   `toml:"dir"`
	Base    string   `toml:"base"`
	Buttons []Button `toml:"buttons"`
}

// Button is one button asset and its colour as a hex string.
type Button struct {
	Asset string `toml:"asset"`
	Color string `toml:"color"`
}

// Toggle configures the colour blend and the button press motion.
type Toggle struct {
	DefaultColor string  `toml:"default_color"`
	Axis         string  `toml:"axis"`
	Offset       float64 `toml:"offset"`
}

// Camera places the viewer. FOV is the vertical field of view in degrees.
type Camera struct {
	Position [3]float64 `toml:"position"`
	Target   [3]float64 `toml:"target"`
	FOV      float64    `toml:"fov"`
	Near     float64    `toml:"near"`
	Far      float64    `toml:"far"`
}

// XR configures stereo rendering and controller emulation.
type XR struct {
	IPD   float64 `toml:"ipd"`
	Reach float64 `toml:"reach"`
}

// Viewer configures the terminal viewer and snapshots.
type Viewer struct {
	FPS         int    `toml:"fps"`
	Background  string `toml:"background"`
	Supersample int    `toml:"supersample"`
}

// Default reproduces the stock switch: builtin geometry, red, green and blue
// buttons over a light grey base, pressed 0.2 units along Z.
func Default() Config {
	return Config{
		Assets: Assets{
			Base: assets.BuiltinPrefix + "switch",
			Buttons: []Button{
				{Asset: assets.BuiltinPrefix + "button01", Color: "#ff0000"},
				{Asset: assets.BuiltinPrefix + "button02", Color: "#00ff00"},
				{Asset: assets.BuiltinPrefix + "button03", Color: "#0000ff"},
			},
		},
		Toggle: Toggle{DefaultColor: "#dddddd", Axis: "z", Offset: 0.2},
		Camera: Camera{Position: [3]float64{0, 0, 5}, FOV: 75, Near: 0.1, Far: 1000},
		XR:     XR{IPD: render.DefaultIPD, Reach: xr.DefaultReach},
		Viewer: Viewer{FPS: 30, Background: "#1e1e28", Supersample: 2},
	}
}

// Load reads a TOML file over the defaults. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result. Unknown
// keys are rejected. A file that lists buttons replaces the default set.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	defaults := cfg.Assets.Buttons
	cfg.Assets.Buttons = nil
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Assets.Buttons) == 0 {
		cfg.Assets.Buttons = defaults
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes the configuration as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// buttonCount is the number of buttons on the switch.
const buttonCount = 3

// Validate reports every invalid field, each wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Assets.Base == "" {
		bad("assets.base is empty")
	}
	if n := len(c.Assets.Buttons); n != buttonCount {
		bad("assets.buttons has %d entries, want %d", n, buttonCount)
	}
	for i, b := range c.Assets.Buttons {
		if b.Asset == "" {
			bad("assets.buttons[%d].asset is empty", i)
		}
		if _, err := scene.ParseColor(b.Color); err != nil {
			bad("assets.buttons[%d].color: %v", i, err)
		}
	}
	if _, err := scene.ParseColor(c.Toggle.DefaultColor); err != nil {
		bad("toggle.default_color: %v", err)
	}
	if _, err := math3d.ParseAxis(c.Toggle.Axis); err != nil {
		bad("toggle.axis: %v", err)
	}
	if math.IsNaN(c.Toggle.Offset) || math.IsInf(c.Toggle.Offset, 0) {
		bad("toggle.offset must be finite")
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		bad("camera.fov %v must be in (0, 180)", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		bad("camera clip planes %v..%v", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.Position == c.Camera.Target {
		bad("camera.position equals camera.target")
	}
	if c.XR.IPD < 0 {
		bad("xr.ipd %v is negative", c.XR.IPD)
	}
	if c.XR.Reach <= 0 {
		bad("xr.reach %v must be positive", c.XR.Reach)
	}
	if c.Viewer.FPS <= 0 {
		bad("viewer.fps %d must be positive", c.Viewer.FPS)
	}
	if _, err := scene.ParseColor(c.Viewer.Background); err != nil {
		bad("viewer.background: %v", err)
	}
	if c.Viewer.Supersample < 1 {
		bad("viewer.supersample %d must be at least 1", c.Viewer.Supersample)
	}
	return errors.Join(errs...)
}

// SessionOptions converts the asset and toggle sections.
func (c Config) SessionOptions() (session.Options, error) {
	if err := c.Validate(); err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		BaseAsset: c.Assets.Base,
		Offset:    c.Toggle.Offset,
	}
	opts.DefaultColor, _ = scene.ParseColor(c.Toggle.DefaultColor)
	opts.Axis, _ = math3d.ParseAxis(c.Toggle.Axis)
	for _, b := range c.Assets.Buttons {
		col, _ := scene.ParseColor(b.Color)
		opts.Buttons = append(opts.Buttons, session.ButtonSpec{Asset: b.Asset, Color: col})
	}
	return opts, nil
}

// NewCamera builds the configured camera with the given aspect ratio.
func (c Camera) NewCamera(aspect float64) *render.Camera {
	cam := render.NewCamera()
	cam.SetAspectRatio(aspect)
	cam.SetFOV(c.FOV * math.Pi / 180)
	cam.SetClipPlanes(c.Near, c.Far)
	cam.SetPosition(vec(c.Position))
	cam.LookAt(vec(c.Target))
	return cam
}

// BackgroundColor returns the parsed viewer background.
func (v Viewer) BackgroundColor() render.Color {
	col, err := scene.ParseColor(v.Background)
	if err != nil {
		return render.RGB(30, 30, 40)
	}
	return render.FromScene(col)
}

func vec(a [3]float64) math3d.Vec3 {
	return math3d.V3(a[0], a[1], a[2])
}
