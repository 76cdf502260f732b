// rgbswitch - Terminal RGB Switch
// A base object carrying red, green and blue buttons. Toggling buttons
// blends their colours into the base; in immersive mode the base can be
// grabbed, moved, scaled and rotated with emulated controllers.
//
// Controls:
//
//	Click       - Toggle the button under the pointer
//	Mouse drag  - Orbit the camera (grab the base in immersive mode)
//	Scroll      - Zoom in/out
//	1/2/3       - Toggle the first, second or third button
//	V           - Enter/leave immersive (stereo) mode
//	G           - Pin controller 1 at the pointer and press/release its trigger
//	X           - Toggle wireframe mode
//	R           - Reset view
//	?           - Toggle HUD overlay
//	+/-         - Adjust zoom
//	Esc         - Quit
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"fortio.org/log"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/rgbswitch/pkg/assets"
	"github.com/taigrr/rgbswitch/pkg/config"
	"github.com/taigrr/rgbswitch/pkg/render"
	"github.com/taigrr/rgbswitch/pkg/replay"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/session"
)

var (
	configPath string
	assetsDir  string
	logLevel   string
	logFile    string
	targetFPS  int
	bgColor    string
)

// loadTimeout bounds how long headless commands wait for assets.
const loadTimeout = 30 * time.Second

func main() {
	cmd := &cobra.Command{
		Use:   "rgbswitch",
		Short: "Terminal RGB Switch",
		Long: `rgbswitch - Terminal RGB Switch

A switch with red, green and blue buttons. Toggled buttons add their
colours to the base; immersive mode lets you grab and scale it.

Controls:
  Click       - Toggle button
  Mouse drag  - Orbit (grab in immersive mode)
  Scroll      - Zoom in/out
  1/2/3       - Toggle button by index
  V           - Immersive mode
  G           - Pin second controller and press/release it
  X           - Toggle wireframe
  R           - Reset view
  ?           - Toggle HUD overlay
  Esc         - Quit`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: setupLogging,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runViewer(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	cmd.PersistentFlags().StringVar(&assetsDir, "assets", "", "Directory model assets are loaded from")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, verbose, info, warning, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write viewer logs to this file instead of discarding them")
	cmd.Flags().IntVar(&targetFPS, "fps", 0, "Target FPS (overrides viewer.fps)")
	cmd.Flags().StringVar(&bgColor, "bg", "", "Background color as #rrggbb (overrides viewer.background)")

	cmd.AddCommand(newInfoCmd(), newReplayCmd(), newSnapshotCmd(), newConfigCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

var logLevels = map[string]log.Level{
	"debug":   log.Debug,
	"verbose": log.Verbose,
	"info":    log.Info,
	"warning": log.Warning,
	"warn":    log.Warning,
	"error":   log.Error,
}

func setupLogging(_ *cobra.Command, _ []string) error {
	lvl, ok := logLevels[strings.ToLower(logLevel)]
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	log.SetLogLevel(lvl)
	return nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if assetsDir != "" {
		cfg.Assets.Dir = assetsDir
	}
	if f := cmd.Flags().Lookup("fps"); f != nil && f.Changed {
		cfg.Viewer.FPS = targetFPS
	}
	if f := cmd.Flags().Lookup("bg"); f != nil && f.Changed {
		cfg.Viewer.Background = bgColor
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newRegistry(cfg config.Config) *assets.Registry {
	var fsys fs.FS
	if cfg.Assets.Dir != "" {
		fsys = os.DirFS(cfg.Assets.Dir)
	}
	return assets.NewRegistry(fsys)
}

// app is a started session drawing into a width by height surface.
type app struct {
	cfg      config.Config
	registry *assets.Registry
	surface  *render.Surface
	session  *session.Session
}

func newApp(ctx context.Context, cfg config.Config, width, height int) (*app, error) {
	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	cam := cfg.Camera.NewCamera(float64(width) / float64(max(height, 1)))
	surf := render.NewSurface(width, height, cam)
	surf.Background = cfg.Viewer.BackgroundColor()
	surf.IPD = cfg.XR.IPD
	s := session.New(surf, cam, opts)
	s.SetViewport(float64(width), float64(height))
	reg := newRegistry(cfg)
	s.Start(ctx, reg)
	return &app{cfg: cfg, registry: reg, surface: surf, session: s}, nil
}

// waitReady blocks until every asset has settled and logs the failures.
func (a *app) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := a.session.WaitReady(ctx); err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	for _, err := range a.session.Errors() {
		log.Warnf("%v", err)
	}
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <asset>",
		Short: "Display asset information",
		Long: `Load one asset through the registry and print its node count, vertex and
triangle counts and bounding box. Builtin assets use the builtin: prefix
(builtin:switch, builtin:button01, ...); anything else is a .glb, .gltf or
.stl path relative to --assets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runInfo(cmd.Context(), cmd, newRegistry(cfg), args[0])
		},
	}
}

func runInfo(ctx context.Context, cmd *cobra.Command, reg *assets.Registry, id string) error {
	n, err := reg.LoadSync(ctx, id)
	if err != nil {
		return err
	}
	nodes, triangles := n.Count()
	vertices, meshes := 0, 0
	n.Walk(func(x *scene.Node) bool {
		if x.Mesh != nil {
			meshes++
			vertices += x.Mesh.VertexCount()
		}
		return true
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Asset: %s\n", id)
	fmt.Fprintf(out, "Root: %s\n", n.Name)
	fmt.Fprintf(out, "Nodes: %d (%d with meshes)\n", nodes, meshes)
	fmt.Fprintf(out, "Vertices: %d\n", vertices)
	fmt.Fprintf(out, "Triangles: %d\n", triangles)
	if b := n.Bounds(); !b.IsEmpty() {
		size := b.Max.Sub(b.Min)
		fmt.Fprintf(out, "Bounds: %v to %v\n", b.Min, b.Max)
		fmt.Fprintf(out, "Size: %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
		fmt.Fprintf(out, "Center: %v\n", b.Center())
	}
	return nil
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run an input script headlessly",
		Long: `Load the configured switch, play the clicks, touches, controller events and
immersive session changes listed in a YAML script, and check its expect
steps. Exits non-zero on the first failed expectation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			script, err := replay.Load(args[0])
			if err != nil {
				return err
			}
			w, h := 200, 200
			if script.Viewport[0] > 0 && script.Viewport[1] > 0 {
				w, h = script.Viewport[0], script.Viewport[1]
			}
			a, err := newApp(cmd.Context(), cfg, w, h)
			if err != nil {
				return err
			}
			if err := a.waitReady(cmd.Context()); err != nil {
				return err
			}
			if err := replay.NewRunner(a.session, a.surface).Run(cmd.Context(), script); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps passed, color %s\n",
				args[0], len(script.Steps), a.session.Color())
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	var (
		output     string
		width      int
		height     int
		scriptPath string
		immersive  bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot -o <out.png|out.webp>",
		Short: "Render one frame to an image",
		Long: `Render the switch to a PNG or WebP image, optionally after playing a replay
script. The frame is rendered at viewer.supersample times the output size
and downscaled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if width <= 0 || height <= 0 {
				return fmt.Errorf("invalid size %dx%d", width, height)
			}
			return runSnapshot(cmd.Context(), cfg, snapshotOptions{
				output: output, width: width, height: height,
				script: scriptPath, immersive: immersive,
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output image path (.png or .webp)")
	cmd.Flags().IntVar(&width, "width", 320, "Output width in pixels")
	cmd.Flags().IntVar(&height, "height", 240, "Output height in pixels")
	cmd.Flags().StringVar(&scriptPath, "script", "", "Replay script to play before rendering")
	cmd.Flags().BoolVar(&immersive, "immersive", false, "Render side-by-side stereo")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

type snapshotOptions struct {
	output        string
	width, height int
	script        string
	immersive     bool
}

func runSnapshot(ctx context.Context, cfg config.Config, opts snapshotOptions) error {
	ss := cfg.Viewer.Supersample
	a, err := newApp(ctx, cfg, opts.width*ss, opts.height*ss)
	if err != nil {
		return err
	}
	if err := a.waitReady(ctx); err != nil {
		return err
	}
	// Pointer coordinates in scripts refer to the output image.
	a.session.SetViewport(float64(opts.width), float64(opts.height))
	if opts.script != "" {
		script, err := replay.Load(opts.script)
		if err != nil {
			return err
		}
		if err := replay.NewRunner(a.session, a.surface).Run(ctx, script); err != nil {
			return err
		}
	}
	if opts.immersive && !a.surface.IsPresenting() {
		if err := a.surface.Enter(); err != nil {
			return err
		}
	}
	if err := a.session.Frame(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	img := a.surface.Image()
	if ss > 1 {
		img = render.Downsample(img, opts.width, opts.height)
	}
	if err := render.SaveImage(opts.output, img); err != nil {
		return err
	}
	stats := a.surface.Stats()
	log.Infof("Wrote %s (%dx%d, %d triangles drawn, %d culled)",
		opts.output, opts.width, opts.height, stats.Drawn, stats.Culled)
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}
