// Package session wires the input normalizer, hit resolver, toggle engine
// and manipulation machine around one base object and its buttons.
package session

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/log"

	"github.com/taigrr/rgbswitch/pkg/assets"
	"github.com/taigrr/rgbswitch/pkg/input"
	"github.com/taigrr/rgbswitch/pkg/manip"
	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/pick"
	"github.com/taigrr/rgbswitch/pkg/scene"
	"github.com/taigrr/rgbswitch/pkg/toggle"
)

// Surface is the rendering side of a session.
type Surface interface {
	AddToScene(n *scene.Node)
	RemoveFromScene(n *scene.Node)
	Render() error
	IsPresenting() bool
	OnSessionEnd(fn func())
}

// Loader starts asynchronous asset loads.
type Loader interface {
	Load(ctx context.Context, id string) *assets.Future[*scene.Node]
}

// ButtonSpec names a button asset and its colour.
type ButtonSpec struct {
	Asset string
	Color scene.Color
}

// Options configures a session.
type Options struct {
	BaseAsset    string
	Buttons      []ButtonSpec
	DefaultColor scene.Color
	Axis         math3d.Axis
	Offset       float64
}

// DefaultOptions returns the builtin switch with red, green and blue buttons.
func DefaultOptions() Options {
	return Options{
		BaseAsset: assets.BuiltinPrefix + "switch",
		Buttons: []ButtonSpec{
			{Asset: assets.BuiltinPrefix + "button01", Color: scene.RGB(0xff0000)},
			{Asset: assets.BuiltinPrefix + "button02", Color: scene.RGB(0x00ff00)},
			{Asset: assets.BuiltinPrefix + "button03", Color: scene.RGB(0x0000ff)},
		},
		DefaultColor: toggle.DefaultColor,
		Axis:         math3d.AxisZ,
		Offset:       toggle.DefaultOffset,
	}
}

var errNoBase = errors.New("no base object to attach to")

type pendingButton struct {
	spec    ButtonSpec
	future  *assets.Future[*scene.Node]
	settled bool
	pick    *pick.Pickable
}

// Session owns all interaction state. Every method must be called from the
// render goroutine.
type Session struct {
	opts    Options
	surface Surface

	set        *pick.Set
	resolver   *pick.Resolver
	engine     *toggle.Engine
	machine    *manip.Machine
	gesture    manip.Gesture
	normalizer *input.Normalizer

	base        *scene.Node
	basePick    *pick.Pickable
	original    scene.Transform
	baseFuture  *assets.Future[*scene.Node]
	baseSettled bool
	buttons     []*pendingButton
	errs        []error
}

// New creates a session drawing to surface and casting pointer rays through cam.
func New(surface Surface, cam input.RayCaster, opts Options) *Session {
	s := &Session{opts: opts, surface: surface, set: pick.NewSet()}
	s.resolver = pick.NewResolver(s.set)
	s.engine = toggle.NewEngine(s.set, s.Base)
	s.engine.Default = opts.DefaultColor
	s.engine.Offset = opts.Offset
	s.machine = manip.NewMachine(s.Base)
	s.normalizer = input.NewNormalizer(0, 0, cam, surface.IsPresenting)
	surface.OnSessionEnd(s.EndImmersive)
	return s
}

// Start begins loading the base object. Each button load starts once the
// base has loaded; a failed base means no button is ever requested.
func (s *Session) Start(ctx context.Context, loader Loader) {
	s.baseFuture = loader.Load(ctx, s.opts.BaseAsset)
	for _, spec := range s.opts.Buttons {
		f := assets.Then(ctx, s.baseFuture, func(ctx context.Context, _ *scene.Node) (*scene.Node, error) {
			return loader.Load(ctx, spec.Asset).Wait(ctx)
		})
		s.buttons = append(s.buttons, &pendingButton{spec: spec, future: f})
	}
}

// Poll applies finished loads. The base is always applied before any button.
func (s *Session) Poll() {
	if s.baseFuture == nil {
		return
	}
	if !s.baseSettled {
		res, done := s.baseFuture.Poll()
		if !done {
			return
		}
		s.baseSettled = true
		if res.Err != nil {
			s.fail(s.opts.BaseAsset, res.Err)
		} else {
			s.attachBase(res.Value)
		}
	}
	for _, b := range s.buttons {
		if b.settled {
			continue
		}
		res, done := b.future.Poll()
		if !done {
			continue
		}
		b.settled = true
		switch {
		case res.Err != nil:
			s.fail(b.spec.Asset, res.Err)
		case s.base == nil:
			s.fail(b.spec.Asset, errNoBase)
		default:
			b.pick = s.attachButton(res.Value, b.spec)
		}
	}
}

func (s *Session) fail(id string, err error) {
	log.Errf("Asset %s failed to load: %v", id, err)
	s.errs = append(s.errs, fmt.Errorf("asset %s: %w", id, err))
}

func (s *Session) attachBase(n *scene.Node) {
	s.base = n
	n.SetColor(s.opts.DefaultColor)
	s.surface.AddToScene(n)
	s.basePick = s.set.Add(n, nil, s.opts.Axis)
	s.original = n.Transform()
	log.Infof("Base object %s loaded", n.Name)
}

func (s *Session) attachButton(n *scene.Node, spec ButtonSpec) *pick.Pickable {
	n.MarkButton()
	n.SetColor(spec.Color)
	s.base.Add(n)
	p := s.set.Add(n, &spec.Color, s.opts.Axis)
	log.Infof("Button %s loaded (%s)", n.Name, spec.Color)
	return p
}

// Ready reports whether every load has settled, successfully or not.
func (s *Session) Ready() bool {
	if !s.baseSettled {
		return false
	}
	for _, b := range s.buttons {
		if !b.settled {
			return false
		}
	}
	return true
}

// WaitReady polls until every load has settled or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	for !s.Ready() {
		if s.baseFuture == nil {
			return errors.New("session not started")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.next():
		}
		s.Poll()
	}
	return nil
}

// next returns a channel that closes when the next unsettled load finishes.
func (s *Session) next() <-chan struct{} {
	if !s.baseSettled {
		return s.baseFuture.Done()
	}
	for _, b := range s.buttons {
		if !b.settled {
			return b.future.Done()
		}
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// SetViewport updates the pixel size used to normalize pointer coordinates.
func (s *Session) SetViewport(w, h float64) {
	s.normalizer.SetViewport(w, h)
}

// SetPose records a controller pose between select events.
func (s *Session) SetPose(i int, p input.Pose) {
	s.machine.SetPose(i, p)
}

// HandleInput classifies ev and applies the resulting action.
func (s *Session) HandleInput(ev input.Event) {
	switch ev := ev.(type) {
	case input.SelectStart:
		s.machine.SetPose(ev.Index, ev.Pose)
	case input.SelectEnd:
		s.machine.SetPose(ev.Index, ev.Pose)
	}
	a, ok := s.normalizer.Normalize(ev)
	if !ok {
		return
	}
	switch a := a.(type) {
	case input.PointEvent:
		s.point(a)
	case input.ReleaseEvent:
		s.machine.End(a.Source)
	case input.GestureStart:
		s.gesture.Start(s.base, a.A, a.B)
	case input.GestureMove:
		s.gesture.Move(s.base, a.A, a.B)
	case input.GestureEnd:
		s.gesture.End()
	}
}

// point handles a pick. Buttons always toggle. Only controllers grab: the
// first must hit the base, a second joins an existing single grab.
func (s *Session) point(ev input.PointEvent) {
	p, _, hit := s.resolver.Resolve(ev.Ray)
	if hit && p.IsButton() {
		s.engine.OnButtonHit(p)
		return
	}
	if ev.Source.Kind != input.SourceController {
		return
	}
	switch {
	case s.machine.State() == manip.GrabbedSingle && !s.machine.Holding(ev.Source):
		s.machine.Start(ev.Source)
	case hit && p == s.basePick:
		s.machine.Start(ev.Source)
	}
}

// Frame runs the per-frame update and renders.
func (s *Session) Frame() error {
	s.Poll()
	s.machine.Update()
	return s.surface.Render()
}

// EndImmersive restores the base object to its loaded transform and drops
// every grab and gesture in progress.
func (s *Session) EndImmersive() {
	s.machine.Reset()
	s.gesture.End()
	s.normalizer.Reset()
	if s.base != nil {
		s.base.SetTransform(s.original)
	}
	log.Infof("Immersive session ended; base transform restored")
}

// Base returns the base object, or nil until it has loaded.
func (s *Session) Base() *scene.Node { return s.base }

// Original returns the transform captured when the base loaded.
func (s *Session) Original() scene.Transform { return s.original }

// Set returns the pickable set.
func (s *Session) Set() *pick.Set { return s.set }

// Machine returns the manipulation state machine.
func (s *Session) Machine() *manip.Machine { return s.machine }

// Gesture returns the two-finger gesture tracker.
func (s *Session) Gesture() *manip.Gesture { return &s.gesture }

// Engine returns the toggle engine.
func (s *Session) Engine() *toggle.Engine { return s.engine }

// Color returns the current base colour.
func (s *Session) Color() scene.Color { return s.engine.Current() }

// Resolve casts ray against the pickable set.
func (s *Session) Resolve(ray math3d.Ray) (*pick.Pickable, pick.Hit, bool) {
	return s.resolver.Resolve(ray)
}

// Button returns the loaded button with the given node name, or nil.
func (s *Session) Button(name string) *pick.Pickable {
	for _, b := range s.set.Buttons() {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// ButtonAt returns the button configured at index i of Options.Buttons, or
// nil if i is out of range or that button has not loaded.
func (s *Session) ButtonAt(i int) *pick.Pickable {
	if i < 0 || i >= len(s.buttons) {
		return nil
	}
	return s.buttons[i].pick
}

// Errors returns the load failures seen so far.
func (s *Session) Errors() []error { return s.errs }
