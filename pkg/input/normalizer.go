package input

import (
	"fortio.org/log"

	"github.com/taigrr/rgbswitch/pkg/math3d"
)

// RayCaster builds a world ray through normalized device coordinates.
type RayCaster interface {
	Ray(ndcX, ndcY float64) math3d.Ray
}

// Normalizer turns raw events into actions. It is not safe for concurrent use.
type Normalizer struct {
	Width, Height float64
	Camera        RayCaster
	// Immersive reports whether the immersive presentation is active.
	Immersive func() bool

	gesturing bool
}

// NewNormalizer returns a normalizer for a viewport of w by h pixels.
func NewNormalizer(w, h float64, cam RayCaster, immersive func() bool) *Normalizer {
	return &Normalizer{Width: w, Height: h, Camera: cam, Immersive: immersive}
}

// SetViewport updates the pixel size used for normalization.
func (n *Normalizer) SetViewport(w, h float64) {
	n.Width, n.Height = w, h
}

// NDC maps viewport pixels to [-1, 1] on both axes with +Y up.
func (n *Normalizer) NDC(x, y float64) math3d.Vec2 {
	if n.Width <= 0 || n.Height <= 0 {
		return math3d.V2(0, 0)
	}
	return math3d.V2(x/n.Width*2-1, -(y/n.Height*2 - 1))
}

// Gesturing reports whether a two-finger gesture is in progress.
func (n *Normalizer) Gesturing() bool { return n.gesturing }

// Reset drops any gesture in progress.
func (n *Normalizer) Reset() { n.gesturing = false }

func (n *Normalizer) immersive() bool {
	return n.Immersive != nil && n.Immersive()
}

func (n *Normalizer) pick(src Source, x, y float64) (Action, bool) {
	if n.Camera == nil {
		return nil, false
	}
	p := n.NDC(x, y)
	return PointEvent{Source: src, Ray: n.Camera.Ray(p.X, p.Y)}, true
}

// Normalize classifies ev. ok is false when the event produces no action.
func (n *Normalizer) Normalize(ev Event) (a Action, ok bool) {
	switch ev := ev.(type) {
	case PointerClick:
		return n.pick(Source{Kind: SourceMouse}, ev.X, ev.Y)

	case TouchStart:
		switch len(ev.Touches) {
		case 1:
			if n.gesturing {
				return nil, false
			}
			t := ev.Touches[0]
			return n.pick(Source{Kind: SourceTouch}, t.X, t.Y)
		case 2:
			if !n.immersive() {
				log.Debugf("Ignoring two-finger touch outside immersive mode")
				return nil, false
			}
			n.gesturing = true
			return GestureStart{A: ev.Touches[0].Pos(), B: ev.Touches[1].Pos()}, true
		}
		log.Debugf("Ignoring touch start with %d points", len(ev.Touches))

	case TouchMove:
		if !n.gesturing {
			return nil, false
		}
		if len(ev.Touches) != 2 {
			log.Debugf("Ignoring gesture move with %d points", len(ev.Touches))
			return nil, false
		}
		return GestureMove{A: ev.Touches[0].Pos(), B: ev.Touches[1].Pos()}, true

	case TouchEnd:
		if n.gesturing && len(ev.Touches) < 2 {
			n.gesturing = false
			return GestureEnd{}, true
		}

	case SelectStart:
		if !validController(ev.Index) {
			log.Debugf("Ignoring select start from controller %d", ev.Index)
			return nil, false
		}
		return PointEvent{Source: Controller(ev.Index), Ray: ev.Pose.Ray()}, true

	case SelectEnd:
		if !validController(ev.Index) {
			return nil, false
		}
		return ReleaseEvent{Source: Controller(ev.Index)}, true
	}
	return nil, false
}

// MaxControllers is the number of tracked controllers.
const MaxControllers = 2

func validController(i int) bool { return i >= 0 && i < MaxControllers }
