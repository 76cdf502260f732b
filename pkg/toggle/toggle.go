// Package toggle implements button toggling and the colour blend applied to
// the base object.
package toggle

import (
	"fortio.org/log"

	"github.com/taigrr/rgbswitch/pkg/pick"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

// DefaultColor is the base colour when no button is toggled.
var DefaultColor = scene.RGB(0xDDDDDD)

// DefaultOffset is how far a toggled button moves along its axis.
const DefaultOffset = 0.2

// Blend sums the colours per channel, clamping each channel to 255. An
// empty input yields fallback.
func Blend(fallback scene.Color, colors ...scene.Color) scene.Color {
	if len(colors) == 0 {
		return fallback
	}
	var r, g, b int
	for _, c := range colors {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}
	return scene.Color{R: clamp8(r), G: clamp8(g), B: clamp8(b)}
}

func clamp8(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Engine flips buttons and recolours the base object.
type Engine struct {
	Set     *pick.Set
	Default scene.Color
	Offset  float64

	// Base returns the base object node, or nil while it is not loaded.
	Base func() *scene.Node
	// OnChange, if set, is called with the new colour after each recolour.
	OnChange func(scene.Color)
}

// NewEngine returns an engine with the default colour and offset.
func NewEngine(set *pick.Set, base func() *scene.Node) *Engine {
	return &Engine{Set: set, Default: DefaultColor, Offset: DefaultOffset, Base: base}
}

// OnButtonHit toggles p, moves it along its axis and recolours the base.
// Hits on the base object itself are ignored.
func (e *Engine) OnButtonHit(p *pick.Pickable) {
	if p == nil || !p.IsButton() {
		return
	}
	p.Toggled = !p.Toggled
	pos := p.Node.Position
	if p.Toggled {
		p.OriginalAxisOffset = pos.Component(p.Axis)
		p.Node.Position = pos.WithComponent(p.Axis, p.OriginalAxisOffset+e.Offset)
	} else {
		p.Node.Position = pos.WithComponent(p.Axis, p.OriginalAxisOffset)
	}
	log.LogVf("Button %s toggled=%v", p.Name(), p.Toggled)
	e.Recolor()
}

// Current derives the blend of the toggled buttons from scratch.
func (e *Engine) Current() scene.Color {
	var colors []scene.Color
	for _, b := range e.Set.Buttons() {
		if b.Toggled {
			colors = append(colors, *b.Color)
		}
	}
	return Blend(e.Default, colors...)
}

// Recolor applies Current to every node of the base subtree except button
// subtrees. It is a no-op while the base object is missing.
func (e *Engine) Recolor() scene.Color {
	c := e.Current()
	var base *scene.Node
	if e.Base != nil {
		base = e.Base()
	}
	if base == nil {
		return c
	}
	base.Walk(func(n *scene.Node) bool {
		if n.Button {
			return false
		}
		n.Color = c
		return true
	})
	if e.OnChange != nil {
		e.OnChange(c)
	}
	return c
}
