// Package render provides the software rasterizer and the rendering surface
// the switch is drawn on.
package render

import (
	"image/color"

	"github.com/taigrr/rgbswitch/pkg/scene"
)

// Color is an 8-bit RGB colour.
type Color struct {
	R, G, B uint8
}

// RGB creates a colour from components.
func RGB(r, g, b uint8) Color {
	return Color{r, g, b}
}

// Common colors
var (
	ColorBlack = RGB(0, 0, 0)
	ColorWhite = RGB(255, 255, 255)
	ColorRed   = RGB(255, 0, 0)
	ColorGreen = RGB(0, 255, 0)
	ColorBlue  = RGB(0, 0, 255)
)

// FromScene converts a scene material colour.
func FromScene(c scene.Color) Color {
	return Color{c.R, c.G, c.B}
}

// RGBA returns the opaque image colour.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{c.R, c.G, c.B, 255}
}

// MultiplyColor scales every channel by f, clamping to 255.
func MultiplyColor(c Color, f float64) Color {
	return Color{
		R: clampChannel(float64(c.R) * f),
		G: clampChannel(float64(c.G) * f),
		B: clampChannel(float64(c.B) * f),
	}
}

// ModulateColor multiplies two colours channel by channel.
func ModulateColor(a, b Color) Color {
	return Color{
		R: uint8(uint16(a.R) * uint16(b.R) / 255),
		G: uint8(uint16(a.G) * uint16(b.G) / 255),
		B: uint8(uint16(a.B) * uint16(b.B) / 255),
	}
}

func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
	}
}

func clampChannel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
