package math3d

import "math"

// Vec2 represents a 2D vector.
type Vec2 struct {
	X, Y float64
}

// V2 creates a new Vec2.
func V2(x, y float64) Vec2 {
	return Vec2{x, y}
}

// Add returns the vector sum a + b.
func (a Vec2) Add(b Vec2) Vec2 {
	return Vec2{a.X + b.X, a.Y + b.Y}
}

// Sub returns the vector difference a - b.
func (a Vec2) Sub(b Vec2) Vec2 {
	return Vec2{a.X - b.X, a.Y - b.Y}
}

// Scale returns the scalar product a * s.
func (a Vec2) Scale(s float64) Vec2 {
	return Vec2{a.X * s, a.Y * s}
}

// Len returns the length of the vector.
func (a Vec2) Len() float64 {
	return math.Hypot(a.X, a.Y)
}

// Angle returns the angle of the vector in radians.
func (a Vec2) Angle() float64 {
	return math.Atan2(a.Y, a.X)
}

// AngleTo returns the angle of the segment from a to b.
func (a Vec2) AngleTo(b Vec2) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// Distance returns the distance between two points.
func (a Vec2) Distance(b Vec2) float64 {
	return a.Sub(b).Len()
}

// Midpoint returns the point halfway between a and b.
func (a Vec2) Midpoint(b Vec2) Vec2 {
	return Vec2{(a.X + b.X) * 0.5, (a.Y + b.Y) * 0.5}
}
