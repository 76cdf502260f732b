package math3d

import "math"

// Quat is a rotation quaternion (x, y, z, w), the layout glTF uses.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle returns a rotation of angle radians about axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	a := axis.Normalize()
	s := math.Sin(angle / 2)
	return Quat{a.X * s, a.Y * s, a.Z * s, math.Cos(angle / 2)}
}

// Mul returns the Hamilton product q * r (r applied first).
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Normalize returns the unit quaternion, or identity for a zero quaternion.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Mat4 returns the rotation matrix.
func (q Quat) Mat4() Mat4 {
	return QuatToMat4(q.X, q.Y, q.Z, q.W)
}

// QuatToMat4 converts quaternion components to a rotation matrix.
func QuatToMat4(x, y, z, w float64) Mat4 {
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return Mat4{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy), 0,
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx), 0,
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Euler returns XYZ-ordered Euler angles matching RotateEuler.
func (q Quat) Euler() Vec3 {
	return EulerFromMat4(q.Normalize().Mat4())
}

// EulerFromMat4 extracts XYZ-ordered Euler angles from the rotation part of m.
func EulerFromMat4(m Mat4) Vec3 {
	m13 := math.Max(-1, math.Min(1, m.At(0, 2)))
	y := math.Asin(m13)
	if math.Abs(m13) < 0.9999999 {
		return Vec3{
			math.Atan2(-m.At(1, 2), m.At(2, 2)),
			y,
			math.Atan2(-m.At(0, 1), m.At(0, 0)),
		}
	}
	return Vec3{math.Atan2(m.At(2, 1), m.At(1, 1)), y, 0}
}

// YawOf returns the rotation about +Y that takes +X onto the horizontal
// projection of v. Returns 0 for vertical or zero vectors.
func YawOf(v Vec3) float64 {
	if v.X == 0 && v.Z == 0 {
		return 0
	}
	return math.Atan2(-v.Z, v.X)
}

// QuatBetween returns the shortest rotation taking direction a onto b.
func QuatBetween(a, b Vec3) Quat {
	a, b = a.Normalize(), b.Normalize()
	d := a.Dot(b)
	if d > 1-1e-12 {
		return QuatIdentity()
	}
	if d < -1+1e-12 {
		axis := V3(1, 0, 0).Cross(a)
		if axis.LenSq() < 1e-12 {
			axis = V3(0, 1, 0).Cross(a)
		}
		return QuatFromAxisAngle(axis, math.Pi)
	}
	c := a.Cross(b)
	return Quat{c.X, c.Y, c.Z, 1 + d}.Normalize()
}
