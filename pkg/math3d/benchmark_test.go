package math3d

import (
	"testing"
)

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := RotateY(0.5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4MulVec3(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5))
	v := V3(1, 2, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.MulVec3(v)
	}
}

func BenchmarkMat4Inverse(b *testing.B) {
	m := Compose(V3(1, 2, 3), V3(0, 0.5, 0), V3(2, 2, 2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Inverse()
	}
}

func BenchmarkRayTriangle(b *testing.B) {
	r := NewRay(V3(0.2, 0.2, 5), V3(0, 0, -1))
	a, c, d := V3(0, 0, 0), V3(1, 0, 0), V3(0, 1, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.IntersectTriangle(a, c, d)
	}
}

func BenchmarkRayAABB(b *testing.B) {
	r := NewRay(V3(0, 0, 5), V3(0, 0, -1))
	box := AABB{Min: V3(-1, -1, -1), Max: V3(1, 1, 1)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.IntersectAABB(box)
	}
}
