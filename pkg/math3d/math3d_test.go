package math3d

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestMat4InverseRoundTrip(t *testing.T) {
	m := Compose(V3(1, -2, 3), V3(0.3, 1.1, -0.4), V3(2, 0.5, 1.5))
	got := m.Mul(m.Inverse())
	want := Identity()
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("m * m^-1 [%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMat4FromSliceColumnMajor(t *testing.T) {
	// glTF translation lives in elements 12..14 of the column-major array.
	m := Mat4FromSlice([]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 4, 5, 6, 1})
	if got := m.Translation(); got != V3(4, 5, 6) {
		t.Errorf("Translation() = %v, want (4, 5, 6)", got)
	}
}

func TestRotateYMapsXToYaw(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, 1.2, -2.4, math.Pi / 2} {
		v := RotateY(yaw).MulVec3Dir(V3(1, 0, 0))
		if got := YawOf(v); math.Abs(got-yaw) > eps {
			t.Errorf("YawOf(RotateY(%v) * X) = %v", yaw, got)
		}
	}
}

func TestYawOfIgnoresHeight(t *testing.T) {
	if got, want := YawOf(V3(1, 10, -1)), math.Pi/4; math.Abs(got-want) > eps {
		t.Errorf("YawOf = %v, want %v", got, want)
	}
	if got := YawOf(V3(0, 1, 0)); got != 0 {
		t.Errorf("YawOf(vertical) = %v, want 0", got)
	}
}

func TestQuatEulerMatchesRotateEuler(t *testing.T) {
	tests := []Vec3{
		V3(0, 0, 0),
		V3(0.2, 0, 0),
		V3(0, 0.7, 0),
		V3(0.1, -0.4, 0.9),
	}
	for _, e := range tests {
		qx := QuatFromAxisAngle(V3(1, 0, 0), e.X)
		qy := QuatFromAxisAngle(V3(0, 1, 0), e.Y)
		qz := QuatFromAxisAngle(V3(0, 0, 1), e.Z)
		q := qx.Mul(qy).Mul(qz)
		if got := q.Euler(); !got.ApproxEqual(e, 1e-9) {
			t.Errorf("Euler() = %v, want %v", got, e)
		}
		p := V3(0.3, -1, 2)
		if a, b := q.Rotate(p), RotateEuler(e).MulVec3(p); !a.ApproxEqual(b, 1e-9) {
			t.Errorf("Rotate(%v) = %v, matrix gives %v", p, a, b)
		}
	}
}

func TestRayIntersectTriangle(t *testing.T) {
	a, b, c := V3(-1, -1, 0), V3(1, -1, 0), V3(0, 1, 0)
	tests := []struct {
		name    string
		ray     Ray
		wantHit bool
		wantT   float64
	}{
		{"front", NewRay(V3(0, 0, 5), V3(0, 0, -1)), true, 5},
		{"back side", NewRay(V3(0, 0, -2), V3(0, 0, 1)), true, 2},
		{"miss", NewRay(V3(3, 0, 5), V3(0, 0, -1)), false, 0},
		{"behind origin", NewRay(V3(0, 0, 5), V3(0, 0, 1)), false, 0},
		{"parallel", NewRay(V3(0, 0, 1), V3(1, 0, 0)), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectTriangle(a, b, c)
			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if hit && math.Abs(got-tt.wantT) > eps {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
		})
	}
}

func TestRayIntersectAABB(t *testing.T) {
	box := AABB{Min: V3(-1, -1, -1), Max: V3(1, 1, 1)}
	if d, ok := NewRay(V3(0, 0, 5), V3(0, 0, -1)).IntersectAABB(box); !ok || math.Abs(d-4) > eps {
		t.Errorf("outside hit = %v, %v; want 4, true", d, ok)
	}
	if d, ok := NewRay(V3(0, 0, 0), V3(0, 0, -1)).IntersectAABB(box); !ok || math.Abs(d-1) > eps {
		t.Errorf("inside hit = %v, %v; want 1, true", d, ok)
	}
	if _, ok := NewRay(V3(5, 5, 5), V3(0, 0, -1)).IntersectAABB(box); ok {
		t.Error("expected miss")
	}
}

func TestAABBTransform(t *testing.T) {
	box := AABB{Min: V3(-1, -1, -1), Max: V3(1, 1, 1)}
	got := box.Transform(Translate(V3(10, 0, 0)).Mul(Scale(V3(2, 1, 1))))
	want := AABB{Min: V3(8, -1, -1), Max: V3(12, 1, 1)}
	if !got.Min.ApproxEqual(want.Min, eps) || !got.Max.ApproxEqual(want.Max, eps) {
		t.Errorf("Transform = %+v, want %+v", got, want)
	}
	if !EmptyAABB().IsEmpty() {
		t.Error("EmptyAABB should be empty")
	}
}

func TestParseAxis(t *testing.T) {
	for in, want := range map[string]Axis{"x": AxisX, "Y": AxisY, " z ": AxisZ} {
		got, err := ParseAxis(in)
		if err != nil || got != want {
			t.Errorf("ParseAxis(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("ParseAxis(w) should fail")
	}
}

func TestWithComponent(t *testing.T) {
	v := V3(1, 2, 3).WithComponent(AxisZ, 3.2)
	if v != V3(1, 2, 3.2) || v.Component(AxisZ) != 3.2 {
		t.Errorf("WithComponent = %v", v)
	}
}

func TestQuatBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
	}{
		{"same", V3(0, 0, -1), V3(0, 0, -1)},
		{"quarter", V3(0, 0, -1), V3(1, 0, 0)},
		{"opposite", V3(0, 0, -1), V3(0, 0, 1)},
		{"unnormalized", V3(0, 0, -2), V3(1, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatBetween(tt.a, tt.b).Rotate(tt.a.Normalize())
			if !got.ApproxEqual(tt.b.Normalize(), 1e-9) {
				t.Errorf("QuatBetween(%v, %v) maps a to %v", tt.a, tt.b, got)
			}
		})
	}
}
