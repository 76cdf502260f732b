package pick

import (
	"math"

	"github.com/taigrr/rgbswitch/pkg/math3d"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

// Hit describes the nearest intersection found by Resolve.
type Hit struct {
	Node     *scene.Node
	Distance float64
	Point    math3d.Vec3
}

// Resolver casts rays against the geometry of a pickable set.
type Resolver struct {
	Set *Set
}

// NewResolver returns a resolver over set.
func NewResolver(set *Set) *Resolver {
	return &Resolver{Set: set}
}

// Resolve returns the pickable owning the nearest mesh hit by ray. Only
// nodes tagged with a pickable's ID are tested, so geometry outside the set
// neither hits nor occludes.
func (r *Resolver) Resolve(ray math3d.Ray) (p *Pickable, hit Hit, ok bool) {
	if r.Set == nil {
		return nil, Hit{}, false
	}
	best := math.Inf(1)
	for _, owner := range r.Set.All() {
		r.cast(ray, owner, owner.Node, owner.Node.World(), &best, &hit, &p)
	}
	return p, hit, p != nil
}

// cast tests n and the descendants that share its owner's tag. Subtrees of
// other pickables are reached through their own entry in the set.
func (r *Resolver) cast(ray math3d.Ray, owner *Pickable, n *scene.Node, world math3d.Mat4, best *float64, hit *Hit, p **Pickable) {
	if m := n.Mesh; m != nil && m.TriangleCount() > 0 {
		if _, inBox := ray.IntersectAABB(m.Bounds().Transform(world)); inBox {
			for i := range m.Faces {
				a, b, c := m.Triangle(i)
				t, ok := ray.IntersectTriangle(world.MulVec3(a), world.MulVec3(b), world.MulVec3(c))
				if ok && t < *best {
					*best = t
					*hit = Hit{Node: n, Distance: t, Point: ray.At(t)}
					*p = owner
				}
			}
		}
	}
	for _, c := range n.Children() {
		if c.PickID == owner.ID {
			r.cast(ray, owner, c, world.Mul(c.Local()), best, hit, p)
		}
	}
}
