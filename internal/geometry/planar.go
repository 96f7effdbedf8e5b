package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 文档注释：纯 Go 平面几何后端
// 背景：无需 cgo/libgeos 即可完成包含判定与面内代表点计算；语义对齐 GEOS 的 within 与 InteriorPointArea。
// 约束：tol 为点到边的距离容差（坐标单位），位于边界容差内的点视为“在边界上”。
type Planar struct {
	tol float64
}

func NewPlanar(tolerance float64) *Planar {
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	return &Planar{tol: tolerance}
}

type segment struct {
	a, b  orb.Point
	bound orb.Bound
}

// Within：边界覆盖 + 反向穿透检查
// 1) g 的每条边按与 container 边的交点切分，所有顶点与子段中点都必须被 container 覆盖；
// 2) container 的边（含洞）切分后不得有任何样本点严格落在 g 内部；
// 3) g 每个部分的面内点须严格落在 container 内部（边界全部重合但内部在洞里的情形）。
func (p *Planar) Within(g, container orb.Geometry) (bool, error) {
	gp, err := Polygons(g)
	if err != nil {
		return false, err
	}
	cp, err := Polygons(container)
	if err != nil {
		return false, err
	}
	gmp := orb.MultiPolygon(gp)
	cmp := orb.MultiPolygon(cp)
	if math.Abs(planar.Area(gmp)) == 0 {
		return false, nil
	}
	gb := gmp.Bound()
	cb := cmp.Bound().Pad(p.tol)
	if !cb.Contains(gb.Min) || !cb.Contains(gb.Max) {
		return false, nil
	}
	near := gb.Pad(p.tol)
	gs := p.segmentsOf(gp)
	cs := intersecting(p.segmentsOf(cp), near)

	for _, s := range gs {
		for _, pt := range p.samples(s, cs) {
			if !p.onBoundary(pt, cs) && !planar.MultiPolygonContains(cmp, pt) {
				return false, nil
			}
		}
	}
	for _, s := range cs {
		for _, pt := range p.samples(s, gs) {
			if !p.onBoundary(pt, gs) && planar.MultiPolygonContains(gmp, pt) {
				return false, nil
			}
		}
	}
	for _, poly := range gp {
		pt, _, ok := scanInterior(poly)
		if !ok {
			continue
		}
		if p.onBoundary(pt, cs) || !planar.MultiPolygonContains(cmp, pt) {
			return false, nil
		}
	}
	return true, nil
}

// PointOnSurface：扫描线取面内点
// 背景：取包围盒纵向中线附近、避开所有顶点纵坐标的水平线，与各环求交，取最宽的内部区间中点；
// 多面时取各部分中区间最宽者。退化（零宽）时回退到外环首个顶点。
func (p *Planar) PointOnSurface(g orb.Geometry) (orb.Point, error) {
	polys, err := Polygons(g)
	if err != nil {
		return orb.Point{}, err
	}
	var best orb.Point
	bestW := -1.0
	for _, poly := range polys {
		pt, w, ok := scanInterior(poly)
		if ok && w > bestW {
			best, bestW = pt, w
		}
	}
	if bestW > 0 {
		return best, nil
	}
	for _, poly := range polys {
		if len(poly) > 0 && len(poly[0]) > 0 {
			return poly[0][0], nil
		}
	}
	return orb.Point{}, ErrUnsupported
}

func scanInterior(poly orb.Polygon) (orb.Point, float64, bool) {
	if len(poly) == 0 || len(poly[0]) < 3 {
		return orb.Point{}, 0, false
	}
	b := poly[0].Bound()
	centre := (b.Min[1] + b.Max[1]) / 2
	lo, hi := b.Min[1], b.Max[1]
	for _, r := range poly {
		for _, pt := range r {
			y := pt[1]
			if y <= centre {
				if y > lo {
					lo = y
				}
			} else if y < hi {
				hi = y
			}
		}
	}
	y := (lo + hi) / 2

	var xs []float64
	for _, r := range poly {
		n := len(r)
		for i := 0; i < n; i++ {
			a, c := r[i], r[(i+1)%n]
			if (a[1] > y) != (c[1] > y) {
				xs = append(xs, a[0]+(y-a[1])*(c[0]-a[0])/(c[1]-a[1]))
			}
		}
	}
	sort.Float64s(xs)
	bw, bi := 0.0, -1
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bw {
			bw, bi = w, i
		}
	}
	if bi < 0 {
		return orb.Point{}, 0, false
	}
	return orb.Point{(xs[bi] + xs[bi+1]) / 2, y}, bw, true
}

func (p *Planar) segmentsOf(polys []orb.Polygon) []segment {
	var out []segment
	for _, poly := range polys {
		for _, r := range poly {
			n := len(r)
			if n < 2 {
				continue
			}
			for i := 0; i+1 < n; i++ {
				out = append(out, p.newSegment(r[i], r[i+1]))
			}
			if r[0] != r[n-1] {
				out = append(out, p.newSegment(r[n-1], r[0]))
			}
		}
	}
	return out
}

func (p *Planar) newSegment(a, b orb.Point) segment {
	bd := orb.Bound{Min: a, Max: a}.Extend(b).Pad(p.tol)
	return segment{a: a, b: b, bound: bd}
}

func intersecting(segs []segment, b orb.Bound) []segment {
	out := segs[:0:0]
	for _, s := range segs {
		if s.bound.Intersects(b) {
			out = append(out, s)
		}
	}
	return out
}

// samples：s 的两端点，以及 s 被 others 切分后各子段的中点
func (p *Planar) samples(s segment, others []segment) []orb.Point {
	ts := []float64{0, 1}
	for _, o := range others {
		if !s.bound.Intersects(o.bound) {
			continue
		}
		ts = p.appendSplits(ts, s, o)
	}
	sort.Float64s(ts)
	out := []orb.Point{s.a, s.b}
	for i := 1; i < len(ts); i++ {
		if ts[i]-ts[i-1] <= 1e-12 {
			continue
		}
		out = append(out, lerp(s.a, s.b, (ts[i-1]+ts[i])/2))
	}
	return out
}

// appendSplits：o 与 s 的接触参数（o 端点落在 s 上，或两段真相交）
func (p *Planar) appendSplits(ts []float64, s, o segment) []float64 {
	for _, q := range [2]orb.Point{o.a, o.b} {
		if t, d := project(q, s.a, s.b); d <= p.tol && t > 0 && t < 1 {
			ts = append(ts, t)
		}
	}
	r := sub(s.b, s.a)
	q := sub(o.b, o.a)
	den := cross(r, q)
	if den == 0 {
		return ts
	}
	ao := sub(o.a, s.a)
	t := cross(ao, q) / den
	u := cross(ao, r) / den
	if t > 0 && t < 1 && u >= 0 && u <= 1 {
		ts = append(ts, t)
	}
	return ts
}

func (p *Planar) onBoundary(pt orb.Point, segs []segment) bool {
	for _, s := range segs {
		if !s.bound.Contains(pt) {
			continue
		}
		if _, d := project(pt, s.a, s.b); d <= p.tol {
			return true
		}
	}
	return false
}

// project：pt 在线段 ab 上的投影参数（截断到 [0,1]）与距离
func project(pt, a, b orb.Point) (float64, float64) {
	ab := sub(b, a)
	l2 := ab[0]*ab[0] + ab[1]*ab[1]
	if l2 == 0 {
		return 0, math.Hypot(pt[0]-a[0], pt[1]-a[1])
	}
	t := ((pt[0]-a[0])*ab[0] + (pt[1]-a[1])*ab[1]) / l2
	t = math.Max(0, math.Min(1, t))
	c := lerp(a, b, t)
	return t, math.Hypot(pt[0]-c[0], pt[1]-c[1])
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

func sub(a, b orb.Point) orb.Point { return orb.Point{a[0] - b[0], a[1] - b[1]} }

func cross(a, b orb.Point) float64 { return a[0]*b[1] - a[1]*b[0] }
