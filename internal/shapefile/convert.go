package shapefile

import (
	"fmt"
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func toOrb(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case *shp.Polygon:
		return partsToOrb(v.Parts, v.Points)
	case *shp.PolygonZ:
		return partsToOrb(v.Parts, v.Points)
	case *shp.PolygonM:
		return partsToOrb(v.Parts, v.Points)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedShape, s)
	}
}

// partsToOrb：按环方向分组；顺时针环为外环，逆时针环归入包含它的最小外环
// 约束：首环即使为逆时针也视为外环；找不到包含外环的洞退回到其前一个外环；坐标原样保留
func partsToOrb(parts []int32, pts []shp.Point) (orb.Geometry, error) {
	var rings []orb.Ring
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			return nil, fmt.Errorf("%w: bad part offsets", ErrUnsupportedShape)
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range pts[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) > 0 {
			rings = append(rings, ring)
		}
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedShape)
	}

	var polys []orb.Polygon
	var holes []int
	// prev[i]：第 i 个环之前最近的外环下标
	prev := make([]int, len(rings))
	for i, r := range rings {
		if i == 0 || r.Orientation() != orb.CCW {
			polys = append(polys, orb.Polygon{r})
		} else {
			holes = append(holes, i)
		}
		prev[i] = len(polys) - 1
	}
	for _, hi := range holes {
		h := rings[hi]
		owner, ownerArea := prev[hi], math.Inf(1)
		for pi, poly := range polys {
			if !planar.RingContains(poly[0], h[0]) {
				continue
			}
			if a := math.Abs(planar.Area(poly[0])); a < ownerArea {
				owner, ownerArea = pi, a
			}
		}
		polys[owner] = append(polys[owner], h)
	}
	if len(polys) == 1 {
		return polys[0], nil
	}
	return orb.MultiPolygon(polys), nil
}

func fromOrb(g orb.Geometry) (*shp.Polygon, error) {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedShape, g)
	}
	var parts [][]shp.Point
	for _, poly := range polys {
		for ri, ring := range poly {
			if len(ring) == 0 {
				continue
			}
			want := orb.CCW
			if ri == 0 {
				want = orb.CW
			}
			parts = append(parts, toShpRing(ring, want))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedShape)
	}
	pl := shp.NewPolyLine(parts)
	poly := shp.Polygon(*pl)
	return &poly, nil
}

// toShpRing：按目标方向输出闭合环，必要时反转
func toShpRing(ring orb.Ring, want orb.Orientation) []shp.Point {
	o := ring.Orientation()
	reverse := o != 0 && o != want
	out := make([]shp.Point, 0, len(ring)+1)
	for i := range ring {
		p := ring[i]
		if reverse {
			p = ring[len(ring)-1-i]
		}
		out = append(out, shp.Point{X: p[0], Y: p[1]})
	}
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}
