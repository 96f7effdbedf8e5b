//go:build geos

// 包 geosops：基于 libgeos 的几何后端
// 背景：与 shapely/GEOS 的 within 与 representative_point 语义完全一致；需要 cgo 与 libgeos。
// 约束：仅在 `-tags geos` 构建时编译；导入即注册名为 "geos" 的后端。
package geosops

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"

	"parcel-api/internal/geometry"
)

func init() {
	geometry.Register("geos", func(float64) (geometry.Ops, error) { return New(), nil })
}

// Ops：GEOS 上下文封装；Context 内部串行化调用
type Ops struct {
	mu  sync.Mutex
	ctx *geos.Context
}

func New() *Ops {
	return &Ops{ctx: geos.NewContext()}
}

func (o *Ops) geom(g orb.Geometry) (*geos.Geom, error) {
	if _, err := geometry.Polygons(g); err != nil {
		return nil, err
	}
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("geosops: wkb encode: %w", err)
	}
	gg, err := o.ctx.NewGeomFromWKB(b)
	if err != nil {
		return nil, fmt.Errorf("geosops: wkb decode: %w", err)
	}
	return gg, nil
}

func (o *Ops) Within(g, container orb.Geometry) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, err := o.geom(g)
	if err != nil {
		return false, err
	}
	b, err := o.geom(container)
	if err != nil {
		return false, err
	}
	return a.Within(b), nil
}

func (o *Ops) PointOnSurface(g orb.Geometry) (orb.Point, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, err := o.geom(g)
	if err != nil {
		return orb.Point{}, err
	}
	pt := a.PointOnSurface()
	if pt == nil || pt.IsEmpty() {
		return orb.Point{}, geometry.ErrUnsupported
	}
	return orb.Point{pt.X(), pt.Y()}, nil
}
