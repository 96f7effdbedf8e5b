// 包 geometry：宗地编号所需的几何谓词（包含判定、面内代表点）
// 背景：编号引擎只依赖 Ops 接口；默认提供纯 Go 的 planar 实现，GEOS 实现位于 geosops 子包并通过构建标签启用。
// 约束：仅支持 Polygon/MultiPolygon；其他类型返回 ErrUnsupported。
package geometry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
)

// ErrUnsupported：几何类型不受支持（点、线、空几何等）
var ErrUnsupported = errors.New("geometry: unsupported geometry type")

// Ops：几何谓词集合
type Ops interface {
	// Within：g 是否严格位于 container 内（g 的任何点都不在 container 外部，且内部相交）
	Within(g, container orb.Geometry) (bool, error)
	// PointOnSurface：返回保证落在 g 内部的一点
	PointOnSurface(g orb.Geometry) (orb.Point, error)
}

// Factory：按容差构建后端
type Factory func(tolerance float64) (Ops, error)

var (
	mu       sync.RWMutex
	backends = map[string]Factory{
		"planar": func(tol float64) (Ops, error) { return NewPlanar(tol), nil },
	}
)

// Register：注册几何后端；同名覆盖
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	backends[name] = f
}

// New：按名称构建后端
func New(name string, tolerance float64) (Ops, error) {
	mu.RLock()
	f, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("geometry: unknown engine %q (available: %v)", name, Names())
	}
	return f(tolerance)
}

// Names：已注册后端名称（排序）
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Polygons：将 Polygon/MultiPolygon 展开为多边形列表
func Polygons(g orb.Geometry) ([]orb.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty polygon", ErrUnsupported)
		}
		return []orb.Polygon{v}, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrUnsupported)
		}
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: null geometry", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, g.GeoJSONType())
	}
}
