package parcel

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"

	"parcel-api/internal/apperr"
	"parcel-api/internal/geometry"
)

// Engine：编号引擎；ops 提供包含判定与面内点
type Engine struct {
	ops geometry.Ops
	l   *slog.Logger
}

func NewEngine(ops geometry.Ops, l *slog.Logger) *Engine {
	if l == nil {
		l = slog.Default()
	}
	return &Engine{ops: ops, l: l}
}

type anchored struct {
	geom   orb.Geometry
	anchor orb.Point
	source int
}

// 文档注释：执行编号
// 步骤：要素数校验 → 包含校验（全部或无）→ 计算代表点 → 稳定排序（y 降序，x 升序）→ 自 1 起连续编号
// 异常：InsufficientFeatures / ContainmentViolation / UnsupportedGeometry，均为整体拒绝
func (e *Engine) Number(ds *Dataset) (*Collection, error) {
	if ds == nil || ds.Boundary == nil || len(ds.Parcels) == 0 {
		return nil, apperr.New(apperr.InsufficientFeatures, DetailInsufficientFeatures)
	}
	if _, err := geometry.Polygons(ds.Boundary); err != nil {
		return nil, apperr.Wrap(apperr.UnsupportedGeometry, DetailUnsupportedGeometry, err)
	}

	var outside []int
	for i, g := range ds.Parcels {
		ok, err := e.ops.Within(g, ds.Boundary)
		if err != nil {
			return nil, classify(err, i+1)
		}
		if !ok {
			outside = append(outside, i+1)
		}
	}
	if len(outside) > 0 {
		e.l.Info("parcel_containment_violation", "count", len(outside), "rows", outside)
		return nil, apperr.Wrap(apperr.ContainmentViolation, DetailContainment,
			fmt.Errorf("%d of %d parcels not within boundary", len(outside), len(ds.Parcels)))
	}

	items := make([]anchored, len(ds.Parcels))
	for i, g := range ds.Parcels {
		pt, err := e.ops.PointOnSurface(g)
		if err != nil {
			return nil, classify(err, i+1)
		}
		items[i] = anchored{geom: g, anchor: pt, source: i + 1}
	}
	sortReadingOrder(items)

	out := &Collection{Parcels: make([]Numbered, len(items)), Projection: ds.Projection}
	for i, it := range items {
		out.Parcels[i] = Numbered{ID: i + 1, Geometry: it.geom, SourceIndex: it.source}
	}
	e.l.Debug("parcel_number_ok", "parcels", len(out.Parcels))
	return out, nil
}

// sortReadingOrder：北在前、西在前；坐标完全相同的保持源顺序
func sortReadingOrder(items []anchored) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].anchor, items[j].anchor
		if a.Y() != b.Y() {
			return a.Y() > b.Y()
		}
		return a.X() < b.X()
	})
}

func classify(err error, row int) error {
	if errors.Is(err, geometry.ErrUnsupported) {
		return apperr.Wrap(apperr.UnsupportedGeometry, DetailUnsupportedGeometry, fmt.Errorf("row %d: %w", row, err))
	}
	return fmt.Errorf("parcel: row %d: %w", row, err)
}
