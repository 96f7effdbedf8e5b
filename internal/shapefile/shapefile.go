// 包 shapefile：ESRI Shapefile 读写（.shp/.shx/.dbf/.prj）
// 背景：读取为 orb 几何并保留记录顺序；写出带单一数值属性的面图层。
// 约束：仅支持 Polygon/PolygonZ/PolygonM 记录；Z/M 值读入时丢弃。环方向遵循规范：外环顺时针，洞逆时针。
package shapefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// ErrUnsupportedShape：非面记录
var ErrUnsupportedShape = errors.New("shapefile: unsupported shape type")

// Layer：读取结果
// Attributes 与 Geometries 一一对应；无 .dbf 时为 nil
type Layer struct {
	Geometries []orb.Geometry
	Attributes []map[string]string
	Projection string
}

// Read：读取 .shp 及其同名 .dbf/.prj
func Read(path string) (*Layer, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shapefile: open %s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	// go-shp 固定按小写 .dbf 打开属性表
	base := strings.TrimSuffix(path, filepath.Ext(path))
	hasDBF := fileExists(base + ".dbf")
	var fields []shp.Field
	if hasDBF {
		fields = r.Fields()
	}

	layer := &Layer{}
	for r.Next() {
		row, s := r.Shape()
		g, err := toOrb(s)
		if err != nil {
			return nil, fmt.Errorf("shapefile: record %d: %w", row, err)
		}
		layer.Geometries = append(layer.Geometries, g)
		if hasDBF {
			attrs := make(map[string]string, len(fields))
			for i, f := range fields {
				attrs[f.String()] = strings.Trim(r.ReadAttribute(row, i), " \x00")
			}
			layer.Attributes = append(layer.Attributes, attrs)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("shapefile: read %s: %w", filepath.Base(path), err)
	}
	if prj, err := os.ReadFile(findSidecar(base, ".prj")); err == nil {
		layer.Projection = strings.TrimSpace(string(prj))
	}
	return layer, nil
}

// Record：待写出的面要素
type Record struct {
	Geometry orb.Geometry
	Value    int
}

// Write：写出 path（.shp）及同名 .shx/.dbf；projection 非空时写 .prj
func Write(path, field string, records []Record, projection string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("shapefile: create %s: %w", filepath.Base(path), err)
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()
	if err := w.SetFields([]shp.Field{shp.NumberField(field, 10)}); err != nil {
		return fmt.Errorf("shapefile: fields: %w", err)
	}
	for i, rec := range records {
		poly, err := fromOrb(rec.Geometry)
		if err != nil {
			return fmt.Errorf("shapefile: record %d: %w", i, err)
		}
		row := w.Write(poly)
		if err := w.WriteAttribute(int(row), 0, rec.Value); err != nil {
			return fmt.Errorf("shapefile: record %d attribute: %w", i, err)
		}
	}
	w.Close()
	closed = true

	// go-shp 建表时以去掉扩展名的路径直接拼接 "dbf"，少了点号
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if fileExists(base + "dbf") {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return fmt.Errorf("shapefile: rename dbf: %w", err)
		}
	}
	if projection != "" {
		prj := base + ".prj"
		if err := os.WriteFile(prj, []byte(projection), 0o644); err != nil {
			return fmt.Errorf("shapefile: write prj: %w", err)
		}
	}
	return nil
}

// findSidecar：优先小写扩展名，其次大写
func findSidecar(base, ext string) string {
	p := base + ext
	if fileExists(p) {
		return p
	}
	if up := base + strings.ToUpper(ext); fileExists(up) {
		return up
	}
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
