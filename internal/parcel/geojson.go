package parcel

import (
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection：编码为 GeoJSON 要素集合
// 约束：properties 仅含 parcel_id；要素 id 为源文件行号字符串；附带整体 bbox
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range c.Parcels {
		f := geojson.NewFeature(p.Geometry)
		f.ID = strconv.Itoa(p.SourceIndex)
		f.Properties[IDField] = p.ID
		fc.Append(f)
	}
	if len(c.Parcels) > 0 {
		fc.BBox = geojson.NewBBox(c.Bound())
	}
	return fc
}
