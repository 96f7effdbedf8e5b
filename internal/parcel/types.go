// 包 parcel：宗地编号引擎
// 背景：输入数据集的首个要素为村界，其余为宗地；校验全部宗地位于村界内后按阅读顺序（自北向南、自西向东）编号。
// 约束：单请求内同步执行，无共享状态；任一校验失败即整体拒绝，不产生部分结果。
package parcel

import (
	"github.com/paulmach/orb"

	"parcel-api/internal/apperr"
)

// 对外文本与上游服务保持一致
const (
	DetailInsufficientFeatures = "Shapefile must have village and parcels"
	DetailContainment          = "Parcels outside village"
	DetailUnsupportedGeometry  = "Only polygon geometries are supported"
)

// IDField：输出属性名
const IDField = "parcel_id"

// Dataset：一次请求读取的全部要素
// Boundary 为村界；Parcels 按源文件顺序排列；Projection 为 .prj 的 WKT（可为空）
type Dataset struct {
	Boundary   orb.Geometry
	Parcels    []orb.Geometry
	Projection string
}

// NewDataset：按“首要素为村界”的约定拆分有序要素列表
func NewDataset(features []orb.Geometry, projection string) (*Dataset, error) {
	if len(features) < 2 {
		return nil, apperr.New(apperr.InsufficientFeatures, DetailInsufficientFeatures)
	}
	parcels := make([]orb.Geometry, len(features)-1)
	copy(parcels, features[1:])
	return &Dataset{Boundary: features[0], Parcels: parcels, Projection: projection}, nil
}

// Numbered：已编号宗地
// SourceIndex 为该要素在源文件中的行号（村界为 0，宗地自 1 起）
type Numbered struct {
	ID          int
	Geometry    orb.Geometry
	SourceIndex int
}

// Collection：按编号顺序排列的结果
type Collection struct {
	Parcels    []Numbered
	Projection string
}

// Len：宗地数量
func (c *Collection) Len() int { return len(c.Parcels) }

// Bound：全部宗地的包围盒
func (c *Collection) Bound() orb.Bound {
	var b orb.Bound
	for i, p := range c.Parcels {
		if i == 0 {
			b = p.Geometry.Bound()
			continue
		}
		b = b.Union(p.Geometry.Bound())
	}
	return b
}
