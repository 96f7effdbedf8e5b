package api

import "github.com/paulmach/orb/geojson"

// 文档注释：成功响应结构（对外）
// 约束：download 为输出 zip 的十六进制字符串；字段名与前端约定一致，新增字段需评估兼容性。
type processResult struct {
	Message  string                     `json:"message"`
	GeoJSON  *geojson.FeatureCollection `json:"geojson"`
	Download string                     `json:"download"`
}

// 错误响应：仅含 detail 文本
type errorResult struct {
	Detail string `json:"detail"`
}
