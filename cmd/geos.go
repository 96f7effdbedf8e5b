//go:build geos

package main

// 使用 -tags geos 构建时注册 GEOS 后端（需要 cgo 与 libgeos）
import _ "parcel-api/internal/geometry/geosops"
