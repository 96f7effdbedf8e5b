// 包 service：单次上传的完整处理流水线
// 背景：文件名校验 → 工作目录 → 解包 → 定位 .shp → 读取 → 编号 → 写出 → 打包；各阶段之间检查请求上下文。
// 约束：工作目录在所有退出路径（成功、业务错误、取消、panic）上删除；流水线本身无跨请求状态。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"parcel-api/internal/apperr"
	"parcel-api/internal/archive"
	"parcel-api/internal/logger"
	"parcel-api/internal/metrics"
	"parcel-api/internal/parcel"
	"parcel-api/internal/shapefile"
)

// SuccessMessage：成功响应的固定 message
const SuccessMessage = "Success"

// DetailUnreadable：.shp 存在但无法解析
const DetailUnreadable = "Unable to read shapefile"

// Options：流水线参数
type Options struct {
	WorkDir         string
	MaxExtractBytes int64
	OutputBaseName  string
}

// Result：处理结果；Archive 为输出 zip 原始字节
type Result struct {
	Message    string
	Collection *parcel.Collection
	Archive    []byte
}

// Numberer：编号流水线
type Numberer struct {
	opts   Options
	engine *parcel.Engine
	l      *slog.Logger
}

func New(opts Options, engine *parcel.Engine, l *slog.Logger) *Numberer {
	if opts.OutputBaseName == "" {
		opts.OutputBaseName = "numbered_parcels"
	}
	if l == nil {
		l = slog.Default()
	}
	return &Numberer{opts: opts, engine: engine, l: l}
}

// Process：处理一次上传
func (n *Numberer) Process(ctx context.Context, filename string, upload io.Reader) (*Result, error) {
	l := logger.FromContext(ctx, n.l)
	if err := archive.CheckFilename(filename); err != nil {
		return nil, err
	}
	ws, err := archive.NewWorkspace(n.opts.WorkDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			l.Error("workspace_cleanup_error", "err", cerr)
		}
	}()

	u := &archive.Unpacker{MaxBytes: n.opts.MaxExtractBytes, Logger: l}
	dir, err := u.Unpack(ws, upload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shpPath, err := archive.LocateDatasetFile(dir, l)
	if err != nil {
		return nil, err
	}
	layer, err := shapefile.Read(shpPath)
	if err != nil {
		if errors.Is(err, shapefile.ErrUnsupportedShape) {
			return nil, apperr.Wrap(apperr.UnsupportedGeometry, parcel.DetailUnsupportedGeometry, err)
		}
		return nil, apperr.Wrap(apperr.CorruptArchive, DetailUnreadable, err)
	}
	l.Debug("shapefile_read_ok", "file", filepath.Base(shpPath), "features", len(layer.Geometries), "has_prj", layer.Projection != "")

	ds, err := parcel.NewDataset(layer.Geometries, layer.Projection)
	if err != nil {
		return nil, err
	}
	col, err := n.engine.Number(ds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := n.writeOutput(ws, col)
	if err != nil {
		return nil, err
	}
	metrics.ParcelsNumberedTotal.Add(float64(col.Len()))
	l.Info("parcel_number_ok", "parcels", col.Len(), "archive_bytes", len(data))
	return &Result{Message: SuccessMessage, Collection: col, Archive: data}, nil
}

func (n *Numberer) writeOutput(ws *archive.Workspace, col *parcel.Collection) ([]byte, error) {
	outDir := ws.Path("output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("service: mkdir output: %w", err)
	}
	recs := make([]shapefile.Record, len(col.Parcels))
	for i, p := range col.Parcels {
		recs[i] = shapefile.Record{Geometry: p.Geometry, Value: p.ID}
	}
	path := filepath.Join(outDir, n.opts.OutputBaseName+archive.DatasetExt)
	if err := shapefile.Write(path, parcel.IDField, recs, col.Projection); err != nil {
		return nil, fmt.Errorf("service: write output: %w", err)
	}
	return archive.Pack(outDir, n.opts.OutputBaseName)
}
