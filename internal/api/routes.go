// 包 api：集中注册 HTTP API 路由，主入口挂载到 API_BASE 前缀
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"parcel-api/internal/apperr"
	"parcel-api/internal/logger"
	"parcel-api/internal/metrics"
	"parcel-api/internal/service"
)

// UploadField：multipart 表单中的文件字段名
const UploadField = "file"

// Processor：上传处理契约，由 service.Numberer 实现
type Processor interface {
	Process(ctx context.Context, filename string, upload io.Reader) (*service.Result, error)
}

// BuildRoutes：构建并返回 API 路由
// maxUpload 为请求体上限（字节），<=0 表示不限制
func BuildRoutes(p Processor, maxUpload int64, l *slog.Logger) *http.ServeMux {
	apiMux := http.NewServeMux()
	apiMux.Handle("/process-shapefile/", recoverJSON(l, processHandler(p, maxUpload, l)))
	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cache-control", "no-store")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return apiMux
}

func processHandler(p Processor, maxUpload int64, base *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(r.Context(), base)
		start := time.Now()
		outcome := "internal"
		defer func() {
			metrics.RequestsTotal.WithLabelValues(outcome).Inc()
			metrics.RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
		}()

		if r.Method != http.MethodPost {
			outcome = "method_not_allowed"
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResult{Detail: "Method Not Allowed"})
			return
		}
		if maxUpload > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		}
		file, hdr, err := r.FormFile(UploadField)
		if err != nil {
			if isTooLarge(err) {
				outcome = "too_large"
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResult{Detail: "Upload too large"})
				return
			}
			outcome = "missing_file"
			l.Debug("upload_form_error", "err", err)
			writeJSON(w, http.StatusUnprocessableEntity, errorResult{Detail: "Field required: " + UploadField})
			return
		}
		defer file.Close()
		metrics.UploadBytes.Observe(float64(hdr.Size))

		res, err := p.Process(r.Context(), hdr.Filename, file)
		if err != nil {
			if kind, ok := apperr.KindOf(err); ok {
				outcome = string(kind)
				l.Info("process_rejected", "kind", kind, "file", hdr.Filename, "err", err)
				writeJSON(w, http.StatusBadRequest, errorResult{Detail: apperr.DetailOf(err)})
				return
			}
			if errors.Is(err, context.Canceled) {
				outcome = "cancelled"
				l.Info("process_cancelled", "file", hdr.Filename)
				return
			}
			l.Error("process_error", "file", hdr.Filename, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResult{Detail: "Internal Server Error"})
			return
		}
		outcome = "ok"
		w.Header().Set("cache-control", "no-store")
		writeJSON(w, http.StatusOK, processResult{
			Message:  res.Message,
			GeoJSON:  res.Collection.FeatureCollection(),
			Download: hex.EncodeToString(res.Archive),
		})
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// recoverJSON：处理过程中的 panic 统一返回 500；工作目录由流水线内的 defer 清理
func recoverJSON(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.FromContext(r.Context(), l).Error("process_panic", "panic", v)
				writeJSON(w, http.StatusInternalServerError, errorResult{Detail: "Internal Server Error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
