package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-api/internal/apperr"
	"parcel-api/internal/archive"
	"parcel-api/internal/geometry"
	"parcel-api/internal/parcel"
	"parcel-api/internal/service"
	"parcel-api/internal/shapefile"
)

type fakeProcessor struct {
	res     *service.Result
	err     error
	explode bool
	name    string
	body    []byte
}

func (f *fakeProcessor) Process(_ context.Context, filename string, upload io.Reader) (*service.Result, error) {
	if f.explode {
		panic("geometry backend exploded")
	}
	f.name = filename
	f.body, _ = io.ReadAll(upload)
	return f.res, f.err
}

func multipartRequest(t *testing.T, field, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/process-shapefile/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProcess_Success(t *testing.T) {
	col := &parcel.Collection{Parcels: []parcel.Numbered{{
		ID:          1,
		Geometry:    orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
		SourceIndex: 1,
	}}}
	fp := &fakeProcessor{res: &service.Result{Message: "Success", Collection: col, Archive: []byte{0x50, 0x4b, 0x03}}}
	mux := BuildRoutes(fp, 1<<20, slog.Default())

	rec := serve(mux, multipartRequest(t, UploadField, "village.zip", []byte("zipbytes")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "village.zip", fp.name)
	assert.Equal(t, "zipbytes", string(fp.body))

	var got struct {
		Message  string          `json:"message"`
		GeoJSON  json.RawMessage `json:"geojson"`
		Download string          `json:"download"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Success", got.Message)
	assert.Equal(t, "504b03", got.Download)
	assert.Contains(t, string(got.GeoJSON), `"parcel_id":1`)
}

func TestProcess_BusinessErrorIs400(t *testing.T) {
	fp := &fakeProcessor{err: apperr.New(apperr.ContainmentViolation, "Parcels outside village")}
	rec := serve(BuildRoutes(fp, 0, slog.Default()), multipartRequest(t, UploadField, "v.zip", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Parcels outside village"}`, rec.Body.String())
}

func TestProcess_InternalErrorIs500(t *testing.T) {
	fp := &fakeProcessor{err: errors.New("disk full")}
	rec := serve(BuildRoutes(fp, 0, slog.Default()), multipartRequest(t, UploadField, "v.zip", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
}

func TestProcess_PanicIs500(t *testing.T) {
	fp := &fakeProcessor{explode: true}
	rec := serve(BuildRoutes(fp, 0, slog.Default()), multipartRequest(t, UploadField, "v.zip", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProcess_MethodAndForm(t *testing.T) {
	mux := BuildRoutes(&fakeProcessor{}, 0, slog.Default())

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/process-shapefile/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = serve(mux, multipartRequest(t, "upload", "v.zip", []byte("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProcess_TooLarge(t *testing.T) {
	mux := BuildRoutes(&fakeProcessor{}, 64, slog.Default())
	rec := serve(mux, multipartRequest(t, UploadField, "v.zip", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := serve(BuildRoutes(&fakeProcessor{}, 0, slog.Default()), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{
		{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY},
	}}
}

func TestProcess_EndToEnd(t *testing.T) {
	src := t.TempDir()
	geoms := []orb.Geometry{rect(0, 0, 100, 100), rect(10, 10, 20, 20), rect(10, 80, 20, 90), rect(60, 80, 70, 90)}
	recs := make([]shapefile.Record, len(geoms))
	for i, g := range geoms {
		recs[i] = shapefile.Record{Geometry: g, Value: i}
	}
	require.NoError(t, shapefile.Write(filepath.Join(src, "plots.shp"), "fid", recs, ""))
	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		body, err := os.ReadFile(filepath.Join(src, "plots"+ext))
		require.NoError(t, err)
		w, err := zw.Create("plots" + ext)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	ops, err := geometry.New("planar", 1e-9)
	require.NoError(t, err)
	work := t.TempDir()
	svc := service.New(service.Options{WorkDir: work}, parcel.NewEngine(ops, nil), nil)
	mux := BuildRoutes(svc, 1<<20, slog.Default())

	rec := serve(mux, multipartRequest(t, UploadField, "plots.zip", zbuf.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Message string `json:"message"`
		GeoJSON struct {
			Features []struct {
				ID         string         `json:"id"`
				Properties map[string]any `json:"properties"`
			} `json:"features"`
		} `json:"geojson"`
		Download string `json:"download"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Success", got.Message)
	require.Len(t, got.GeoJSON.Features, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{got.GeoJSON.Features[0].ID, got.GeoJSON.Features[1].ID, got.GeoJSON.Features[2].ID})
	for i, f := range got.GeoJSON.Features {
		assert.Equal(t, map[string]any{"parcel_id": float64(i + 1)}, f.Properties)
	}

	raw, err := hex.DecodeString(got.Download)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"numbered_parcels.shp", "numbered_parcels.shx", "numbered_parcels.dbf"}, names)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)

	rec = serve(mux, multipartRequest(t, UploadField, "plots.shp", zbuf.Bytes()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"`+archive.DetailInvalidKind+`"}`, rec.Body.String())
}
