package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-api/internal/apperr"
	"parcel-api/internal/archive"
	"parcel-api/internal/geometry"
	"parcel-api/internal/parcel"
	"parcel-api/internal/shapefile"
)

const prj = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

func rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{
		{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY},
	}}
}

// makeUpload：写出临时 shapefile 并打成 zip
func makeUpload(t *testing.T, geoms []orb.Geometry) []byte {
	t.Helper()
	dir := t.TempDir()
	recs := make([]shapefile.Record, len(geoms))
	for i, g := range geoms {
		recs[i] = shapefile.Record{Geometry: g, Value: i}
	}
	require.NoError(t, shapefile.Write(filepath.Join(dir, "village.shp"), "row", recs, prj))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ext := range archive.SidecarExts {
		body, err := os.ReadFile(filepath.Join(dir, "village"+ext))
		require.NoError(t, err)
		w, err := zw.Create("village" + ext)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newNumberer(t *testing.T) (*Numberer, string) {
	t.Helper()
	work := t.TempDir()
	ops, err := geometry.New("planar", 1e-9)
	require.NoError(t, err)
	return New(Options{WorkDir: work, MaxExtractBytes: 1 << 20}, parcel.NewEngine(ops, nil), nil), work
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed")
}

func TestProcess_RoundTrip(t *testing.T) {
	n, work := newNumberer(t)
	village := rect(78.0, 21.0, 78.1, 21.1)
	south := rect(78.01, 21.01, 78.02, 21.02)
	northEast := rect(78.05, 21.08, 78.06, 21.09)
	northWest := rect(78.01, 21.08, 78.02, 21.09)
	upload := makeUpload(t, []orb.Geometry{village, south, northEast, northWest})

	res, err := n.Process(context.Background(), "village.zip", bytes.NewReader(upload))
	require.NoError(t, err)
	assertEmptyDir(t, work)

	assert.Equal(t, SuccessMessage, res.Message)
	require.Equal(t, 3, res.Collection.Len())
	assert.Equal(t, northWest, res.Collection.Parcels[0].Geometry)
	assert.Equal(t, northEast, res.Collection.Parcels[1].Geometry)
	assert.Equal(t, south, res.Collection.Parcels[2].Geometry)
	assert.Equal(t, prj, res.Collection.Projection)

	// 解开输出包，几何与编号应与集合完全一致
	out := t.TempDir()
	zr, err := zip.NewReader(bytes.NewReader(res.Archive), int64(len(res.Archive)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		require.NoError(t, os.WriteFile(filepath.Join(out, f.Name), body, 0o600))
	}
	assert.Equal(t, []string{"numbered_parcels.shp", "numbered_parcels.shx", "numbered_parcels.dbf", "numbered_parcels.prj"}, names)

	layer, err := shapefile.Read(filepath.Join(out, "numbered_parcels.shp"))
	require.NoError(t, err)
	require.Len(t, layer.Geometries, 3)
	for i, p := range res.Collection.Parcels {
		assert.Equal(t, p.Geometry, layer.Geometries[i])
		assert.Equal(t, strconv.Itoa(p.ID), layer.Attributes[i][parcel.IDField])
	}
	assert.Equal(t, prj, layer.Projection)
}

func TestProcess_Errors(t *testing.T) {
	village := rect(0, 0, 10, 10)
	cases := []struct {
		name     string
		filename string
		upload   func(t *testing.T) []byte
		kind     apperr.Kind
	}{
		{"not a zip name", "village.rar", func(t *testing.T) []byte { return nil }, apperr.InvalidInputKind},
		{"corrupt zip", "village.zip", func(t *testing.T) []byte { return []byte("PK nope") }, apperr.CorruptArchive},
		{"no shp", "village.zip", func(t *testing.T) []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			w, _ := zw.Create("readme.txt")
			_, _ = w.Write([]byte("hi"))
			require.NoError(t, zw.Close())
			return buf.Bytes()
		}, apperr.MissingDatasetFile},
		{"only village", "village.zip", func(t *testing.T) []byte {
			return makeUpload(t, []orb.Geometry{village})
		}, apperr.InsufficientFeatures},
		{"parcel outside", "village.zip", func(t *testing.T) []byte {
			return makeUpload(t, []orb.Geometry{village, rect(1, 1, 2, 2), rect(9, 9, 11, 11)})
		}, apperr.ContainmentViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, work := newNumberer(t)
			res, err := n.Process(context.Background(), tc.filename, bytes.NewReader(tc.upload(t)))
			assert.Nil(t, res)
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
			assertEmptyDir(t, work)
		})
	}
}

func TestProcess_Cancelled(t *testing.T) {
	n, work := newNumberer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	upload := makeUpload(t, []orb.Geometry{rect(0, 0, 10, 10), rect(1, 1, 2, 2)})

	_, err := n.Process(ctx, "village.zip", bytes.NewReader(upload))
	assert.ErrorIs(t, err, context.Canceled)
	assertEmptyDir(t, work)
}
