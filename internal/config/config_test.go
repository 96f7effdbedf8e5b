package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ADDR", "API_BASE", "CORS_ALLOW_ORIGINS", "MAX_UPLOAD_MB", "MAX_EXTRACT_MB", "WORK_DIR",
		"GEOMETRY_ENGINE", "GEOMETRY_TOLERANCE", "OUTPUT_BASENAME", "RATE_LIMIT_ENABLED",
		"RATE_LIMIT_QPS", "METRICS_ENABLED", "TLS_ENABLE", "TLS_CERT_PATH", "TLS_KEY_PATH",
		"SHUTDOWN_TIMEOUT_S",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "", c.APIBase)
	assert.Equal(t, []string{"https://technicalsurveyor.in", "http://localhost"}, c.AllowOrigins)
	assert.Equal(t, int64(64<<20), c.MaxUploadBytes)
	assert.Equal(t, int64(512<<20), c.MaxExtractBytes)
	assert.Equal(t, "planar", c.GeometryEngine)
	assert.Equal(t, 0.0, c.Tolerance)
	assert.Equal(t, "numbered_parcels", c.OutputBaseName)
	assert.False(t, c.RateLimit)
	assert.Equal(t, 20, c.RateLimitQPS)
	assert.True(t, c.Metrics)
	assert.False(t, c.TLS)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE", "/api/")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,http://b.example")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("GEOMETRY_ENGINE", "geos")
	t.Setenv("GEOMETRY_TOLERANCE", "1e-9")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "3")
	t.Setenv("METRICS_ENABLED", "false")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, []string{"https://a.example", "http://b.example"}, c.AllowOrigins)
	assert.Equal(t, int64(8<<20), c.MaxUploadBytes)
	assert.Equal(t, "geos", c.GeometryEngine)
	assert.Equal(t, 1e-9, c.Tolerance)
	assert.True(t, c.RateLimit)
	assert.Equal(t, 3, c.RateLimitQPS)
	assert.False(t, c.Metrics)
}

func TestFromEnv_Invalid(t *testing.T) {
	for k, v := range map[string]string{
		"MAX_UPLOAD_MB":      "-1",
		"MAX_EXTRACT_MB":     "lots",
		"RATE_LIMIT_QPS":     "0",
		"GEOMETRY_TOLERANCE": "-0.1",
		"OUTPUT_BASENAME":    "../out",
	} {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
