// 包 config：集中读取环境变量；.env 由入口通过 godotenv 预先加载
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config：服务运行参数
type Config struct {
	Addr            string
	APIBase         string
	AllowOrigins    []string
	MaxUploadBytes  int64
	MaxExtractBytes int64
	WorkDir         string
	GeometryEngine  string
	Tolerance       float64
	OutputBaseName  string
	RateLimit       bool
	RateLimitQPS    int
	Metrics         bool
	TLS             bool
	TLSCertPath     string
	TLSKeyPath      string
	ShutdownTimeout time.Duration
}

var defaultOrigins = []string{"https://technicalsurveyor.in", "http://localhost"}

// FromEnv：按环境变量构建配置
// 约束：数值类变量解析失败或越界时返回错误，避免静默回退到默认值
func FromEnv() (Config, error) {
	c := Config{
		Addr:           getenv("ADDR", ":8080"),
		APIBase:        strings.TrimRight(os.Getenv("API_BASE"), "/"),
		AllowOrigins:   append([]string(nil), defaultOrigins...),
		WorkDir:        os.Getenv("WORK_DIR"),
		GeometryEngine: getenv("GEOMETRY_ENGINE", "planar"),
		OutputBaseName: getenv("OUTPUT_BASENAME", "numbered_parcels"),
		RateLimit:      os.Getenv("RATE_LIMIT_ENABLED") == "true",
		Metrics:        os.Getenv("METRICS_ENABLED") != "false",
		TLS:            os.Getenv("TLS_ENABLE") == "true",
		TLSCertPath:    getenv("TLS_CERT_PATH", "data/certs/server.crt"),
		TLSKeyPath:     getenv("TLS_KEY_PATH", "data/certs/server.key"),
	}
	if s := os.Getenv("CORS_ALLOW_ORIGINS"); s != "" {
		c.AllowOrigins = splitList(s)
	}
	uploadMB, err := positiveInt("MAX_UPLOAD_MB", 64)
	if err != nil {
		return c, err
	}
	c.MaxUploadBytes = int64(uploadMB) << 20
	extractMB, err := positiveInt("MAX_EXTRACT_MB", 512)
	if err != nil {
		return c, err
	}
	c.MaxExtractBytes = int64(extractMB) << 20
	if c.RateLimitQPS, err = positiveInt("RATE_LIMIT_QPS", 20); err != nil {
		return c, err
	}
	secs, err := positiveInt("SHUTDOWN_TIMEOUT_S", 10)
	if err != nil {
		return c, err
	}
	c.ShutdownTimeout = time.Duration(secs) * time.Second

	// 默认严格判定；容差需显式开启
	if s := os.Getenv("GEOMETRY_TOLERANCE"); s != "" {
		f, e := strconv.ParseFloat(s, 64)
		if e != nil || f < 0 {
			return c, fmt.Errorf("config: GEOMETRY_TOLERANCE=%q: must be a non-negative number", s)
		}
		c.Tolerance = f
	}
	if strings.ContainsAny(c.OutputBaseName, `/\`) {
		return c, fmt.Errorf("config: OUTPUT_BASENAME=%q: must be a bare file name", c.OutputBaseName)
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func positiveInt(k string, def int) (int, error) {
	s := os.Getenv(k)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s=%q: must be a positive integer", k, s)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
