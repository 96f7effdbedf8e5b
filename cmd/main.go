// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"parcel-api/internal/api"
	"parcel-api/internal/config"
	"parcel-api/internal/geometry"
	"parcel-api/internal/logger"
	"parcel-api/internal/metrics"
	"parcel-api/internal/middleware"
	"parcel-api/internal/parcel"
	"parcel-api/internal/service"
	"parcel-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded", "api_base", cfg.APIBase, "engine", cfg.GeometryEngine, "origins", cfg.AllowOrigins)

	ops, err := geometry.New(cfg.GeometryEngine, cfg.Tolerance)
	if err != nil {
		l.Error("geometry_engine_error", "err", err, "available", geometry.Names())
		os.Exit(1)
	}
	l.Info("geometry_engine_ready", "engine", cfg.GeometryEngine)

	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			l.Error("work_dir_error", "dir", cfg.WorkDir, "err", err)
			os.Exit(1)
		}
	}
	svc := service.New(service.Options{
		WorkDir:         cfg.WorkDir,
		MaxExtractBytes: cfg.MaxExtractBytes,
		OutputBaseName:  cfg.OutputBaseName,
	}, parcel.NewEngine(ops, l), l)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, cfg.MaxUploadBytes, l)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	if cfg.Metrics {
		mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	}

	var handler http.Handler = mux
	if cfg.RateLimit {
		handler = middleware.RateLimit(middleware.NewTokenBucket(cfg.RateLimitQPS))(handler)
		l.Info("rate_limit_enabled", "qps", cfg.RateLimitQPS)
	}
	handler = middleware.NewCORS(cfg.AllowOrigins, l).Wrap(handler)
	handler = logger.AccessMiddleware(l)(handler)

	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		l.Info("shutdown_begin")
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if cfg.TLS {
		created, err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		if created {
			l.Info("tls_cert_generated", "cert", cfg.TLSCertPath)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		waitServe(s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath), drained)
		return
	}
	l.Info("listening", "addr", cfg.Addr)
	waitServe(s.ListenAndServe(), drained)
}

// waitServe：监听异常直接退出；正常关闭时等待在途请求处理完毕
func waitServe(err error, drained <-chan struct{}) {
	if !errors.Is(err, http.ErrServerClosed) {
		logger.L().Error("serve_error", "err", err)
		os.Exit(1)
	}
	<-drained
	logger.L().Info("shutdown_ok")
}
