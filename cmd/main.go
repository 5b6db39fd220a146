// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elevation-api/internal/api"
	"elevation-api/internal/config"
	"elevation-api/internal/elevation"
	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
	"elevation-api/internal/middleware"
	"elevation-api/internal/migrate"
	"elevation-api/internal/pool"
	"elevation-api/internal/raster"
	"elevation-api/internal/registry"
	"elevation-api/internal/store"
	"elevation-api/internal/utils"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.FromEnv()
	l.Debug("config_loaded", "endpoint", cfg.Endpoint, "data_config", cfg.DataConfig, "open_interfaces", cfg.OpenInterfaces)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 数据集配置与摘要：任一数据集不可用即退出，不以残缺路由启动
	dc, err := config.ReadDataConfig(cfg.DataConfig)
	if err != nil {
		l.Error("data_config_error", "path", cfg.DataConfig, "err", err)
		os.Exit(1)
	}
	gcs, err := dc.GroupConfigs(cfg.AlwaysRebuildSummary)
	if err != nil {
		l.Error("summary_error", "err", err)
		os.Exit(1)
	}
	reg, err := registry.Build(gcs)
	if err != nil {
		l.Error("registry_build_error", "err", err)
		os.Exit(1)
	}
	l.Info("registry_build_ok", "groups", len(reg.Groups()), "shards", len(reg.Paths()))

	p := pool.New(cfg.OpenInterfaces, raster.NewHGTOpener(dc.Projections()))
	svc := elevation.NewService(elevation.NewRouter(reg, p), elevation.Options{
		MaxPoints: cfg.MaxLocations,
		Workers:   cfg.LookupWorkers,
	})

	var rc *redis.Client
	if cfg.RedisEnabled {
		if rc, err = utils.OpenRedisFromEnv(ctx); err != nil {
			l.Error("redis_ping_error", "err", err)
			rc = nil
		} else {
			defer rc.Close()
		}
	} else {
		l.Info("redis_disabled")
	}

	st := store.AttachDB(nil)
	if cfg.StatsEnabled {
		if db, err := utils.OpenPostgresFromEnv(ctx); err != nil {
			l.Error("db_open_error", "err", err)
		} else if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			db.Close()
		} else {
			st = store.AttachDB(db)
			defer st.Close()
		}
	} else {
		l.Info("stats_disabled")
	}

	base := cfg.BasePath()
	mux := api.BuildRoutes(api.Deps{
		Endpoint: cfg.Endpoint,
		Base:     base,
		Service:  svc,
		Registry: reg,
		Pool:     p,
		Store:    st,
		Visitors: api.NewVisitorFilter(rc),
	})
	mux.Handle("GET "+base+"/metrics", metrics.Handler())

	var handler http.Handler = mux
	if cfg.RateLimitEnabled {
		opts := middleware.Options{
			QPS:    cfg.RateLimitQPS,
			Burst:  cfg.RateLimitBurst,
			Window: time.Duration(cfg.RateLimitWindow) * time.Second,
			Limit:  int64(cfg.RateLimitPerWin),
		}
		if cfg.RateLimitRedis && rc != nil {
			opts.Shared = middleware.NewRedisCounter(rc)
		}
		handler = middleware.RateLimit(opts)(handler)
		l.Info("ratelimit_enabled", "qps", opts.QPS, "shared", opts.Shared != nil)
	}
	handler = logger.AccessMiddleware(l)(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled {
			if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "elevation-api.local"); err != nil {
				errc <- err
				return
			}
			l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath, "endpoint", cfg.Endpoint)
			errc <- s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		l.Info("listening", "addr", cfg.Addr, "endpoint", cfg.Endpoint)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		cancel()
	}
	// 关闭全部已打开的数据集句柄
	if err := p.Close(); err != nil {
		l.Error("pool_close_error", "err", err)
	}
	l.Info("shutdown_done")
}
