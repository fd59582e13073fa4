// Package app 组装 HTTP 服务、入库消费者与定时任务.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/datanexus/pkg/api"
	"github.com/yeisme/datanexus/pkg/internal/jobs"
	"github.com/yeisme/datanexus/pkg/internal/worker"
	"github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/metrics"
	"github.com/yeisme/datanexus/pkg/middleware"
	"github.com/yeisme/datanexus/pkg/scheduler"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Engine *gin.Engine
	rt     *Runtime
	sched  *scheduler.Scheduler
	worker *worker.Worker
}

// NewApp 基于已初始化的 Runtime 构建 HTTP 引擎，并按配置准备定时任务与内嵌消费者.
func NewApp(rt *Runtime) (*App, error) {
	cfg := rt.Config

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, rt.Manager, cfg.Jobs, rt.Market()); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.CORSMiddleware(cfg.Server),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.AuthMiddleware(cfg.Auth),
		middleware.RoleMiddleware(),
		middleware.StorageMiddleware(rt.Manager),
		middleware.SchedulerMiddleware(sched),
	)

	api.RegisterGroup(engine, cfg)

	if cfg.Metrics.Enabled {
		_ = metrics.StartMetricsServer(cfg.Metrics, engine)
	}

	a := &App{Engine: engine, rt: rt, sched: sched}

	if cfg.Worker.Embedded {
		if a.worker, err = rt.NewWorker(); err != nil {
			return nil, fmt.Errorf("init worker: %w", err)
		}
	}

	return a, nil
}

// Run 启动 HTTP 服务、定时任务与内嵌消费者，ctx 取消后优雅退出.
func (a *App) Run(ctx context.Context) error {
	cfg := a.rt.Config
	logger := a.rt.Logger

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
		WriteTimeout:      cfg.Server.GetTimeoutDuration(),
	}

	g, ctx := errgroup.WithContext(ctx)

	a.sched.Start()

	if a.worker != nil {
		g.Go(func() error { return a.worker.Run(ctx) })
		a.rt.StartBridge(ctx, a.worker)
	}

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.sched.Stop(); err != nil {
			logger.Warn().Err(err).Msg("stop scheduler")
		}

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
