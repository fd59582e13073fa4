package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/scoring"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage"
	"github.com/yeisme/datanexus/pkg/internal/worker"
	"github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/metrics"
	"github.com/yeisme/datanexus/pkg/tracing"
)

// Runtime 进程级依赖：配置、存储客户端与评分流水线.
// serve、worker、score、settle 子命令共用同一套初始化.
type Runtime struct {
	Config   *configs.AppConfig
	Manager  *storage.Manager
	Oracles  oracle.Set
	Pipeline *scoring.Pipeline
	Logger   zerolog.Logger
}

// Bootstrap 初始化日志、追踪、监控、存储与预言机，调用前需已通过 configs.InitConfig 加载配置.
func Bootstrap(ctx context.Context) (*Runtime, error) {
	cfg := configs.GetConfig()

	log.Init()
	logger := log.Component("app")

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(ctx, manager.GetDBClient().GetDB()); err != nil {
			_ = manager.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	set, pipeline, err := NewPipeline(cfg)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	logger.Info().Strs("oracles", set.Configured()).Str("on_error", string(cfg.Scoring.OnError)).Msg("scoring oracles ready")

	return &Runtime{
		Config:   cfg,
		Manager:  manager,
		Oracles:  set,
		Pipeline: pipeline,
		Logger:   logger,
	}, nil
}

// NewPipeline 只构建预言机与评分流水线，不连接存储，供离线评分使用.
func NewPipeline(cfg *configs.AppConfig) (oracle.Set, *scoring.Pipeline, error) {
	set, err := oracle.NewSet(cfg.Oracle, nil)
	if err != nil {
		return oracle.Set{}, nil, fmt.Errorf("init oracles: %w", err)
	}

	return set, scoring.NewPipeline(set, cfg.Oracle, cfg.Scoring), nil
}

// Migrate 创建或更新表结构.
func (r *Runtime) Migrate(ctx context.Context) error {
	dbc := r.Manager.GetDBClient()
	if dbc == nil {
		return errors.New("database not configured")
	}

	return repo.Migrate(ctx, dbc.GetDB())
}

func (r *Runtime) submissions() *repo.Submissions {
	if dbc := r.Manager.GetDBClient(); dbc != nil {
		return repo.NewSubmissions(dbc.GetDB())
	}

	return nil
}

func (r *Runtime) summaryCache() *cache.Cache {
	if kvc := r.Manager.GetKVClient(); kvc != nil {
		return cache.New(kvc, "market")
	}

	return nil
}

// Ingest 构造入库服务.
func (r *Runtime) Ingest() *service.IngestService {
	var objects service.ObjectStore
	if s3c := r.Manager.GetS3Client(); s3c != nil {
		objects = s3c
	}

	return service.NewIngestService(r.submissions(), objects, r.publisher(), r.summaryCache(), r.Pipeline, r.Config.Events)
}

// Market 构造市场结算服务.
func (r *Runtime) Market() *service.MarketService {
	return service.NewMarketService(r.submissions(), r.publisher(), r.summaryCache(), r.Config.Market, r.Config.Events)
}

// NewWorker 基于 MQ 客户端构造入库消费者.
func (r *Runtime) NewWorker() (*worker.Worker, error) {
	return worker.New(r.Manager.GetMQClient(), r.Ingest(), worker.Options{
		Concurrency: r.Config.Scoring.Concurrency,
		Retries:     r.Config.Worker.Retries,
	})
}

// StartBridge 按配置启动桶通知桥接，未配置对象存储时跳过.
func (r *Runtime) StartBridge(ctx context.Context, w *worker.Worker) {
	s3c := r.Manager.GetS3Client()
	if !r.Config.Worker.Bridge || s3c == nil {
		return
	}

	r.Logger.Info().Str("bucket", s3c.UploadBucket()).Msg("listening for bucket notifications")

	go w.Bridge(ctx, s3c)
}

func (r *Runtime) publisher() message.Publisher {
	if mqc := r.Manager.GetMQClient(); mqc != nil {
		return mqc.Publisher()
	}

	return nil
}

// Close 释放存储连接并刷新追踪数据.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	if err := r.Manager.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
