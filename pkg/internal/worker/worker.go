// Package worker 消费 dn.object.stored 事件，驱动评分流水线入库.
//
// 使用示例：
//
//	w, err := worker.New(mqClient, ingest, worker.Options{Concurrency: 4, Retries: 3})
//	if err != nil {
//		return err
//	}
//	go w.Bridge(ctx, s3Client) // 可选：把 MinIO 桶通知转成入库事件
//	return w.Run(ctx)
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/service"
	mqc "github.com/yeisme/datanexus/pkg/internal/storage/mq"
	nlog "github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/queue"
	"github.com/yeisme/datanexus/pkg/tracing"
)

const handlerIngest = "ingest.object_stored"

// Ingester 处理一个对象事件.
type Ingester interface {
	Ingest(ctx context.Context, ref queue.ObjectRef) (*model.Submission, error)
}

// Options worker 参数.
type Options struct {
	// Concurrency 同时评分的对象数上限
	Concurrency int
	// Retries 可重试错误的重试次数
	Retries int
}

// Worker 基于 watermill router 的入库消费者.
type Worker struct {
	router  *message.Router
	ingest  Ingester
	slots   *semaphore.Weighted
	publish message.Publisher
	logger  zerolog.Logger
}

// New 创建 worker 并注册入库处理器.
func New(client *mqc.Client, ingest Ingester, opts Options) (*Worker, error) {
	if client == nil {
		return nil, errors.New("mq client is nil")
	}

	if ingest == nil {
		return nil, errors.New("ingester is nil")
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	router, err := client.NewRouter(opts.Retries)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		router:  router,
		ingest:  ingest,
		slots:   semaphore.NewWeighted(int64(opts.Concurrency)),
		publish: client.Publisher(),
		logger:  nlog.Component("worker"),
	}

	router.AddNoPublisherHandler(handlerIngest, queue.TopicObjectStored, client.Subscriber(), w.Handle)

	return w, nil
}

// Run 阻塞运行直到 ctx 取消.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("topic", queue.TopicObjectStored).Msg("worker started")

	if err := w.router.Run(ctx); err != nil {
		return fmt.Errorf("run router: %w", err)
	}

	return nil
}

// Running router 启动完成后关闭.
func (w *Worker) Running() chan struct{} { return w.router.Running() }

// Close 停止 router.
func (w *Worker) Close() error { return w.router.Close() }

// Handle 处理一条 dn.object.stored 消息.
// 返回 nil 表示确认；只有可重试的错误才返回，由 router 重试后 nack.
func (w *Worker) Handle(msg *message.Message) error {
	env, err := queue.ParseObjectStored(msg)
	if err != nil {
		w.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("drop malformed object event")

		return nil
	}

	ctx := msg.Context()
	if env.Header.TraceID != "" {
		ctx = w.logger.With().Str("trace_id", env.Header.TraceID).Logger().WithContext(ctx)
	}

	ctx, span := tracing.StartSpan(ctx, "worker.ingest")
	defer span.End()

	if err := w.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.slots.Release(1)

	ref := env.Payload.Object
	l := w.logger.With().Str("message_id", msg.UUID).Str("bucket", ref.Bucket).Str("key", ref.ObjectKey).
		Str("source", env.Payload.Source).Logger()

	_, err = w.ingest.Ingest(ctx, ref)

	switch {
	case err == nil:
		return nil
	case !Retryable(err):
		l.Warn().Err(err).Msg("object event skipped")

		return nil
	default:
		span.RecordError(err)
		l.Error().Err(err).Msg("ingest failed")

		return err
	}
}

// Retryable 校验失败、对象不存在、已售出冲突重试也不会成功.
func Retryable(err error) bool {
	return !errors.Is(err, service.ErrValidation) &&
		!errors.Is(err, service.ErrNotFound) &&
		!errors.Is(err, service.ErrConflict)
}
