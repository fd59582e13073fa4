// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage"
	"github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/queue"
	"github.com/yeisme/datanexus/pkg/scheduler"
)

// UploadLister 列出上传区对象.
type UploadLister interface {
	ListUploads(ctx context.Context, prefix string, limit int) ([]minio.ObjectInfo, error)
	UploadBucket() string
}

// Reconciler 为上传区中尚未入库（或 etag 已变化）的对象补发入库事件.
type Reconciler struct {
	Lister UploadLister
	Repo   *repo.Submissions
	Pub    message.Publisher
	Limit  int
}

// Run 执行一次补偿扫描，返回补发的事件数.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	objs, err := r.Lister.ListUploads(ctx, "", r.Limit)
	if err != nil && len(objs) == 0 {
		return 0, err
	}

	bucket := r.Lister.UploadBucket()

	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}

	known, kerr := r.Repo.KnownObjects(ctx, bucket, keys)
	if kerr != nil {
		return 0, kerr
	}

	sent := 0

	for _, o := range objs {
		if etag, ok := known[o.Key]; ok && etag == o.ETag {
			continue
		}

		// 消息 ID 由 bucket|key|etag 决定，与桶通知重复时由 JetStream 去重
		perr := queue.PublishObjectStored(r.Pub, queue.ObjectStoredPayload{
			Object: queue.ObjectRef{
				Bucket:       bucket,
				ObjectKey:    o.Key,
				ETag:         o.ETag,
				Size:         o.Size,
				ContentType:  o.ContentType,
				UserMetadata: map[string]string(o.UserMetadata),
			},
			Source: queue.SourceReconcile,
		}, queue.WithProducer("datanexus-reconcile"))
		if perr != nil {
			return sent, fmt.Errorf("publish %s: %w", o.Key, perr)
		}

		sent++
	}

	return sent, err
}

// RegisterCronJobs 按配置注册定时任务：
//   - reconcile_cron 扫描上传区，补发遗漏的入库事件
//   - summary_cron 刷新市场分类汇总缓存
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, cfg configs.JobsConfig, market *service.MarketService) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if mgr == nil {
		return errors.New("storage manager is nil")
	}

	if !cfg.Enabled {
		return nil
	}

	if cfg.ReconcileCron != "" && mgr.GetS3Client() != nil && mgr.GetDBClient() != nil && mgr.GetMQClient() != nil {
		rec := &Reconciler{
			Lister: mgr.GetS3Client(),
			Repo:   repo.NewSubmissions(mgr.GetDBClient().GetDB()),
			Pub:    mgr.GetMQClient().Publisher(),
			Limit:  cfg.ReconcileLimit,
		}

		if err := sched.AddCron(JobReconcileUploads, cfg.ReconcileCron, reconcileJob(rec)); err != nil {
			return err
		}
	}

	if cfg.SummaryCron != "" && market != nil {
		if err := sched.AddCron(JobRefreshSummaries, cfg.SummaryCron, func(ctx context.Context) error {
			_, err := market.RefreshSummaries(ctx)
			return err
		}); err != nil {
			return err
		}
	}

	return nil
}

func reconcileJob(rec *Reconciler) scheduler.JobFunc {
	l := log.Component("jobs").With().Str("job", JobReconcileUploads).Logger()

	return func(ctx context.Context) error {
		n, err := rec.Run(ctx)
		if err != nil {
			l.Error().Err(err).Int("published", n).Msg("reconcile failed")

			return err
		}

		if n > 0 {
			l.Info().Int("published", n).Msg("reconcile published missing objects")
		}

		return nil
	}
}
