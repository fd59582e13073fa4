package service

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/scoring"
	"github.com/yeisme/datanexus/pkg/internal/storage/s3"
	nlog "github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/metrics"
	"github.com/yeisme/datanexus/pkg/queue"
)

// IngestService 拉取上传对象，执行评分流水线并入库.
type IngestService struct {
	repo     *repo.Submissions
	objects  ObjectStore
	pub      message.Publisher
	summary  *cache.Cache
	pipeline *scoring.Pipeline
	events   configs.EventsConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewIngestService 创建入库服务，pub 与 summary 可为 nil.
func NewIngestService(r *repo.Submissions, objects ObjectStore, pub message.Publisher, summary *cache.Cache,
	pipeline *scoring.Pipeline, events configs.EventsConfig) *IngestService {
	return &IngestService{
		repo:     r,
		objects:  objects,
		pub:      pub,
		summary:  summary,
		pipeline: pipeline,
		events:   events,
		logger:   nlog.Component("ingest"),
		now:      time.Now,
	}
}

// NewIngestServiceFromContext 使用上下文中的存储依赖.
func NewIngestServiceFromContext(c context.Context, pipeline *scoring.Pipeline, events configs.EventsConfig) *IngestService {
	d := depsFromContext(c)

	var objects ObjectStore
	if d.s3 != nil {
		objects = d.s3
	}

	return NewIngestService(d.repo, objects, d.pub, d.summary, pipeline, events)
}

// Ingest 处理一个对象事件：拉取内容、评分、入库并发布结果事件.
func (s *IngestService) Ingest(ctx context.Context, ref queue.ObjectRef) (*model.Submission, error) {
	if ref.ObjectKey == "" {
		return nil, newError(ErrValidation, "object key required")
	}

	if s.objects == nil {
		return nil, newError(ErrUnavailable, "object store not configured")
	}

	obj, err := s.objects.FetchObject(ctx, ref.Bucket, ref.ObjectKey)
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, wrapError(ErrNotFound, "object not found", err)
	}

	if err != nil {
		return nil, wrapError(ErrPersistence, "fetch object failed", err)
	}

	if obj.Truncated {
		s.logger.Warn().Str("key", obj.Key).Int64("size", obj.Size).Int("read", len(obj.Data)).
			Msg("object larger than max_object_bytes, scoring truncated content")
	}

	// 事件中的元数据作为补充，以对象上的为准
	meta := make(map[string]string, len(ref.UserMetadata)+len(obj.UserMetadata))
	for k, v := range ref.UserMetadata {
		meta[k] = v
	}

	for k, v := range obj.UserMetadata {
		meta[k] = v
	}

	return s.Process(ctx, obj, meta)
}

// Process 对已读取的对象评分并入库.
func (s *IngestService) Process(ctx context.Context, obj *s3.Object, meta map[string]string) (*model.Submission, error) {
	sub, err := s.Evaluate(ctx, obj, meta)
	if err != nil {
		return nil, err
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		if errors.Is(err, repo.ErrSold) {
			return nil, wrapError(ErrConflict, "submission already sold", err)
		}

		return nil, wrapError(ErrPersistence, "store submission failed", err)
	}

	metrics.SubmissionsProcessed.WithLabelValues(string(sub.ContentKind), string(sub.ScoreStatus)).Inc()

	if err := invalidateSummaries(ctx, s.summary); err != nil {
		s.logger.Debug().Err(err).Msg("invalidate summaries failed")
	}

	s.publishResult(sub)

	ev := s.logger.Info()
	if !sub.IsSafe {
		ev = s.logger.Warn()
	}

	ev.Str("owner", sub.OwnerID).Str("id", sub.ID).Str("status", string(sub.ScoreStatus)).
		Int("score", sub.QualityScore).Int("bonus", sub.MetadataBonus).Str("category", sub.MarketCategory).
		Msg("submission processed")

	return sub, nil
}

// Evaluate 只评分不入库，填充对象来源字段.
func (s *IngestService) Evaluate(ctx context.Context, obj *s3.Object, meta map[string]string) (*model.Submission, error) {
	if s.pipeline == nil {
		return nil, newError(ErrUnavailable, "scoring pipeline not configured")
	}

	sub, err := s.pipeline.Evaluate(ctx, scoring.Document{
		ObjectKey: obj.Key,
		Content:   obj.Data,
		Metadata:  scoring.ParseContributorMetadata(meta),
	})
	if err != nil {
		return nil, wrapError(ErrPersistence, "encode analysis failed", err)
	}

	sub.Bucket = obj.Bucket
	sub.ObjectKey = obj.Key
	sub.ETag = obj.ETag
	sub.ContentType = sniffContentType(obj.ContentType, obj.Data)

	if obj.Size > 0 {
		sub.SizeBytes = obj.Size
	}

	sub.UploadedAt = obj.LastModified
	if sub.UploadedAt.IsZero() {
		sub.UploadedAt = s.now().UTC()
	}

	return sub, nil
}

func (s *IngestService) publishResult(sub *model.Submission) {
	if s.pub == nil {
		return
	}

	var err error

	switch {
	case sub.ScoreStatus == model.ScoreStatusBlocked:
		if !eventsEnabled(s.events, s.events.Submission.Blocked) {
			return
		}

		err = queue.PublishSubmissionBlocked(s.pub, queue.SubmissionBlockedPayload{
			OwnerID:      sub.OwnerID,
			SubmissionID: sub.ID,
			Reason:       sub.SafetyReason,
		}, queue.WithProducer(producerName))
	default:
		if !eventsEnabled(s.events, s.events.Submission.Scored) {
			return
		}

		err = queue.PublishSubmissionScored(s.pub, queue.SubmissionScoredPayload{
			OwnerID:         sub.OwnerID,
			SubmissionID:    sub.ID,
			ContentKind:     string(sub.ContentKind),
			Status:          string(sub.ScoreStatus),
			QualityScore:    sub.QualityScore,
			MetadataBonus:   sub.MetadataBonus,
			EstimatedPayout: sub.EstimatedPayout,
			MarketCategory:  sub.MarketCategory,
		}, queue.WithProducer(producerName))
	}

	if err != nil {
		s.logger.Error().Err(err).Str("id", sub.ID).Msg("publish submission event failed")
	}
}

// sniffContentType 对象未声明类型时按内容识别.
func sniffContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" && declared != "binary/octet-stream" {
		return declared
	}

	if len(data) == 0 {
		return declared
	}

	return mimetype.Detect(data).String()
}
