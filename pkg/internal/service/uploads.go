package service

import (
	"context"
	"crypto/rand"
	"path"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/oklog/ulid"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/queue"
)

// UploadURLExpiry 上传链接有效期
const UploadURLExpiry = 30 * time.Minute

type (
	// UploadURL 签发的上传地址.
	UploadURL struct {
		URL       string    `json:"sasUrl"`
		Bucket    string    `json:"bucket"`
		ObjectKey string    `json:"object_key"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	// ReprocessRequest 重新评分某个上传对象.
	ReprocessRequest struct {
		Bucket    string
		ObjectKey string
		// Source 事件来源，默认 queue.SourceReprocess
		Source string
	}
)

// UploadService 上传地址签发与重新处理.
type UploadService struct {
	presigner Presigner
	pub       message.Publisher
	events    configs.EventsConfig
	now       func() time.Time
}

// NewUploadService 创建上传服务.
func NewUploadService(p Presigner, pub message.Publisher, events configs.EventsConfig) *UploadService {
	return &UploadService{presigner: p, pub: pub, events: events, now: time.Now}
}

// NewUploadServiceFromContext 使用上下文中的存储依赖与全局配置.
func NewUploadServiceFromContext(c context.Context) *UploadService {
	d := depsFromContext(c)

	var p Presigner
	if d.s3 != nil {
		p = d.s3
	}

	return NewUploadService(p, d.pub, configs.GetConfig().Events)
}

// UploadKey 对象键为 <userId>/<fileName>，文件名只取最后一段.
func UploadKey(userID, fileName string) (string, error) {
	userID = strings.Trim(strings.TrimSpace(userID), "/")
	name := path.Base(strings.TrimSpace(fileName))

	if userID == "" || strings.Contains(userID, "/") {
		return "", newError(ErrValidation, "invalid userId")
	}

	if name == "" || name == "." || name == "/" {
		return "", newError(ErrValidation, "Missing fileName")
	}

	return userID + "/" + name, nil
}

// PresignUpload 签发 30 分钟有效的上传链接.
func (s *UploadService) PresignUpload(ctx context.Context, userID, fileName string) (*UploadURL, error) {
	key, err := UploadKey(userID, fileName)
	if err != nil {
		return nil, err
	}

	if s.presigner == nil {
		return nil, newError(ErrUnavailable, "object store not configured")
	}

	u, err := s.presigner.PresignUpload(ctx, key, UploadURLExpiry)
	if err != nil {
		return nil, wrapError(ErrPersistence, "presign upload failed", err)
	}

	return &UploadURL{
		URL:       u.String(),
		Bucket:    s.presigner.UploadBucket(),
		ObjectKey: key,
		ExpiresAt: s.now().UTC().Add(UploadURLExpiry),
	}, nil
}

// Reprocess 为已上传对象重新发布入库事件，由 worker 重新评分.
func (s *UploadService) Reprocess(ctx context.Context, req ReprocessRequest) (string, error) {
	key := strings.TrimSpace(req.ObjectKey)
	if key == "" {
		return "", newError(ErrValidation, "object key required")
	}

	if s.pub == nil {
		return "", newError(ErrUnavailable, "message queue not configured")
	}

	if !eventsEnabled(s.events, s.events.Object.Stored) {
		return "", newError(ErrUnavailable, "object events disabled")
	}

	bucket := req.Bucket
	if bucket == "" && s.presigner != nil {
		bucket = s.presigner.UploadBucket()
	}

	// 每次重新处理使用新的消息 ID，不参与按 etag 去重
	source := req.Source
	if source == "" {
		source = queue.SourceReprocess
	}

	ref := queue.ObjectRef{Bucket: bucket, ObjectKey: key}
	id := "rp-" + ulid.MustNew(ulid.Timestamp(s.now()), rand.Reader).String()

	if err := queue.PublishObjectStored(s.pub, queue.ObjectStoredPayload{Object: ref, Source: source},
		queue.WithProducer(producerName), queue.WithMessageID(id)); err != nil {
		return "", wrapError(ErrPersistence, "publish reprocess event failed", err)
	}

	return id, nil
}
