package worker

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/yeisme/datanexus/pkg/queue"
)

// NotificationSource 产生对象存储桶通知.
type NotificationSource interface {
	ListenUploads(ctx context.Context) <-chan notification.Info
}

const bridgeRetryDelay = 5 * time.Second

// Bridge 将 MinIO 桶通知转为 dn.object.stored 事件，通知流断开后重连，直到 ctx 取消.
func (w *Worker) Bridge(ctx context.Context, src NotificationSource) {
	for {
		w.drain(ctx, src.ListenUploads(ctx))

		select {
		case <-ctx.Done():
			return
		case <-time.After(bridgeRetryDelay):
			w.logger.Warn().Msg("bucket notification stream closed, reconnecting")
		}
	}
}

func (w *Worker) drain(ctx context.Context, ch <-chan notification.Info) {
	for info := range ch {
		if info.Err != nil {
			w.logger.Error().Err(info.Err).Msg("bucket notification error")

			continue
		}

		for _, ev := range info.Records {
			ref := RefFromEvent(ev)
			if ref.ObjectKey == "" || strings.HasSuffix(ref.ObjectKey, "/") {
				continue
			}

			err := queue.PublishObjectStored(w.publish, queue.ObjectStoredPayload{
				Object: ref,
				Source: queue.SourceNotification,
			}, queue.WithProducer("datanexus-bridge"))
			if err != nil {
				w.logger.Error().Err(err).Str("key", ref.ObjectKey).Msg("publish object event failed")

				continue
			}

			w.logger.Debug().Str("key", ref.ObjectKey).Str("etag", ref.ETag).Msg("object event published")
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// RefFromEvent 从 S3 事件记录提取对象引用，通知中的对象键是 URL 编码的.
func RefFromEvent(ev notification.Event) queue.ObjectRef {
	key := ev.S3.Object.Key
	if decoded, err := url.QueryUnescape(key); err == nil {
		key = decoded
	}

	meta := make(map[string]string, len(ev.S3.Object.UserMetadata))
	for k, v := range ev.S3.Object.UserMetadata {
		meta[strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")] = v
	}

	return queue.ObjectRef{
		Bucket:       ev.S3.Bucket.Name,
		ObjectKey:    key,
		ETag:         ev.S3.Object.ETag,
		Size:         ev.S3.Object.Size,
		ContentType:  ev.S3.Object.ContentType,
		UserMetadata: meta,
	}
}
