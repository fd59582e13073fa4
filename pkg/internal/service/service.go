// Package service 实现评分入库、提交管理、统计与市场结算的业务逻辑.
package service

import (
	"context"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/configs"
	ctxPkg "github.com/yeisme/datanexus/pkg/context"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/storage/s3"
)

const (
	// summaryCacheNamespace 与 summaryCacheKey 市场分类汇总的缓存位置
	summaryCacheNamespace = "market"
	summaryCacheKey       = "summaries"

	producerName = "datanexus"
)

type (
	// ObjectStore 读取上传区对象.
	ObjectStore interface {
		FetchObject(ctx context.Context, bucket, key string) (*s3.Object, error)
	}

	// Presigner 签发上传链接.
	Presigner interface {
		PresignUpload(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
		UploadBucket() string
	}
)

// deps 从请求上下文中取出的存储依赖，缺失的为 nil.
type deps struct {
	repo    *repo.Submissions
	s3      *s3.Client
	pub     message.Publisher
	summary *cache.Cache
}

func depsFromContext(c context.Context) deps {
	var d deps

	if dbc := ctxPkg.GetDBClient(c); dbc != nil {
		d.repo = repo.NewSubmissions(dbc.GetDB())
	}

	d.s3 = ctxPkg.GetS3Client(c)

	if mqc := ctxPkg.GetMQClient(c); mqc != nil {
		d.pub = mqc.Publisher()
	}

	if kvc := ctxPkg.GetKVClient(c); kvc != nil {
		d.summary = cache.New(kvc, summaryCacheNamespace)
	}

	return d
}

// invalidateSummaries 分类汇总随售出、删除、入库变化，失败只影响缓存时效.
func invalidateSummaries(ctx context.Context, c *cache.Cache) error {
	if c == nil {
		return nil
	}

	return c.Delete(ctx, summaryCacheKey)
}

func eventsEnabled(cfg configs.EventsConfig, topic bool) bool {
	return cfg.Enabled && topic
}
