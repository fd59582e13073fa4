// Package s3 处理S3存储操作.
// 贡献者文件上传到 upload 桶，评分流水线从这里拉取对象内容与用户元数据.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/yeisme/datanexus/pkg/configs"
	nlog "github.com/yeisme/datanexus/pkg/log"
)

// ErrObjectNotFound 对象不存在.
var ErrObjectNotFound = errors.New("s3: object not found")

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client
	cfg configs.S3Config
}

// Object 拉取到的对象内容与属性.
type Object struct {
	Bucket       string
	Key          string
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
	// UserMetadata 去掉 X-Amz-Meta- 前缀后的用户元数据，键为小写
	UserMetadata map[string]string
	Data         []byte
	Truncated    bool
}

// New 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	c := *cfg
	endpoint := c.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			c.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("datanexus", configs.AppVersion)

	client := &Client{Client: cli, cfg: c}

	for _, bkt := range []string{c.BucketName, c.UploadBucket} {
		if err := client.ensureBucket(ctx, bkt); err != nil {
			return nil, err
		}
	}

	nlog.Logger().Info().Str("endpoint", c.Endpoint).Str("upload_bucket", c.UploadBucket).Msg("s3 connected")

	return client, nil
}

func (c *Client) ensureBucket(ctx context.Context, bkt string) error {
	if bkt == "" {
		return nil
	}

	exists, err := c.BucketExists(ctx, bkt)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bkt, err)
	}

	if exists {
		return nil
	}

	if err := c.MakeBucket(ctx, bkt, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bkt, err)
	}

	nlog.Logger().Info().Str("bucket", bkt).Msg("bucket created")

	return nil
}

// UploadBucket 返回上传区桶名.
func (c *Client) UploadBucket() string {
	return c.cfg.UploadBucket
}

// FetchObject 读取对象内容（最多 MaxObjectBytes 字节）及其用户元数据.
func (c *Client) FetchObject(ctx context.Context, bucket, key string) (*Object, error) {
	if bucket == "" {
		bucket = c.cfg.UploadBucket
	}

	obj, err := c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, mapError(err, bucket, key)
	}

	limit := c.cfg.MaxObjectBytes
	if limit <= 0 {
		limit = configs.DefaultS3MaxObjectBytes
	}

	data, err := io.ReadAll(io.LimitReader(obj, limit))
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	return &Object{
		Bucket:       bucket,
		Key:          key,
		ETag:         info.ETag,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		UserMetadata: normalizeMetadata(info.UserMetadata),
		Data:         data,
		Truncated:    info.Size > int64(len(data)),
	}, nil
}

// PresignUpload 为上传区签发限时 PUT 链接.
func (c *Client) PresignUpload(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	if expiry <= 0 {
		expiry = c.cfg.PresignExpiry
	}

	u, err := c.PresignedPutObject(ctx, c.cfg.UploadBucket, key, expiry)
	if err != nil {
		return nil, fmt.Errorf("presign %s/%s: %w", c.cfg.UploadBucket, key, err)
	}

	return u, nil
}

// ListUploads 列出上传区对象，limit<=0 表示不限制.
func (c *Client) ListUploads(ctx context.Context, prefix string, limit int) ([]minio.ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []minio.ObjectInfo

	for info := range c.ListObjects(ctx, c.cfg.UploadBucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if info.Err != nil {
			return out, fmt.Errorf("list %s: %w", c.cfg.UploadBucket, info.Err)
		}

		if strings.HasSuffix(info.Key, "/") {
			continue
		}

		out = append(out, info)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// ListenUploads 订阅上传区的对象创建通知，ctx 取消后通道关闭.
func (c *Client) ListenUploads(ctx context.Context) <-chan notification.Info {
	return c.ListenBucketNotification(ctx, c.cfg.UploadBucket, "", "", []string{string(notification.ObjectCreatedAll)})
}

// HealthCheck 简单的健康检查，通过检查上传桶验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.BucketExists(ctx, c.cfg.UploadBucket)

	return err
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}

// GetConfig 返回客户端使用的配置.
func (c *Client) GetConfig() configs.S3Config {
	return c.cfg
}

func mapError(err error, bucket, key string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}

	return fmt.Errorf("get object %s/%s: %w", bucket, key, err)
}

// normalizeMetadata 统一元数据键：小写并去掉 x-amz-meta- 前缀.
func normalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))

	for k, v := range in {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, "x-amz-meta-")
		out[k] = v
	}

	return out
}
