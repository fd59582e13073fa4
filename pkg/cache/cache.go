// Package cache 提供基于键值存储的泛型缓存实现.
//
// 值使用 sonic 编码为 JSON 写入底层 kv.KVStore；同一进程内并发未命中时，
// GetOrLoad 通过 singleflight 合并为一次加载.
//
// 基本用法:
//
//	c := cache.New(kvClient, "market")
//
//	summaries, err := cache.GetOrLoad(ctx, c, "summaries", 30*time.Second,
//		func(ctx context.Context) ([]types.CategorySummary, error) {
//			return repo.SummarizeUnsold(ctx)
//		})
//
//	// 结算后使缓存失效
//	_ = c.Delete(ctx, "summaries")
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/datanexus/pkg/internal/storage/kv"
)

// ErrMiss 缓存未命中.
var ErrMiss = errors.New("cache: miss")

// Cache 基于KV存储的缓存实现，所有键带有命名空间前缀.
type Cache struct {
	store     kv.KVStore
	namespace string
	group     singleflight.Group
}

// New 创建缓存实例，namespace 为空时不加前缀.
func New(store kv.KVStore, namespace string) *Cache {
	return &Cache{store: store, namespace: namespace}
}

func (c *Cache) key(k string) string {
	if c.namespace == "" {
		return k
	}

	return c.namespace + ":" + k
}

// Get 泛型获取缓存值，未命中返回 ErrMiss.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.store.Get(ctx, c.key(key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return zero, ErrMiss
	}

	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.store.Set(ctx, c.key(key), data, ttl)
}

// GetOrLoad 命中直接返回；未命中时调用 load 并写回缓存.
// ttl<=0 时每次都调用 load（仍合并并发请求），不写缓存.
// 写缓存失败不影响返回值.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration,
	load func(context.Context) (T, error)) (T, error) {
	if ttl > 0 {
		if value, err := Get[T](ctx, c, key); err == nil {
			return value, nil
		}
	}

	v, err, _ := c.group.Do(c.key(key), func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		if ttl > 0 {
			_ = Set(ctx, c, key, value, ttl)
		}

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.group.Forget(c.key(key))

	return c.store.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

// Clear 删除命名空间下的所有键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, c.key("*"))
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	return nil
}
