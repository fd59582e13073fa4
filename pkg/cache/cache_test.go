package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/internal/storage/kv"
)

type categorySummary struct {
	Category   string  `json:"category"`
	TotalFiles int     `json:"total_files"`
	AvgQuality float64 `json:"avg_quality"`
}

func newCache(t *testing.T, ns string) (*cache.Cache, kv.KVStore) {
	t.Helper()

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	return cache.New(store, ns), store
}

func TestGetSet_Namespaced(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t, "market")

	if _, err := cache.Get[[]categorySummary](ctx, c, "summaries"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	want := []categorySummary{{Category: "Robotics Training", TotalFiles: 2, AvgQuality: 75}}
	if err := cache.Set(ctx, c, "summaries", want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, _ := store.Exists(ctx, "market:summaries"); !ok {
		t.Fatal("expected namespaced key in store")
	}

	got, err := cache.Get[[]categorySummary](ctx, c, "summaries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %+v", got)
	}
}

func TestGetOrLoad_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, "market")

	var calls int32

	load := func(context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	for range 3 {
		v, err := cache.GetOrLoad(ctx, c, "n", time.Minute, load)
		if err != nil || v != 1 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}

	_ = c.Delete(ctx, "n")

	v, _ := cache.GetOrLoad(ctx, c, "n", time.Minute, load)
	if v != 2 {
		t.Fatalf("expected reload after delete, got %d", v)
	}
}

func TestGetOrLoad_ZeroTTLAlwaysLoads(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, "")

	var calls int32

	load := func(context.Context) (int32, error) { return atomic.AddInt32(&calls, 1), nil }

	_, _ = cache.GetOrLoad(ctx, c, "k", 0, load)
	_, _ = cache.GetOrLoad(ctx, c, "k", 0, load)

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d", calls)
	}

	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatal("zero ttl must not write cache")
	}
}

func TestGetOrLoad_LoadError(t *testing.T) {
	c, _ := newCache(t, "market")
	boom := errors.New("db down")

	_, err := cache.GetOrLoad(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestGetOrLoad_ConcurrentMissesShareLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, "market")

	var (
		calls int32
		start = make(chan struct{})
		wg    sync.WaitGroup
	)

	load := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)

		return 7, nil
	}

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			if v, err := cache.GetOrLoad(ctx, c, "slow", time.Minute, load); err != nil || v != 7 {
				t.Errorf("GetOrLoad = %d, %v", v, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single load, got %d", n)
	}
}

func TestClear_OnlyNamespace(t *testing.T) {
	ctx := context.Background()
	store, _ := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	market := cache.New(store, "market")
	other := cache.New(store, "other")

	_ = cache.Set(ctx, market, "a", 1, 0)
	_ = cache.Set(ctx, market, "b", 2, 0)
	_ = cache.Set(ctx, other, "a", 3, 0)

	if err := market.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if ok, _ := market.Exists(ctx, "a"); ok {
		t.Fatal("market:a should be cleared")
	}

	if ok, _ := other.Exists(ctx, "a"); !ok {
		t.Fatal("other:a should survive")
	}
}
