package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/scoring"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage/kv"
	"github.com/yeisme/datanexus/pkg/internal/storage/s3"
	"github.com/yeisme/datanexus/pkg/queue"
)

func openRepo(t *testing.T) *repo.Submissions {
	t.Helper()

	return repo.NewSubmissions(openDB(t))
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("kv: %v", err)
	}

	return cache.New(store, "market")
}

func seed(t *testing.T, r *repo.Submissions, owner, id, category string, score int, uploaded time.Time) {
	t.Helper()

	sub := &model.Submission{
		ID:              id,
		OwnerID:         owner,
		Bucket:          "uploads",
		ObjectKey:       owner + "/" + id,
		UploadedAt:      uploaded,
		ContentKind:     model.ContentKindImage,
		IsSafe:          true,
		SafetyReason:    "Safe",
		ScoreStatus:     model.ScoreStatusScored,
		QualityScore:    score,
		EstimatedPayout: scoring.Payout(score),
		MarketCategory:  category,
	}

	if err := r.Upsert(context.Background(), sub); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func marketCfg(batch int) configs.MarketConfig {
	return configs.MarketConfig{PoolRate: 25, BatchSize: batch, ContributorShare: 0.8, SummaryCacheTTL: time.Minute}
}

func TestAllocate(t *testing.T) {
	cases := []struct {
		name   string
		pool   float64
		scores []int
		want   []float64
	}{
		{"weighted", 50, []int{90, 10}, []float64{45, 5}},
		{"all zero splits evenly", 75, []int{0, 0, 0}, []float64{25, 25, 25}},
		{"remainder cents go first", 10, []int{1, 1, 1}, []float64{3.34, 3.33, 3.33}},
		{"single item takes pool", 25, []int{40}, []float64{25}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := service.Allocate(tc.pool, tc.scores)
			if len(got) != len(tc.want) {
				t.Fatalf("len=%d", len(got))
			}

			sum := 0.0

			for i := range got {
				if math.Abs(got[i]-tc.want[i]) > 1e-9 {
					t.Fatalf("got=%v want=%v", got, tc.want)
				}

				sum += got[i]
			}

			if math.Abs(sum-tc.pool) > 1e-9 {
				t.Fatalf("sum=%v pool=%v", sum, tc.pool)
			}
		})
	}

	if service.Allocate(10, nil) != nil {
		t.Fatal("empty scores should allocate nothing")
	}
}

func TestPurchaseValidation(t *testing.T) {
	m := service.NewMarketService(openRepo(t), nil, nil, marketCfg(5), configs.EventsConfig{})

	for _, cat := range []string{"", "  ", "Space Mining"} {
		if _, err := m.Purchase(context.Background(), service.PurchaseRequest{Category: cat}); !errors.Is(err, service.ErrValidation) {
			t.Fatalf("category %q: expected validation error, got %v", cat, err)
		}
	}
}

func TestPurchaseSettlesHighestQualityFirst(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seed(t, r, "alice", "a.png", model.CategoryGeneral, 90, base)
	seed(t, r, "bob", "b.png", model.CategoryGeneral, 10, base)
	seed(t, r, "bob", "c.png", model.CategoryGeneral, 5, base.Add(time.Hour))
	seed(t, r, "carol", "d.png", model.CategoryMedicalImaging, 99, base)

	m := service.NewMarketService(r, nil, newCache(t), marketCfg(2), configs.EventsConfig{})

	res, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if res.Count != 2 || res.TotalCost != 50 || res.AgencyID != service.DefaultAgencyID || res.Partial {
		t.Fatalf("result=%+v", res)
	}

	if res.Message != "Successfully purchased 2 items in 'General'." {
		t.Fatalf("message=%q", res.Message)
	}

	if len(res.Items) != 2 || res.Items[0].ID != "a.png" || res.Items[0].SoldPrice != 45 || res.Items[1].SoldPrice != 5 {
		t.Fatalf("items=%+v", res.Items)
	}

	cert := res.Items[0].Certificate
	if cert.CertificateID == "" || cert.TransactionID != res.SettlementID || cert.ResponsibleAICheck != "PASSED" {
		t.Fatalf("certificate=%+v", cert)
	}

	sold, _ := r.Get(ctx, "alice", "a.png")
	if !sold.IsSold() || sold.SoldPrice == nil || *sold.SoldPrice != 45 || sold.TransactionDate == nil {
		t.Fatalf("record not settled: %+v", sold)
	}

	// 剩下一条，再次购买只成交一条
	res, err = m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral, AgencyID: "Agency_X"})
	if err != nil || res.Count != 1 || res.TotalCost != 25 || res.Items[0].ID != "c.png" || res.Items[0].SoldPrice != 25 {
		t.Fatalf("second purchase=%+v err=%v", res, err)
	}

	_, err = m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral})
	if !errors.Is(err, service.ErrNotFound) || service.PublicMessage(err) != "No available datasets in this category." {
		t.Fatalf("expected not found, got %v", err)
	}

	purchases, err := m.AgencyPurchases(ctx, "Agency_X")
	if err != nil || len(purchases) != 1 || purchases[0].ID != "c.png" || purchases[0].MarketCategory != model.CategoryGeneral {
		t.Fatalf("agency purchases=%+v err=%v", purchases, err)
	}

	if _, err := m.AgencyPurchases(ctx, ""); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("missing agency: %v", err)
	}
}

func TestPurchasePublishesSettlement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := openRepo(t)
	seed(t, r, "alice", "a.png", model.CategoryFinancialData, 0, time.Now())
	seed(t, r, "bob", "b.png", model.CategoryFinancialData, 0, time.Now())

	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()

	msgs, err := ch.Subscribe(ctx, queue.TopicMarketSettled)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	events := configs.EventsConfig{Enabled: true, Market: configs.MarketEventsConfig{Settled: true}}
	m := service.NewMarketService(r, ch, nil, marketCfg(5), events)

	res, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryFinancialData, AgencyID: "Agency_Fin"})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// 质量分全为 0 时平均分配
	for _, it := range res.Items {
		if it.SoldPrice != 25 {
			t.Fatalf("even split expected: %+v", res.Items)
		}
	}

	select {
	case msg := <-msgs:
		msg.Ack()

		env, err := queue.ParseMarketSettled(msg)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if msg.UUID != res.SettlementID || env.Payload.Count != 2 || env.Payload.AgencyID != "Agency_Fin" || len(env.Payload.Items) != 2 {
			t.Fatalf("event=%+v uuid=%s", env.Payload, msg.UUID)
		}
	case <-ctx.Done():
		t.Fatal("no settlement event")
	}
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)
	m := service.NewMarketService(r, nil, newCache(t), marketCfg(5), configs.EventsConfig{})

	empty, err := m.Summaries(ctx)
	if err != nil || empty.HasData || len(empty.Categories) != 0 {
		t.Fatalf("empty summaries=%+v err=%v", empty, err)
	}

	seed(t, r, "u", "a.png", model.CategoryRoboticsTraining, 33, time.Now())
	seed(t, r, "u", "b.png", model.CategoryRoboticsTraining, 34, time.Now())

	// 缓存仍是空结果，刷新后可见
	cached, _ := m.Summaries(ctx)
	if cached.HasData {
		t.Fatalf("expected cached empty result: %+v", cached)
	}

	fresh, err := m.RefreshSummaries(ctx)
	if err != nil || !fresh.HasData || len(fresh.Categories) != 1 {
		t.Fatalf("refreshed=%+v err=%v", fresh, err)
	}

	if c := fresh.Categories[0]; c.MarketCategory != model.CategoryRoboticsTraining || c.TotalFiles != 2 || c.AvgQuality != 33.5 {
		t.Fatalf("category=%+v", c)
	}

	// 购买会使缓存失效
	if _, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryRoboticsTraining}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	after, _ := m.Summaries(ctx)
	if after.HasData {
		t.Fatalf("sold items still summarized: %+v", after)
	}
}

func TestSubmissionDelete(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)
	seed(t, r, "alice", "keep.png", model.CategoryGeneral, 50, time.Now())
	seed(t, r, "alice", "drop.png", model.CategoryDeveloperTools, 50, time.Now())

	m := service.NewMarketService(r, nil, nil, marketCfg(1), configs.EventsConfig{})
	if _, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	summary := newCache(t)
	m = service.NewMarketService(r, nil, summary, marketCfg(1), configs.EventsConfig{})
	s := service.NewSubmissionService(r, summary)

	before, err := m.Summaries(ctx)
	if err != nil || !before.HasData || before.Categories[0].MarketCategory != model.CategoryDeveloperTools {
		t.Fatalf("summaries before delete=%+v err=%v", before, err)
	}

	cases := []struct {
		owner, id string
		kind      error
		msg       string
	}{
		{"", "drop.png", service.ErrValidation, "Missing id or userId"},
		{"alice", "", service.ErrValidation, "Missing id or userId"},
		{"bob", "drop.png", service.ErrNotFound, "Item not found or access denied"},
		{"alice", "keep.png", service.ErrForbidden, "Cannot delete sold items."},
	}

	for _, tc := range cases {
		err := s.Delete(ctx, tc.owner, tc.id)
		if !errors.Is(err, tc.kind) || service.PublicMessage(err) != tc.msg {
			t.Fatalf("delete(%q,%q)=%v", tc.owner, tc.id, err)
		}
	}

	if err := s.Delete(ctx, "alice", "drop.png"); err != nil {
		t.Fatalf("delete unsold: %v", err)
	}

	if _, err := s.Get(ctx, "alice", "drop.png"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("still present: %v", err)
	}

	list, err := s.List(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].ID != "keep.png" {
		t.Fatalf("list=%v err=%v", list, err)
	}

	if rows, _ := r.ListUnsoldByCategory(ctx, model.CategoryDeveloperTools, 0); len(rows) != 0 {
		t.Fatalf("deleted item still listed: %+v", rows)
	}

	after, err := m.Summaries(ctx)
	if err != nil || after.HasData || len(after.Categories) != 0 {
		t.Fatalf("summaries after delete=%+v err=%v", after, err)
	}

	if _, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryDeveloperTools}); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("purchase after delete=%v", err)
	}
}

func TestPurchasePagesPastConflicts(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	r := repo.NewSubmissions(db)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"} {
		seed(t, r, "alice", id, model.CategoryGeneral, 90-i, base)
	}

	// 前五条读出后版本号已过期，认领必然冲突
	stale := map[string]bool{"a.png": true, "b.png": true, "c.png": true, "d.png": true, "e.png": true}

	err := db.Callback().Query().After("gorm:query").Register("stale_versions", func(tx *gorm.DB) {
		rows, ok := tx.Statement.Dest.(*[]model.Submission)
		if !ok {
			return
		}

		for i := range *rows {
			if stale[(*rows)[i].ID] {
				(*rows)[i].Version += 100
			}
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	m := service.NewMarketService(r, nil, nil, marketCfg(1), configs.EventsConfig{})

	res, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if res.Count != 1 || res.Items[0].ID != "f.png" {
		t.Fatalf("result=%+v", res)
	}
}

func TestContributorStats(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	seed(t, r, "alice", "sold.png", model.CategoryGeneral, 90, day)
	seed(t, r, "alice", "open.png", model.CategoryMedicalImaging, 20, day.Add(time.Hour))

	m := service.NewMarketService(r, nil, nil, marketCfg(5), configs.EventsConfig{})
	if _, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	s := service.NewStatsService(r, 0.8)

	if _, err := s.Contributor(ctx, ""); !errors.Is(err, service.ErrValidation) || service.PublicMessage(err) != "Missing userId parameter" {
		t.Fatalf("missing user: %v", err)
	}

	st, err := s.Contributor(ctx, "alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if st.Earnings != "$20.00" || st.AvgQuality != "55.0%" || st.TotalUploads != 2 {
		t.Fatalf("stats=%+v", st)
	}

	if len(st.History) != 2 || st.History[0].ID != "open.png" || st.History[0].Status != "Pending" || st.History[0].Earnings != "$0.00" {
		t.Fatalf("history=%+v", st.History)
	}

	if h := st.History[1]; h.Status != "Sold" || h.Earnings != "$20.00" || h.Date != "2024-03-09" {
		t.Fatalf("sold row=%+v", h)
	}

	none, err := s.Contributor(ctx, "nobody")
	if err != nil || none.Earnings != "$0.00" || none.AvgQuality != "0.0%" || len(none.History) != 0 {
		t.Fatalf("empty stats=%+v err=%v", none, err)
	}
}

func TestFormatDollars(t *testing.T) {
	cases := map[float64]string{
		0:         "$0.00",
		5:         "$5.00",
		1234.5:    "$1,234.50",
		1234567.8: "$1,234,567.80",
		999.999:   "$1,000.00",
	}

	for in, want := range cases {
		if got := service.FormatDollars(in); got != want {
			t.Fatalf("FormatDollars(%v)=%q want %q", in, got, want)
		}
	}
}

type fakeObjects struct {
	objects map[string]*s3.Object
}

func (f *fakeObjects) FetchObject(_ context.Context, bucket, key string) (*s3.Object, error) {
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", s3.ErrObjectNotFound, bucket, key)
	}

	return obj, nil
}

type fakeVision struct{ tags []string }

func (f *fakeVision) TagImage(context.Context, []byte) (oracle.VisionResult, error) {
	return oracle.VisionResult{Tags: f.tags, Caption: "a photo"}, nil
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)

	objects := &fakeObjects{objects: map[string]*s3.Object{
		"uploads/alice/photo.jpg": {
			Bucket:       "uploads",
			Key:          "alice/photo.jpg",
			ETag:         "e1",
			ContentType:  "image/jpeg",
			LastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			UserMetadata: map[string]string{"userid": "alice", "usertags": "Cat,dog"},
			Data:         []byte("not really a jpeg"),
		},
	}}

	pipeline := scoring.NewPipeline(oracle.Set{Vision: &fakeVision{tags: []string{"cat", "dog", "tree", "grass", "sky"}}},
		configs.OracleConfig{}, configs.ScoringConfig{OnError: configs.FailClosed, PreviewChars: 8000})

	s := service.NewIngestService(r, objects, nil, newCache(t), pipeline, configs.EventsConfig{})

	sub, err := s.Ingest(ctx, queue.ObjectRef{Bucket: "uploads", ObjectKey: "alice/photo.jpg"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// 5 个标签 50 分，2 个标签命中奖励 6 分
	if sub.OwnerID != "alice" || sub.ID != "photo.jpg" || sub.QualityScore != 56 || sub.MetadataBonus != 6 {
		t.Fatalf("submission=%+v", sub)
	}

	stored, err := r.Get(ctx, "alice", "photo.jpg")
	if err != nil || stored.ETag != "e1" || stored.ContentType != "image/jpeg" || stored.MarketCategory != model.CategoryGeneral {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}

	if !stored.UploadedAt.Equal(objects.objects["uploads/alice/photo.jpg"].LastModified) {
		t.Fatalf("uploaded_at=%v", stored.UploadedAt)
	}

	if _, err := s.Ingest(ctx, queue.ObjectRef{Bucket: "uploads", ObjectKey: "alice/missing.jpg"}); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("missing object: %v", err)
	}

	// 已售出的条目不允许重新评分覆盖
	m := service.NewMarketService(r, nil, nil, marketCfg(5), configs.EventsConfig{})
	if _, err := m.Purchase(ctx, service.PurchaseRequest{Category: model.CategoryGeneral}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := s.Ingest(ctx, queue.ObjectRef{Bucket: "uploads", ObjectKey: "alice/photo.jpg"}); !errors.Is(err, service.ErrConflict) {
		t.Fatalf("re-ingest sold: %v", err)
	}
}

type fakePresigner struct{ key string }

func (f *fakePresigner) PresignUpload(_ context.Context, key string, _ time.Duration) (*url.URL, error) {
	f.key = key
	return url.Parse("https://minio.local/uploads/" + key + "?X-Amz-Signature=abc")
}

func (f *fakePresigner) UploadBucket() string { return "uploads" }

func TestUploads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := service.UploadKey("", "a.png"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("empty user: %v", err)
	}

	if key, err := service.UploadKey("alice", "../../etc/a.png"); err != nil || key != "alice/a.png" {
		t.Fatalf("key=%q err=%v", key, err)
	}

	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()

	msgs, err := ch.Subscribe(ctx, queue.TopicObjectStored)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := &fakePresigner{}
	events := configs.EventsConfig{Enabled: true, Object: configs.ObjectEventsConfig{Stored: true}}
	s := service.NewUploadService(p, ch, events)

	u, err := s.PresignUpload(ctx, "alice", "a.png")
	if err != nil || p.key != "alice/a.png" || !strings.Contains(u.URL, "X-Amz-Signature") || u.Bucket != "uploads" {
		t.Fatalf("presign=%+v err=%v", u, err)
	}

	if _, err := s.Reprocess(ctx, service.ReprocessRequest{ObjectKey: "alice/a.png"}); err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()

		env, err := queue.ParseObjectStored(msg)
		if err != nil || env.Payload.Source != queue.SourceReprocess || env.Payload.Object.Bucket != "uploads" {
			t.Fatalf("event=%+v err=%v", env, err)
		}
	case <-ctx.Done():
		t.Fatal("no reprocess event")
	}
}
