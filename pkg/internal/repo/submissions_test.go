package repo_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

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

func newSub(owner, id, category string, score int, uploaded time.Time) *model.Submission {
	return &model.Submission{
		ID:              id,
		OwnerID:         owner,
		Bucket:          "uploads",
		ObjectKey:       owner + "/" + id,
		ETag:            "etag-" + id,
		UploadedAt:      uploaded,
		ContentKind:     model.ContentKindImage,
		IsSafe:          true,
		SafetyReason:    "Safe",
		ScoreStatus:     model.ScoreStatusScored,
		QualityScore:    score,
		EstimatedPayout: 1,
		MarketCategory:  category,
	}
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))

	sub := newSub("alice", "a.png", model.CategoryGeneral, 40, time.Now())
	if err := r.Upsert(ctx, sub); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	again := newSub("alice", "a.png", model.CategoryMedicalImaging, 70, time.Now())
	if err := r.Upsert(ctx, again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := r.Get(ctx, "alice", "a.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.QualityScore != 70 || got.MarketCategory != model.CategoryMedicalImaging || got.Version != 2 {
		t.Fatalf("record not replaced: %+v", got)
	}

	// 同名文件在不同贡献者下互不影响
	if _, err := r.Get(ctx, "bob", "a.png"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertRefusesSold(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))

	sub := newSub("alice", "a.png", model.CategoryGeneral, 40, time.Now())
	_ = r.Upsert(ctx, sub)

	ok, err := r.Claim(ctx, sub, "agency", "S1", time.Now())
	if err != nil || !ok {
		t.Fatalf("claim ok=%v err=%v", ok, err)
	}

	if err := r.Upsert(ctx, newSub("alice", "a.png", model.CategoryGeneral, 90, time.Now())); !errors.Is(err, repo.ErrSold) {
		t.Fatalf("expected ErrSold, got %v", err)
	}
}

func TestListUnsoldByCategoryOrder(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	subs := []*model.Submission{
		newSub("u1", "low.png", model.CategoryGeneral, 10, base),
		newSub("u1", "late.png", model.CategoryGeneral, 90, base.Add(time.Hour)),
		newSub("u2", "early.png", model.CategoryGeneral, 90, base),
		newSub("u2", "other.png", model.CategoryFinancialData, 99, base),
	}

	blocked := newSub("u3", "bad.png", model.CategoryGeneral, 100, base)
	blocked.IsSafe = false
	blocked.ScoreStatus = model.ScoreStatusBlocked
	subs = append(subs, blocked)

	for _, s := range subs {
		if err := r.Upsert(ctx, s); err != nil {
			t.Fatalf("upsert %s: %v", s.ID, err)
		}
	}

	got, err := r.ListUnsoldByCategory(ctx, model.CategoryGeneral, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}

	if strings.Join(ids, ",") != "early.png,late.png,low.png" {
		t.Fatalf("order=%v", ids)
	}

	limited, _ := r.ListUnsoldByCategory(ctx, model.CategoryGeneral, 1)
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}

func TestListUnsoldAfter(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, s := range []*model.Submission{
		newSub("u1", "a.png", model.CategoryGeneral, 90, base),
		newSub("u2", "a.png", model.CategoryGeneral, 90, base),
		newSub("u1", "b.png", model.CategoryGeneral, 90, base.Add(time.Minute)),
		newSub("u1", "c.png", model.CategoryGeneral, 40, base),
	} {
		if err := r.Upsert(ctx, s); err != nil {
			t.Fatalf("upsert %s: %v", s.ID, err)
		}
	}

	var (
		cursor *model.Submission
		order  []string
	)

	for {
		page, err := r.ListUnsoldAfter(ctx, model.CategoryGeneral, cursor, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}

		if len(page) == 0 {
			break
		}

		order = append(order, page[0].OwnerID+"/"+page[0].ID)
		cursor = &page[0]
	}

	if strings.Join(order, ",") != "u1/a.png,u2/a.png,u1/b.png,u1/c.png" {
		t.Fatalf("order=%v", order)
	}
}

func TestClaimIsOptimistic(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))

	sub := newSub("alice", "a.png", model.CategoryGeneral, 40, time.Now())
	_ = r.Upsert(ctx, sub)

	stale := *sub

	ok, err := r.Claim(ctx, sub, "agency-1", "S1", time.Now())
	if err != nil || !ok {
		t.Fatalf("first claim ok=%v err=%v", ok, err)
	}

	ok, err = r.Claim(ctx, &stale, "agency-2", "S2", time.Now())
	if err != nil || ok {
		t.Fatalf("second claim should lose, ok=%v err=%v", ok, err)
	}

	got, _ := r.Get(ctx, "alice", "a.png")
	if got.SoldTo == nil || *got.SoldTo != "agency-1" {
		t.Fatalf("sold_to=%v", got.SoldTo)
	}
}

func TestSetSoldPriceWrittenOnce(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))

	sub := newSub("alice", "a.png", model.CategoryGeneral, 40, time.Now())
	_ = r.Upsert(ctx, sub)
	_, _ = r.Claim(ctx, sub, "agency", "S1", time.Now())

	if err := r.SetSoldPrice(ctx, "alice", "a.png", "S2", 10); !errors.Is(err, repo.ErrStale) {
		t.Fatalf("foreign settlement should be stale, got %v", err)
	}

	if err := r.SetSoldPrice(ctx, "alice", "a.png", "S1", 12.5); err != nil {
		t.Fatalf("set price: %v", err)
	}

	if err := r.SetSoldPrice(ctx, "alice", "a.png", "S1", 99); !errors.Is(err, repo.ErrStale) {
		t.Fatalf("second write should be stale, got %v", err)
	}

	got, _ := r.Get(ctx, "alice", "a.png")
	if got.SoldPrice == nil || *got.SoldPrice != 12.5 || got.Payout() != 12.5 {
		t.Fatalf("sold price=%v payout=%v", got.SoldPrice, got.Payout())
	}

	bought, err := r.ListBySoldTo(ctx, "agency")
	if err != nil || len(bought) != 1 {
		t.Fatalf("list by sold_to: %v %v", bought, err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))

	unsold := newSub("alice", "a.png", model.CategoryGeneral, 40, time.Now())
	sold := newSub("alice", "b.png", model.CategoryGeneral, 40, time.Now())
	_ = r.Upsert(ctx, unsold)
	_ = r.Upsert(ctx, sold)
	_, _ = r.Claim(ctx, sold, "agency", "S1", time.Now())

	if err := r.Delete(ctx, "alice", "b.png"); !errors.Is(err, repo.ErrSold) {
		t.Fatalf("delete sold: %v", err)
	}

	if err := r.Delete(ctx, "bob", "a.png"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("delete other owner: %v", err)
	}

	if err := r.Delete(ctx, "alice", "a.png"); err != nil {
		t.Fatalf("delete unsold: %v", err)
	}

	if _, err := r.Get(ctx, "alice", "a.png"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
}

func TestSummarizeUnsoldAndKnownObjects(t *testing.T) {
	ctx := context.Background()
	r := repo.NewSubmissions(openDB(t))
	now := time.Now()

	for _, s := range []*model.Submission{
		newSub("u", "a.png", model.CategoryGeneral, 40, now),
		newSub("u", "b.png", model.CategoryGeneral, 61, now),
		newSub("u", "c.png", model.CategoryRoboticsTraining, 80, now),
	} {
		_ = r.Upsert(ctx, s)
	}

	rows, err := r.SummarizeUnsold(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if len(rows) != 2 || rows[0].MarketCategory != model.CategoryGeneral || rows[0].TotalFiles != 2 || rows[0].AvgQuality != 50.5 {
		t.Fatalf("rows=%+v", rows)
	}

	known, err := r.KnownObjects(ctx, "uploads", []string{"u/a.png", "u/zzz.png"})
	if err != nil {
		t.Fatalf("known: %v", err)
	}

	if len(known) != 1 || known["u/a.png"] != "etag-a.png" {
		t.Fatalf("known=%v", known)
	}
}
