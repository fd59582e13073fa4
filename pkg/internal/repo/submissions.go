// Package repo 提交记录的持久化，所有并发敏感的写入都是条件更新.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/datanexus/pkg/internal/model"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("submission not found")
	// ErrSold 记录已售出，不可覆盖或删除.
	ErrSold = errors.New("submission already sold")
	// ErrStale 条件更新未命中（版本或结算批次不匹配）.
	ErrStale = errors.New("submission changed concurrently")
)

// CategorySummary 某分类下未售条目的汇总.
type CategorySummary struct {
	MarketCategory string  `gorm:"column:market_category" json:"market_category"`
	TotalFiles     int64   `gorm:"column:total_files"     json:"total_files"`
	AvgQuality     float64 `gorm:"column:avg_quality"     json:"avg_quality"`
}

// Submissions 提交记录仓库.
type Submissions struct {
	db *gorm.DB
}

// NewSubmissions 创建仓库.
func NewSubmissions(db *gorm.DB) *Submissions {
	return &Submissions{db: db}
}

// Migrate 自动迁移表结构.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(model.Models()...)
}

// unsold 未售出且可上架（安全且评分未失败）的条目.
func unsold(tx *gorm.DB) *gorm.DB {
	return tx.Where("sold_to IS NULL AND is_safe = ? AND score_status IN ?", true,
		[]model.ScoreStatus{model.ScoreStatusScored, model.ScoreStatusFixed})
}

// Get 按 (owner, id) 读取.
func (r *Submissions) Get(ctx context.Context, ownerID, id string) (*model.Submission, error) {
	var sub model.Submission

	err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// Upsert 按 (owner_id, id) 插入或整体覆盖，已售出的记录返回 ErrSold.
func (r *Submissions) Upsert(ctx context.Context, sub *model.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Submission

		err := tx.Select("version", "sold_to").
			Where("owner_id = ? AND id = ?", sub.OwnerID, sub.ID).
			Take(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub.Version = 1
		case err != nil:
			return err
		case existing.IsSold():
			return ErrSold
		default:
			sub.Version = existing.Version + 1
		}

		// 未售出才允许覆盖，防止检查后被并发售出
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "id"}},
			UpdateAll: true,
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "submissions.sold_to IS NULL"},
			}},
		}).Create(sub)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrSold
		}

		return nil
	})
}

// ListByOwner 按上传时间倒序列出贡献者的全部提交.
func (r *Submissions) ListByOwner(ctx context.Context, ownerID string) ([]model.Submission, error) {
	var subs []model.Submission

	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").Order("id ASC").
		Find(&subs).Error

	return subs, err
}

// ListUnsoldByCategory 按质量降序、上传时间升序、id 升序列出可售条目，limit<=0 不限制.
func (r *Submissions) ListUnsoldByCategory(ctx context.Context, category string, limit int) ([]model.Submission, error) {
	return r.ListUnsoldAfter(ctx, category, nil, limit)
}

// ListUnsoldAfter 与 ListUnsoldByCategory 顺序相同，只返回排在 after 之后的条目（键集分页）.
func (r *Submissions) ListUnsoldAfter(ctx context.Context, category string, after *model.Submission, limit int) ([]model.Submission, error) {
	q := unsold(r.db.WithContext(ctx)).Where("market_category = ?", category)

	if after != nil {
		q = q.Where(
			"quality_score < ? OR (quality_score = ? AND uploaded_at > ?)"+
				" OR (quality_score = ? AND uploaded_at = ? AND id > ?)"+
				" OR (quality_score = ? AND uploaded_at = ? AND id = ? AND owner_id > ?)",
			after.QualityScore,
			after.QualityScore, after.UploadedAt,
			after.QualityScore, after.UploadedAt, after.ID,
			after.QualityScore, after.UploadedAt, after.ID, after.OwnerID,
		)
	}

	q = q.Order("quality_score DESC").Order("uploaded_at ASC").Order("id ASC").Order("owner_id ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var subs []model.Submission

	return subs, q.Find(&subs).Error
}

// ListBySoldTo 列出机构购买的条目，按成交时间倒序.
func (r *Submissions) ListBySoldTo(ctx context.Context, agencyID string) ([]model.Submission, error) {
	var subs []model.Submission

	err := r.db.WithContext(ctx).
		Where("sold_to = ?", agencyID).
		Order("transaction_date DESC").Order("id ASC").
		Find(&subs).Error

	return subs, err
}

// Claim 乐观认领：仅当未售出且版本未变时写入买方与结算批次.
// 返回 false 表示被其它结算抢先或记录已变更.
func (r *Submissions) Claim(ctx context.Context, sub *model.Submission, agencyID, settlementID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("owner_id = ? AND id = ? AND sold_to IS NULL AND version = ?", sub.OwnerID, sub.ID, sub.Version).
		Updates(map[string]any{
			"sold_to":          agencyID,
			"settlement_id":    settlementID,
			"transaction_date": at,
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	sub.SoldTo = &agencyID
	sub.SettlementID = &settlementID
	sub.TransactionDate = &at
	sub.Version++

	return true, nil
}

// SetSoldPrice 写入成交价，仅对本结算批次且尚未定价的条目生效.
func (r *Submissions) SetSoldPrice(ctx context.Context, ownerID, id, settlementID string, price float64) error {
	res := r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("owner_id = ? AND id = ? AND settlement_id = ? AND sold_price IS NULL", ownerID, id, settlementID).
		Updates(map[string]any{
			"sold_price": price,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("set sold price %s/%s: %w", ownerID, id, ErrStale)
	}

	return nil
}

// Delete 删除未售出的记录；并发售出时售出优先.
func (r *Submissions) Delete(ctx context.Context, ownerID, id string) error {
	sub, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if sub.IsSold() {
		return ErrSold
	}

	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ? AND sold_to IS NULL", ownerID, id).
		Delete(&model.Submission{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 1 {
		return nil
	}

	// 条件删除未命中：要么已被删除，要么刚被售出
	if _, err := r.Get(ctx, ownerID, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}

	return ErrSold
}

// SummarizeUnsold 按分类汇总可售条目数量与平均质量分.
func (r *Submissions) SummarizeUnsold(ctx context.Context) ([]CategorySummary, error) {
	var rows []CategorySummary

	err := unsold(r.db.WithContext(ctx).Model(&model.Submission{})).
		Select("market_category, COUNT(*) AS total_files, COALESCE(AVG(quality_score), 0) AS avg_quality").
		Group("market_category").
		Order("market_category ASC").
		Scan(&rows).Error

	return rows, err
}

// KnownObjects 返回指定 bucket 下已处理对象的 object_key -> etag.
func (r *Submissions) KnownObjects(ctx context.Context, bucket string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []struct {
		ObjectKey string `gorm:"column:object_key"`
		ETag      string `gorm:"column:etag"`
	}

	if err := r.db.WithContext(ctx).Model(&model.Submission{}).
		Select("object_key, etag").
		Where("bucket = ? AND object_key IN ?", bucket, keys).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.ObjectKey] = row.ETag
	}

	return out, nil
}
