package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/cache"
	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	nlog "github.com/yeisme/datanexus/pkg/log"
	"github.com/yeisme/datanexus/pkg/metrics"
	"github.com/yeisme/datanexus/pkg/queue"
)

const (
	// DefaultAgencyID 请求未携带 agencyId 时的买方
	DefaultAgencyID = "Agency_Generic_1"

	msgNoDatasets   = "No available datasets in this category."
	msgSettleNote   = "Payouts distributed to contributors based on AQI."
	responsibleAIOK = "PASSED"

	// candidateFactor 每页读取 batch_size 倍数的候选，冲突时翻页继续认领
	candidateFactor = 4
)

type (
	// PurchaseRequest 机构购买某分类的一批数据.
	PurchaseRequest struct {
		Category string
		AgencyID string
	}

	// Certificate 成交条目的授权证书.
	Certificate struct {
		CertificateID      string    `json:"certificate_id"`
		TransactionID      string    `json:"transaction_id"`
		AssetName          string    `json:"asset_name"`
		QualityScore       int       `json:"quality_score"`
		ResponsibleAICheck string    `json:"responsible_ai_check"`
		IssuedAt           time.Time `json:"issued_at"`
	}

	// PurchasedItem 成交的单个条目.
	PurchasedItem struct {
		ID           string      `json:"id"`
		OwnerID      string      `json:"owner_id"`
		QualityScore int         `json:"quality_score"`
		SoldPrice    float64     `json:"sold_price"`
		Certificate  Certificate `json:"certificate"`
	}

	// PurchaseResult 购买结果.
	PurchaseResult struct {
		SettlementID string          `json:"settlement_id"`
		Category     string          `json:"category"`
		AgencyID     string          `json:"agency_id"`
		Count        int             `json:"count"`
		TotalCost    float64         `json:"total_cost"`
		Message      string          `json:"message"`
		Note         string          `json:"note"`
		Partial      bool            `json:"partial,omitempty"`
		Items        []PurchasedItem `json:"items"`
	}

	// AgencyPurchase 机构的购买记录.
	AgencyPurchase struct {
		ID              string     `json:"id"`
		OwnerID         string     `json:"owner_id"`
		OriginalName    string     `json:"original_name"`
		MarketCategory  string     `json:"market_category"`
		SoldPrice       *float64   `json:"sold_price"`
		TransactionDate *time.Time `json:"transaction_date"`
		QualityScore    int        `json:"quality_score"`
	}

	// SummaryResult 可售分类汇总，没有数据时 HasData 为 false.
	SummaryResult struct {
		HasData    bool                   `json:"has_data"`
		Categories []repo.CategorySummary `json:"categories"`
	}
)

// MarketService 市场结算.
type MarketService struct {
	repo    *repo.Submissions
	pub     message.Publisher
	summary *cache.Cache
	cfg     configs.MarketConfig
	events  configs.EventsConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// NewMarketService 创建结算服务，pub 与 summary 可为 nil.
func NewMarketService(r *repo.Submissions, pub message.Publisher, summary *cache.Cache,
	cfg configs.MarketConfig, events configs.EventsConfig) *MarketService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}

	if cfg.PoolRate <= 0 {
		cfg.PoolRate = 25
	}

	return &MarketService{
		repo:    r,
		pub:     pub,
		summary: summary,
		cfg:     cfg,
		events:  events,
		logger:  nlog.Component("market"),
		now:     time.Now,
	}
}

// NewMarketServiceFromContext 使用上下文中的存储依赖与全局配置.
func NewMarketServiceFromContext(c context.Context) *MarketService {
	d := depsFromContext(c)
	cfg := configs.GetConfig()

	return NewMarketService(d.repo, d.pub, d.summary, cfg.Market, cfg.Events)
}

// Purchase 认领最多 batch_size 个可售条目，按质量分瓜分资金池.
//
// 认领是逐条的条件更新，冲突的条目跳过；定价写入失败只记录日志并标记 partial，不回滚已认领的条目.
func (s *MarketService) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, newError(ErrValidation, "Missing category")
	}

	if !model.IsMarketCategory(category) {
		return nil, newError(ErrValidation, fmt.Sprintf("Unknown category '%s'.", category))
	}

	agency := strings.TrimSpace(req.AgencyID)
	if agency == "" {
		agency = DefaultAgencyID
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	settlementID := ulid.MustNew(ulid.Timestamp(s.now()), rand.Reader).String()
	at := s.now().UTC()

	claimed, claimErr := s.claim(ctx, category, agency, settlementID, at)
	if len(claimed) == 0 {
		if claimErr != nil {
			return nil, wrapError(ErrPersistence, "claim items failed", claimErr)
		}

		return nil, newError(ErrNotFound, msgNoDatasets)
	}

	partial := claimErr != nil

	scores := make([]int, len(claimed))
	for i := range claimed {
		scores[i] = claimed[i].QualityScore
	}

	pool := float64(len(claimed)) * s.cfg.PoolRate
	prices := Allocate(pool, scores)

	res := &PurchaseResult{
		SettlementID: settlementID,
		Category:     category,
		AgencyID:     agency,
		Count:        len(claimed),
		TotalCost:    pool,
		Message:      fmt.Sprintf("Successfully purchased %d items in '%s'.", len(claimed), category),
		Note:         msgSettleNote,
		Items:        make([]PurchasedItem, 0, len(claimed)),
	}

	for i := range claimed {
		sub := &claimed[i]

		if err := s.repo.SetSoldPrice(ctx, sub.OwnerID, sub.ID, settlementID, prices[i]); err != nil {
			partial = true

			s.logger.Error().Err(err).Str("settlement", settlementID).Str("owner", sub.OwnerID).Str("id", sub.ID).
				Msg("write sold price failed")

			continue
		}

		res.Items = append(res.Items, PurchasedItem{
			ID:           sub.ID,
			OwnerID:      sub.OwnerID,
			QualityScore: sub.QualityScore,
			SoldPrice:    prices[i],
			Certificate: Certificate{
				CertificateID:      uuid.NewString(),
				TransactionID:      settlementID,
				AssetName:          sub.ID,
				QualityScore:       sub.QualityScore,
				ResponsibleAICheck: responsibleAIOK,
				IssuedAt:           at,
			},
		})
	}

	res.Partial = partial

	metrics.SettledItems.WithLabelValues(category).Add(float64(len(claimed)))
	metrics.SettledValue.WithLabelValues(category).Add(pool)

	if err := invalidateSummaries(ctx, s.summary); err != nil {
		s.logger.Debug().Err(err).Msg("invalidate summaries failed")
	}

	s.publishSettled(res)

	s.logger.Info().Str("settlement", settlementID).Str("agency", agency).Str("category", category).
		Int("count", res.Count).Float64("total_cost", pool).Bool("partial", partial).Msg("market settled")

	return res, nil
}

// claim 按确定顺序逐条认领，返回已认领条目；出现存储错误时停止并返回该错误.
// 候选按键集分页读取，冲突的条目跳过后从上一页末尾继续，直到凑满批次或候选耗尽.
func (s *MarketService) claim(ctx context.Context, category, agency, settlementID string, at time.Time) ([]model.Submission, error) {
	batch := s.cfg.BatchSize
	pageSize := batch * candidateFactor

	var (
		claimed []model.Submission
		cursor  *model.Submission
	)

	for len(claimed) < batch {
		page, err := s.repo.ListUnsoldAfter(ctx, category, cursor, pageSize)
		if err != nil {
			return claimed, err
		}

		for i := range page {
			sub := page[i]

			ok, err := s.repo.Claim(ctx, &sub, agency, settlementID, at)
			if err != nil {
				return claimed, err
			}

			if !ok {
				metrics.SettlementConflicts.Inc()
				s.logger.Debug().Str("owner", sub.OwnerID).Str("id", sub.ID).Msg("claim conflict, skipping")

				continue
			}

			claimed = append(claimed, sub)
			if len(claimed) == batch {
				break
			}
		}

		if len(page) < pageSize {
			break
		}

		cursor = &page[len(page)-1]
	}

	return claimed, nil
}

// Allocate 按质量分比例瓜分资金池（精确到分），质量分总和为 0 时平均分配.
// 余下的分按顺序逐个补给前面的条目，保证总和等于资金池.
func Allocate(pool float64, scores []int) []float64 {
	n := len(scores)
	if n == 0 {
		return nil
	}

	poolCents := int64(math.Round(pool * 100))

	var total int64

	for _, s := range scores {
		if s > 0 {
			total += int64(s)
		}
	}

	cents := make([]int64, n)

	var assigned int64

	for i, s := range scores {
		if total > 0 {
			cents[i] = poolCents * int64(max(s, 0)) / total
		} else {
			cents[i] = poolCents / int64(n)
		}

		assigned += cents[i]
	}

	for i := 0; assigned < poolCents; i = (i + 1) % n {
		cents[i]++
		assigned++
	}

	out := make([]float64, n)
	for i, c := range cents {
		out[i] = float64(c) / 100
	}

	return out
}

func (s *MarketService) publishSettled(res *PurchaseResult) {
	if s.pub == nil || !eventsEnabled(s.events, s.events.Market.Settled) {
		return
	}

	items := make([]queue.SettledItem, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, queue.SettledItem{
			OwnerID:      it.OwnerID,
			SubmissionID: it.ID,
			QualityScore: it.QualityScore,
			SoldPrice:    it.SoldPrice,
		})
	}

	err := queue.PublishMarketSettled(s.pub, queue.MarketSettledPayload{
		SettlementID: res.SettlementID,
		AgencyID:     res.AgencyID,
		Category:     res.Category,
		Count:        res.Count,
		TotalCost:    res.TotalCost,
		Partial:      res.Partial,
		Items:        items,
	}, queue.WithProducer(producerName))
	if err != nil {
		s.logger.Error().Err(err).Str("settlement", res.SettlementID).Msg("publish settlement event failed")
	}
}

// AgencyPurchases 机构的购买记录，按成交时间倒序.
func (s *MarketService) AgencyPurchases(ctx context.Context, agencyID string) ([]AgencyPurchase, error) {
	agencyID = strings.TrimSpace(agencyID)
	if agencyID == "" {
		return nil, newError(ErrValidation, "Missing agencyId")
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	subs, err := s.repo.ListBySoldTo(ctx, agencyID)
	if err != nil {
		return nil, wrapError(ErrPersistence, "list purchases failed", err)
	}

	out := make([]AgencyPurchase, 0, len(subs))
	for _, sub := range subs {
		out = append(out, AgencyPurchase{
			ID:              sub.ID,
			OwnerID:         sub.OwnerID,
			OriginalName:    sub.ID,
			MarketCategory:  sub.MarketCategory,
			SoldPrice:       sub.SoldPrice,
			TransactionDate: sub.TransactionDate,
			QualityScore:    sub.QualityScore,
		})
	}

	return out, nil
}

// Summaries 可售分类汇总，按 summary_cache_ttl 缓存.
func (s *MarketService) Summaries(ctx context.Context) (*SummaryResult, error) {
	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	if s.summary == nil {
		return s.loadSummaries(ctx)
	}

	res, err := cache.GetOrLoad(ctx, s.summary, summaryCacheKey, s.cfg.SummaryCacheTTL, s.loadSummaries)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// RefreshSummaries 重新计算并写入缓存.
func (s *MarketService) RefreshSummaries(ctx context.Context) (*SummaryResult, error) {
	if err := invalidateSummaries(ctx, s.summary); err != nil {
		s.logger.Debug().Err(err).Msg("invalidate summaries failed")
	}

	return s.Summaries(ctx)
}

func (s *MarketService) loadSummaries(ctx context.Context) (*SummaryResult, error) {
	rows, err := s.repo.SummarizeUnsold(ctx)
	if err != nil {
		return nil, wrapError(ErrPersistence, "summarize categories failed", err)
	}

	for i := range rows {
		rows[i].AvgQuality = math.Round(rows[i].AvgQuality*10) / 10
	}

	if rows == nil {
		rows = []repo.CategorySummary{}
	}

	return &SummaryResult{HasData: len(rows) > 0, Categories: rows}, nil
}
