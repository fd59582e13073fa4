package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
)

const (
	msgMissingUserID = "Missing userId parameter"

	historyDateLayout = "2006-01-02"

	statusSold    = "Sold"
	statusPending = "Pending"
	statusBlocked = "Blocked"
)

var dollarPrinter = message.NewPrinter(language.English)

type (
	// HistoryRow 贡献者看板中的一行.
	HistoryRow struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Date     string `json:"date"`
		Quality  int    `json:"quality"`
		Earnings string `json:"earnings"`
		Status   string `json:"status"`
		Category string `json:"category"`
	}

	// ContributorStats 贡献者收益统计.
	ContributorStats struct {
		Earnings     string       `json:"earnings"`
		AvgQuality   string       `json:"avg_quality"`
		TotalUploads int          `json:"total_uploads"`
		History      []HistoryRow `json:"history"`
	}
)

// StatsService 贡献者统计.
type StatsService struct {
	repo  *repo.Submissions
	share float64
}

// NewStatsService 创建统计服务，share 为贡献者分成比例.
func NewStatsService(r *repo.Submissions, share float64) *StatsService {
	return &StatsService{repo: r, share: share}
}

// NewStatsServiceFromContext 使用上下文中的存储依赖与全局配置.
func NewStatsServiceFromContext(c context.Context) *StatsService {
	return NewStatsService(depsFromContext(c).repo, configs.GetConfig().Market.ContributorShare)
}

// Contributor 汇总收益（已售条目成交价的分成）、平均质量分与上传历史.
func (s *StatsService) Contributor(ctx context.Context, userID string) (*ContributorStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrValidation, msgMissingUserID)
	}

	if s.repo == nil {
		return nil, newError(ErrUnavailable, "database not configured")
	}

	subs, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, wrapError(ErrPersistence, "list submissions failed", err)
	}

	var (
		earnings float64
		quality  int
	)

	history := make([]HistoryRow, 0, len(subs))

	for i := range subs {
		sub := &subs[i]
		quality += sub.QualityScore

		row := HistoryRow{
			ID:       sub.ID,
			Name:     sub.ID,
			Date:     sub.UploadedAt.Format(historyDateLayout),
			Quality:  sub.QualityScore,
			Earnings: "$0.00",
			Status:   statusPending,
			Category: sub.MarketCategory,
		}

		switch {
		case sub.IsSold():
			share := s.contributorShare(sub)
			earnings += share
			row.Earnings = fmt.Sprintf("$%.2f", share)
			row.Status = statusSold
		case sub.ScoreStatus == model.ScoreStatusBlocked:
			row.Status = statusBlocked
		}

		history = append(history, row)
	}

	avg := 0.0
	if len(subs) > 0 {
		avg = float64(quality) / float64(len(subs))
	}

	return &ContributorStats{
		Earnings:     FormatDollars(earnings),
		AvgQuality:   fmt.Sprintf("%.1f%%", avg),
		TotalUploads: len(subs),
		History:      history,
	}, nil
}

func (s *StatsService) contributorShare(sub *model.Submission) float64 {
	return math.Round(sub.Payout()*s.share*100) / 100
}

// FormatDollars 格式化为带千分位的美元金额，如 $1,234.50.
func FormatDollars(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	return sign + dollarPrinter.Sprintf("$%.2f", math.Round(v*100)/100)
}
