package scoring

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
	nlog "github.com/yeisme/datanexus/pkg/log"
)

// BonusInput 元数据奖励的输入.
type BonusInput struct {
	Kind            model.ContentKind
	UserTags        []string
	UserDescription string
	OracleTags      []string
	OracleSummary   string
}

// Bonus 元数据奖励.
type Bonus struct {
	Points  int
	Reasons []string
}

// BonusEvaluator 校验贡献者标签与描述，给出有上限的奖励.
type BonusEvaluator struct {
	relevance oracle.Relevance
	logger    zerolog.Logger
}

// NewBonusEvaluator relevance 为 nil 时不做描述校验.
func NewBonusEvaluator(r oracle.Relevance) *BonusEvaluator {
	return &BonusEvaluator{relevance: r, logger: nlog.Component("bonus")}
}

// Evaluate 计算奖励，相关性预言机失败只记日志.
func (e *BonusEvaluator) Evaluate(ctx context.Context, in BonusInput) Bonus {
	var b Bonus

	if len(in.UserTags) == 0 && in.UserDescription == "" {
		return b
	}

	if in.Kind == model.ContentKindImage {
		if matched := MatchTags(in.UserTags, in.OracleTags); len(matched) > 0 {
			b.Points += min(len(matched)*TagMatchPoints, MaxTagBonus)
			b.Reasons = append(b.Reasons, "Tags match: ["+strings.Join(matched, ", ")+"]")
		}
	}

	if in.UserDescription != "" && in.OracleSummary != "" && e.relevance != nil {
		answer, err := e.relevance.Judge(ctx, in.UserDescription, in.OracleSummary)
		if err != nil {
			e.logger.Warn().Err(err).Msg("description relevance check failed")
		} else if IsRelevant(answer) {
			b.Points += DescriptionBonus
			b.Reasons = append(b.Reasons, "Description verified as relevant")
		}
	}

	b.Points = min(max(b.Points, 0), MaxBonus)

	return b
}

// MatchTags 返回在预言机标签中出现（不区分大小写）的去重贡献者标签，保持原顺序.
func MatchTags(userTags, oracleTags []string) []string {
	have := make(map[string]struct{}, len(oracleTags))
	for _, t := range oracleTags {
		have[strings.ToLower(t)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(userTags))

	var matched []string

	for _, t := range userTags {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		if _, ok := have[key]; ok {
			matched = append(matched, t)
		}
	}

	return matched
}

// IsRelevant 回答大写后包含 RELEVANT 且不包含 NOT.
func IsRelevant(answer string) bool {
	a := strings.ToUpper(strings.TrimSpace(answer))

	return strings.Contains(a, "RELEVANT") && !strings.Contains(a, "NOT")
}

// Apply 把奖励叠加到评分结果上，并重新计算收益.
// blocked/failed 结果不参与奖励.
func (b Bonus) Apply(r *Result) {
	if b.Points <= 0 || r.Status == model.ScoreStatusFailed || r.Status == model.ScoreStatusBlocked {
		return
	}

	r.QualityScore = min(r.QualityScore+b.Points, MaxScore)
	r.Payout = Payout(r.QualityScore)

	if r.Analysis == nil {
		r.Analysis = map[string]any{}
	}

	r.Analysis["metadata_bonus"] = map[string]any{
		"bonus_points": b.Points,
		"reasons":      b.Reasons,
	}
}
