package scoring

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
	"github.com/yeisme/datanexus/pkg/tracing"
)

// Document 一个待处理的上传文件.
type Document struct {
	ObjectKey string
	Content   []byte
	Metadata  ContributorMetadata
}

// Pipeline 安全检查 -> 内容评分 -> 元数据奖励 -> 收益计算.
type Pipeline struct {
	Gate   *SafetyGate
	Scorer *Scorer
	Bonus  *BonusEvaluator
}

// NewPipeline 根据预言机集合与配置组装流水线.
func NewPipeline(set oracle.Set, ocfg configs.OracleConfig, scfg configs.ScoringConfig) *Pipeline {
	return &Pipeline{
		Gate:   NewSafetyGate(set.Moderator, ocfg.Safety),
		Scorer: NewScorer(set.Vision, set.TextScorer, set.Classifier, scfg),
		Bonus:  NewBonusEvaluator(set.Relevance),
	}
}

// Evaluate 对文档执行完整评分，返回尚未持久化的提交记录（不含对象存储来源字段）.
func (p *Pipeline) Evaluate(ctx context.Context, doc Document) (*model.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.evaluate")
	defer span.End()

	fileName := SubmissionID(doc.ObjectKey)
	kind := DetectKind(fileName)
	md := doc.Metadata

	sub := &model.Submission{
		ID:              fileName,
		OwnerID:         md.OwnerID,
		ContentKind:     kind,
		SizeBytes:       int64(len(doc.Content)),
		UserTags:        datatypes.JSONSlice[string](nonNil(md.Tags)),
		UserTitle:       md.Title,
		UserDescription: md.Description,
		Tags:            datatypes.JSONSlice[string]{},
		MarketCategory:  model.CategoryUncategorized,
	}

	if sub.OwnerID == "" {
		sub.OwnerID = DefaultOwnerID
	}

	verdict := p.Gate.Check(ctx, doc.Content, kind)
	sub.IsSafe = verdict.IsSafe
	sub.SafetyReason = verdict.Reason

	if !verdict.IsSafe {
		sub.ScoreStatus = model.ScoreStatusBlocked

		return sub, setAnalysis(sub, map[string]any{"error": "Content blocked: " + verdict.Reason})
	}

	res := p.Scorer.Score(ctx, Input{Content: doc.Content, FileName: fileName, Kind: kind})

	if res.Status != model.ScoreStatusFailed {
		bonus := p.Bonus.Evaluate(ctx, BonusInput{
			Kind:            kind,
			UserTags:        md.Tags,
			UserDescription: md.Description,
			OracleTags:      res.Tags,
			OracleSummary:   res.Summary,
		})
		bonus.Apply(&res)
		sub.MetadataBonus = bonus.Points
	}

	sub.Tags = datatypes.JSONSlice[string](nonNil(res.Tags))
	sub.Caption = res.Caption
	sub.QualityScore = res.QualityScore
	sub.EstimatedPayout = res.Payout
	sub.MarketCategory = res.Category
	sub.ScoreStatus = res.Status

	return sub, setAnalysis(sub, res.Analysis)
}

func setAnalysis(sub *model.Submission, analysis map[string]any) error {
	raw, err := sonic.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal ai analysis: %w", err)
	}

	sub.AIAnalysis = datatypes.JSON(raw)

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
