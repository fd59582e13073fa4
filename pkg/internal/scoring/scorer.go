package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
	nlog "github.com/yeisme/datanexus/pkg/log"
)

const (
	visionModel       = "4.0"
	visionErrCaption  = "Error in vision analysis"
	unsupportedNotice = "File type not supported for deep AI analysis yet."
)

// Input 待评分内容.
type Input struct {
	Content  []byte
	FileName string
	Kind     model.ContentKind
}

// Result 评分结果.
type Result struct {
	Tags         []string
	Caption      string
	QualityScore int
	Payout       float64
	Category     string
	// Summary 文本评分给出的摘要，用于描述相关性校验
	Summary  string
	Analysis map[string]any
	Status   model.ScoreStatus
}

// Scorer 按内容类型分派到视觉或文本预言机.
type Scorer struct {
	vision     oracle.Vision
	text       oracle.TextScorer
	classifier oracle.Classifier
	cfg        configs.ScoringConfig
	logger     zerolog.Logger
}

// NewScorer 创建评分器，文本预言机失败按 scoring.on_error 处理，视觉预言机按 scoring.vision_on_error.
func NewScorer(v oracle.Vision, t oracle.TextScorer, c oracle.Classifier, cfg configs.ScoringConfig) *Scorer {
	if cfg.OnError == "" {
		cfg.OnError = configs.FailClosed
	}

	if cfg.VisionOnError == "" {
		cfg.VisionOnError = configs.EmptyTags
	}

	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 8000
	}

	return &Scorer{
		vision:     v,
		text:       t,
		classifier: c,
		cfg:        cfg,
		logger:     nlog.Component("scorer"),
	}
}

// Score 对内容评分，预言机失败不会返回错误，而是按策略降级.
func (s *Scorer) Score(ctx context.Context, in Input) Result {
	switch in.Kind {
	case model.ContentKindImage:
		return s.scoreImage(ctx, in)
	case model.ContentKindCodeOrText:
		return s.scoreText(ctx, in)
	default:
		return s.scoreOther(ctx, in)
	}
}

func (s *Scorer) scoreImage(ctx context.Context, in Input) Result {
	if s.vision == nil {
		return s.visionFailed(ctx, in, oracle.ErrNotConfigured)
	}

	vr, err := s.vision.TagImage(ctx, in.Content)
	if err != nil {
		return s.visionFailed(ctx, in, err)
	}

	score := ClampScore(len(vr.Tags) * 10)

	return Result{
		Tags:         vr.Tags,
		Caption:      vr.Caption,
		QualityScore: score,
		Payout:       Payout(score),
		Category:     classify(ctx, s.classifier, imageDescription(vr.Tags), &s.logger),
		Analysis:     map[string]any{"vision_model": visionModel, "confidence": vr.Confidence},
		Status:       model.ScoreStatusScored,
	}
}

func (s *Scorer) scoreText(ctx context.Context, in Input) Result {
	if s.text == nil {
		return s.degrade(ctx, in, s.cfg.OnError, oracle.ErrNotConfigured, nil)
	}

	preview := Prefix(DecodeText(in.Content), s.cfg.PreviewChars)

	ts, err := s.text.ScoreText(ctx, in.FileName, preview)
	if err != nil {
		return s.degrade(ctx, in, s.cfg.OnError, err, nil)
	}

	score := ClampScore(ts.TrustScore)

	return Result{
		QualityScore: score,
		Payout:       Payout(score),
		Summary:      ts.Summary,
		Category:     classify(ctx, s.classifier, textDescription(in.FileName, ts.Summary), &s.logger),
		Analysis:     map[string]any{"summary": ts.Summary, "reasoning": ts.Reasoning},
		Status:       model.ScoreStatusScored,
	}
}

func (s *Scorer) scoreOther(ctx context.Context, in Input) Result {
	r := Result{
		QualityScore: OtherKindScore,
		Payout:       OtherKindPayout,
		Category:     model.CategoryUncategorized,
		Analysis:     map[string]any{"info": unsupportedNotice},
		Status:       model.ScoreStatusFixed,
	}

	if s.cfg.ClassifyOther {
		r.Category = classify(ctx, s.classifier, otherDescription(in.FileName), &s.logger)
	}

	return r
}

// visionFailed 视觉预言机失败时按 scoring.vision_on_error 处理.
// empty_tags: 视为零标签走常规图片路径，得 0 分与 Payout(0)，照常分类.
func (s *Scorer) visionFailed(ctx context.Context, in Input, err error) Result {
	if s.cfg.VisionOnError != configs.EmptyTags {
		return s.degrade(ctx, in, s.cfg.VisionOnError, err, func(r *Result) { r.Caption = visionErrCaption })
	}

	s.logger.Warn().Err(err).Str("file", in.FileName).Msg("vision oracle failed, scoring image with no tags")

	return Result{
		Caption:      visionErrCaption,
		QualityScore: 0,
		Payout:       Payout(0),
		Category:     classify(ctx, s.classifier, imageDescription(nil), &s.logger),
		Analysis:     map[string]any{"vision_model": visionModel, "error": err.Error()},
		Status:       model.ScoreStatusScored,
	}
}

// degrade 评分预言机失败时的处理.
// fail_closed: 0 分、0 收益、failed、保持 Uncategorized；fail_open: 使用兜底分并照常分类.
func (s *Scorer) degrade(ctx context.Context, in Input, policy configs.OnErrorPolicy, err error, adjust func(*Result)) Result {
	r := Result{
		Analysis: map[string]any{"error": err.Error()},
		Category: model.CategoryUncategorized,
	}

	if adjust != nil {
		adjust(&r)
	}

	ev := s.logger.Warn().Err(err).Str("file", in.FileName).Str("kind", string(in.Kind))

	if policy != configs.FailOpen {
		ev.Msg("scoring oracle failed, marking submission failed")

		r.Status = model.ScoreStatusFailed

		return r
	}

	ev.Int("fallback_score", s.cfg.FallbackScore).Msg("scoring oracle failed, using fallback score")

	r.Status = model.ScoreStatusScored
	r.QualityScore = ClampScore(s.cfg.FallbackScore)
	r.Payout = Payout(r.QualityScore)
	r.Analysis["fallback_score"] = r.QualityScore

	switch in.Kind {
	case model.ContentKindImage:
		r.Category = classify(ctx, s.classifier, imageDescription(nil), &s.logger)
	default:
		r.Category = classify(ctx, s.classifier, textDescription(in.FileName, ""), &s.logger)
	}

	return r
}

// String 便于日志输出.
func (r Result) String() string {
	return fmt.Sprintf("status=%s score=%d payout=%.2f category=%s", r.Status, r.QualityScore, r.Payout, r.Category)
}
