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
	// MaxSafeSeverity 严重度超过该值即判定不安全
	MaxSafeSeverity = 2

	ReasonSafe        = "Safe"
	ReasonSkipped     = "skipped"
	ReasonUnavailable = "safety check unavailable"
)

// Verdict 安全检查结论.
type Verdict struct {
	IsSafe bool
	Reason string
}

// SafetyGate 内容安全检查，moderator 为 nil 时直接放行.
type SafetyGate struct {
	moderator   oracle.Moderator
	onError     configs.OnErrorPolicy
	sampleChars int
	logger      zerolog.Logger
}

// NewSafetyGate 创建安全检查.
func NewSafetyGate(m oracle.Moderator, cfg configs.SafetyOracleConfig) *SafetyGate {
	sample := cfg.TextSampleChars
	if sample <= 0 {
		sample = 10000
	}

	onError := cfg.OnError
	if onError == "" {
		onError = configs.FailOpen
	}

	return &SafetyGate{
		moderator:   m,
		onError:     onError,
		sampleChars: sample,
		logger:      nlog.Component("safety"),
	}
}

// Check 审核内容，other 类型不送审.
func (g *SafetyGate) Check(ctx context.Context, content []byte, kind model.ContentKind) Verdict {
	if kind != model.ContentKindImage && kind != model.ContentKindCodeOrText {
		return Verdict{IsSafe: true, Reason: ReasonSafe}
	}

	if g.moderator == nil {
		return Verdict{IsSafe: true, Reason: ReasonSkipped}
	}

	var (
		cats []oracle.CategorySeverity
		err  error
	)

	if kind == model.ContentKindImage {
		cats, err = g.moderator.CheckImage(ctx, content)
	} else {
		cats, err = g.moderator.CheckText(ctx, Prefix(DecodeText(content), g.sampleChars))
	}

	if err != nil {
		if g.onError == configs.FailClosed {
			g.logger.Warn().Err(err).Str("kind", string(kind)).Msg("safety check failed, blocking")

			return Verdict{IsSafe: false, Reason: ReasonUnavailable}
		}

		g.logger.Warn().Err(err).Str("kind", string(kind)).Msg("safety check failed, allowing")

		return Verdict{IsSafe: true, Reason: ReasonSkipped + ": " + err.Error()}
	}

	return Judge(cats)
}

// Judge 第一个严重度大于 2 的类别判定不安全.
func Judge(cats []oracle.CategorySeverity) Verdict {
	for _, c := range cats {
		if c.Severity > MaxSafeSeverity {
			return Verdict{IsSafe: false, Reason: fmt.Sprintf("Flagged for %s (severity %d)", c.Category, c.Severity)}
		}
	}

	return Verdict{IsSafe: true, Reason: ReasonSafe}
}
