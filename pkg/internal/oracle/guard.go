package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/metrics"
	"github.com/yeisme/datanexus/pkg/tracing"
)

// Guard 为预言机调用叠加限流、熔断、链路追踪与指标.
// 单次调用的超时由 REST 客户端负责.
type Guard struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuard 创建 Guard，RPS 为 0 时不限流.
func NewGuard(name string, ep configs.OracleEndpoint, br configs.OracleBreakerConfig) *Guard {
	failures := br.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle-" + name,
		MaxRequests: br.MaxRequests,
		Interval:    br.Interval,
		Timeout:     br.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 调用方取消不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	g := &Guard{name: name, cb: cb}
	if ep.RPS > 0 {
		burst := ep.Burst
		if burst <= 0 {
			burst = 1
		}

		g.limiter = rate.NewLimiter(rate.Limit(ep.RPS), burst)
	}

	return g
}

// State 当前熔断状态.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

func guarded[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := tracing.StartSpan(ctx, "oracle."+g.name+"."+op)
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.OracleCalls.WithLabelValues(g.name, "rejected").Inc()
			span.SetStatus(codes.Error, err.Error())

			return zero, err
		}
	}

	start := time.Now()
	v, err := g.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	metrics.OracleDuration.WithLabelValues(g.name).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}

		metrics.OracleCalls.WithLabelValues(g.name, outcome).Inc()
		span.SetStatus(codes.Error, err.Error())

		return zero, err
	}

	metrics.OracleCalls.WithLabelValues(g.name, "ok").Inc()

	return v.(T), nil
}

type guardedModerator struct {
	next  Moderator
	guard *Guard
}

func (m *guardedModerator) CheckText(ctx context.Context, text string) ([]CategorySeverity, error) {
	return guarded(ctx, m.guard, "check_text", func(ctx context.Context) ([]CategorySeverity, error) {
		return m.next.CheckText(ctx, text)
	})
}

func (m *guardedModerator) CheckImage(ctx context.Context, image []byte) ([]CategorySeverity, error) {
	return guarded(ctx, m.guard, "check_image", func(ctx context.Context) ([]CategorySeverity, error) {
		return m.next.CheckImage(ctx, image)
	})
}

type guardedVision struct {
	next  Vision
	guard *Guard
}

func (v *guardedVision) TagImage(ctx context.Context, image []byte) (VisionResult, error) {
	return guarded(ctx, v.guard, "tag_image", func(ctx context.Context) (VisionResult, error) {
		return v.next.TagImage(ctx, image)
	})
}

// guardedLLM 文本评分、分类、相关性共用同一个部署，因此共用一个 Guard.
type guardedLLM struct {
	scorer     TextScorer
	classifier Classifier
	relevance  Relevance
	guard      *Guard
}

func (l *guardedLLM) ScoreText(ctx context.Context, fileName, preview string) (TextScore, error) {
	return guarded(ctx, l.guard, "score_text", func(ctx context.Context) (TextScore, error) {
		return l.scorer.ScoreText(ctx, fileName, preview)
	})
}

func (l *guardedLLM) Classify(ctx context.Context, description string) (string, error) {
	return guarded(ctx, l.guard, "classify", func(ctx context.Context) (string, error) {
		return l.classifier.Classify(ctx, description)
	})
}

func (l *guardedLLM) Judge(ctx context.Context, userDescription, analysisSummary string) (string, error) {
	return guarded(ctx, l.guard, "judge", func(ctx context.Context) (string, error) {
		return l.relevance.Judge(ctx, userDescription, analysisSummary)
	})
}

// GuardModerator 用 Guard 包装 Moderator.
func GuardModerator(m Moderator, g *Guard) Moderator {
	return &guardedModerator{next: m, guard: g}
}

// GuardVision 用 Guard 包装 Vision.
func GuardVision(v Vision, g *Guard) Vision {
	return &guardedVision{next: v, guard: g}
}
