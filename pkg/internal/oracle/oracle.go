// Package oracle 封装外部 AI 服务（内容安全审核、图像标注、生成式文本评分）.
//
// 每类能力都是单一职责的接口，评分流水线只依赖接口；HTTP 实现通过 Guard 叠加
// 超时、限流与熔断。未配置端点的预言机在 Set 中为 nil.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured 预言机未配置.
	ErrNotConfigured = errors.New("oracle not configured")
	// ErrMalformed 预言机返回了无法解析的结果.
	ErrMalformed = errors.New("oracle returned malformed output")
)

// 内容安全类别.
const (
	CategoryHate     = "Hate"
	CategorySelfHarm = "SelfHarm"
	CategorySexual   = "Sexual"
	CategoryViolence = "Violence"
)

// CategorySeverity 单个内容安全类别的严重度（0-7）.
type CategorySeverity struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

// VisionResult 图像标注结果.
type VisionResult struct {
	// Tags 按置信度排序的标签名
	Tags       []string
	Caption    string
	Confidence float64
}

// TextScore 文本评分结果.
type TextScore struct {
	TrustScore int    `json:"trust_score"`
	Summary    string `json:"summary"`
	Reasoning  string `json:"reasoning"`
}

type (
	// Moderator 内容安全审核.
	Moderator interface {
		CheckText(ctx context.Context, text string) ([]CategorySeverity, error)
		CheckImage(ctx context.Context, image []byte) ([]CategorySeverity, error)
	}

	// Vision 图像标注与描述.
	Vision interface {
		TagImage(ctx context.Context, image []byte) (VisionResult, error)
	}

	// TextScorer 对代码或文本打可信分.
	TextScorer interface {
		ScoreText(ctx context.Context, fileName, preview string) (TextScore, error)
	}

	// Classifier 返回市场分类的原始回答.
	Classifier interface {
		Classify(ctx context.Context, description string) (string, error)
	}

	// Relevance 判断贡献者描述与分析摘要是否一致，返回原始回答.
	Relevance interface {
		Judge(ctx context.Context, userDescription, analysisSummary string) (string, error)
	}
)

// Set 一组预言机，未配置的为 nil.
type Set struct {
	Moderator  Moderator
	Vision     Vision
	TextScorer TextScorer
	Classifier Classifier
	Relevance  Relevance
}

// HTTPError 上游返回非 2xx.
type HTTPError struct {
	Oracle     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "oracle http error"
	}

	if e.Body == "" {
		return fmt.Sprintf("%s http error: status=%d", e.Oracle, e.StatusCode)
	}

	return fmt.Sprintf("%s http error: status=%d body=%s", e.Oracle, e.StatusCode, e.Body)
}
