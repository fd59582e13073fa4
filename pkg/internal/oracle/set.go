package oracle

import (
	"fmt"
	"net/http"

	"github.com/yeisme/datanexus/pkg/configs"
)

// NewSet 根据配置创建预言机集合，hc 为 nil 时使用默认 Transport.
// 未配置端点的预言机保持 nil，由调用方按策略处理.
func NewSet(cfg configs.OracleConfig, hc *http.Client) (Set, error) {
	var set Set

	if cfg.Safety.Configured() {
		cs, err := NewContentSafety(cfg.Safety, hc)
		if err != nil {
			return Set{}, fmt.Errorf("content safety: %w", err)
		}

		set.Moderator = GuardModerator(cs, NewGuard("content_safety", cfg.Safety.OracleEndpoint, cfg.Breaker))
	}

	if cfg.Vision.Configured() {
		ia, err := NewImageAnalysis(cfg.Vision, hc)
		if err != nil {
			return Set{}, fmt.Errorf("vision: %w", err)
		}

		set.Vision = GuardVision(ia, NewGuard("vision", cfg.Vision.OracleEndpoint, cfg.Breaker))
	}

	if cfg.LLM.Configured() {
		chat, err := NewChatCompletions(cfg.LLM, hc)
		if err != nil {
			return Set{}, fmt.Errorf("llm: %w", err)
		}

		llm := &guardedLLM{
			scorer:     chat,
			classifier: chat,
			relevance:  chat,
			guard:      NewGuard("llm", cfg.LLM.OracleEndpoint, cfg.Breaker),
		}
		set.TextScorer = llm
		set.Classifier = llm
		set.Relevance = llm
	}

	return set, nil
}

// Configured 返回已配置的预言机名称.
func (s Set) Configured() []string {
	var names []string

	if s.Moderator != nil {
		names = append(names, "content_safety")
	}

	if s.Vision != nil {
		names = append(names, "vision")
	}

	if s.TextScorer != nil {
		names = append(names, "llm")
	}

	return names
}
