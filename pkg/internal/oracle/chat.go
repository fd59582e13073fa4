package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/yeisme/datanexus/pkg/configs"
)

const (
	auditorSystemPrompt = "You are a senior code auditor and data quality expert."

	classifySystemPrompt = "Classify this content into exactly ONE of these categories: " +
		"'Autonomous Driving', 'Medical Imaging', 'Robotics Training', 'Developer Tools', " +
		"'Financial Data', 'General'. Return only the category name."

	relevanceSystemPrompt = "You verify if user descriptions are accurate. " +
		"Return only 'RELEVANT' or 'NOT_RELEVANT' based on whether the description accurately matches the content."

	// defaultTrustScore 回答缺少 trust_score 时使用
	defaultTrustScore = 50
)

// ChatCompletions Azure OpenAI chat completions 客户端，同时实现文本评分、分类与相关性判断.
type ChatCompletions struct {
	rest       *restClient
	deployment string
}

var (
	_ TextScorer = (*ChatCompletions)(nil)
	_ Classifier = (*ChatCompletions)(nil)
	_ Relevance  = (*ChatCompletions)(nil)
)

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	responseFormat struct {
		Type string `json:"type"`
	}

	chatRequest struct {
		Messages       []chatMessage   `json:"messages"`
		ResponseFormat *responseFormat `json:"response_format,omitempty"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
)

// NewChatCompletions 创建 chat completions 客户端.
func NewChatCompletions(cfg configs.LLMOracleConfig, hc *http.Client) (*ChatCompletions, error) {
	deployment := strings.TrimSpace(cfg.Deployment)
	if deployment == "" {
		return nil, fmt.Errorf("llm deployment required: %w", ErrNotConfigured)
	}

	rest, err := newRESTClient("llm", cfg.OracleEndpoint, "api-key", cfg.APIVersion, hc)
	if err != nil {
		return nil, err
	}

	return &ChatCompletions{rest: rest, deployment: deployment}, nil
}

func (c *ChatCompletions) complete(ctx context.Context, req chatRequest) (string, error) {
	path := "/openai/deployments/" + url.PathEscape(c.deployment) + "/chat/completions"

	var out chatResponse
	if err := c.rest.postJSON(ctx, path, nil, req, &out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices: %w", ErrMalformed)
	}

	return out.Choices[0].Message.Content, nil
}

// ScoreText 让模型返回 {trust_score, summary, reasoning}.
func (c *ChatCompletions) ScoreText(ctx context.Context, fileName, preview string) (TextScore, error) {
	content, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: auditorSystemPrompt},
			{Role: "user", Content: scorePrompt(fileName, preview)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return TextScore{}, err
	}

	return ParseTextScore(content)
}

// ParseTextScore 解析模型 JSON 回答，trust_score 缺失时为 50.
func ParseTextScore(content string) (TextScore, error) {
	var raw struct {
		TrustScore *float64 `json:"trust_score"`
		Summary    string   `json:"summary"`
		Reasoning  string   `json:"reasoning"`
	}

	if err := sonic.UnmarshalString(strings.TrimSpace(content), &raw); err != nil {
		return TextScore{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	score := TextScore{TrustScore: defaultTrustScore, Summary: raw.Summary, Reasoning: raw.Reasoning}
	if raw.TrustScore != nil {
		score.TrustScore = int(*raw.TrustScore)
	}

	return score, nil
}

// Classify 返回模型给出的分类原文.
func (c *ChatCompletions) Classify(ctx context.Context, description string) (string, error) {
	content, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: description},
		},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}

// Judge 返回 RELEVANT / NOT_RELEVANT 原文.
func (c *ChatCompletions) Judge(ctx context.Context, userDescription, analysisSummary string) (string, error) {
	user := fmt.Sprintf("User description: '%s'\n\nAI analysis: '%s'\n\nIs the user's description relevant and accurate?",
		userDescription, analysisSummary)

	content, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: relevanceSystemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}

func scorePrompt(fileName, preview string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the following file named '%s'.\n\n", fileName)
	b.WriteString("Determine:\n")
	b.WriteString("1. Is this valid, high-quality code/text?\n")
	b.WriteString("2. What does it do? (Short summary)\n")
	b.WriteString("3. Assign a 'Trust Score' from 1 to 100 based on utility, cleanliness, and complexity.\n\n")
	b.WriteString("Return ONLY a JSON object:\n")
	b.WriteString("{\n    \"trust_score\": <int>,\n    \"summary\": \"<string>\",\n    \"reasoning\": \"<string>\"\n}\n\n")
	b.WriteString("Content:\n")
	b.WriteString(preview)

	return b.String()
}
