package oracle

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/yeisme/datanexus/pkg/configs"
)

// ContentSafety Azure AI Content Safety 客户端.
type ContentSafety struct {
	rest *restClient
}

var _ Moderator = (*ContentSafety)(nil)

type (
	textAnalyzeRequest struct {
		Text string `json:"text"`
	}

	imageAnalyzeRequest struct {
		Image struct {
			Content string `json:"content"`
		} `json:"image"`
	}

	analyzeResponse struct {
		CategoriesAnalysis []CategorySeverity `json:"categoriesAnalysis"`
	}
)

// NewContentSafety 创建内容安全客户端，hc 为 nil 时使用默认 Transport.
func NewContentSafety(cfg configs.SafetyOracleConfig, hc *http.Client) (*ContentSafety, error) {
	rest, err := newRESTClient("content_safety", cfg.OracleEndpoint, "Ocp-Apim-Subscription-Key", cfg.APIVersion, hc)
	if err != nil {
		return nil, err
	}

	return &ContentSafety{rest: rest}, nil
}

// CheckText 审核文本.
func (c *ContentSafety) CheckText(ctx context.Context, text string) ([]CategorySeverity, error) {
	var out analyzeResponse
	if err := c.rest.postJSON(ctx, "/contentsafety/text:analyze", nil, textAnalyzeRequest{Text: text}, &out); err != nil {
		return nil, err
	}

	return out.CategoriesAnalysis, nil
}

// CheckImage 审核图片.
func (c *ContentSafety) CheckImage(ctx context.Context, image []byte) ([]CategorySeverity, error) {
	var req imageAnalyzeRequest
	req.Image.Content = base64.StdEncoding.EncodeToString(image)

	var out analyzeResponse
	if err := c.rest.postJSON(ctx, "/contentsafety/image:analyze", nil, req, &out); err != nil {
		return nil, err
	}

	return out.CategoriesAnalysis, nil
}
