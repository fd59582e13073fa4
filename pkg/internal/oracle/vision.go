package oracle

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yeisme/datanexus/pkg/configs"
)

// ImageAnalysis Azure AI Vision 4.0 图像分析客户端.
type ImageAnalysis struct {
	rest *restClient
}

var _ Vision = (*ImageAnalysis)(nil)

type imageAnalysisResponse struct {
	CaptionResult *struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"captionResult"`
	TagsResult *struct {
		Values []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"values"`
	} `json:"tagsResult"`
}

// NewImageAnalysis 创建图像分析客户端.
func NewImageAnalysis(cfg configs.VisionOracleConfig, hc *http.Client) (*ImageAnalysis, error) {
	rest, err := newRESTClient("vision", cfg.OracleEndpoint, "Ocp-Apim-Subscription-Key", cfg.APIVersion, hc)
	if err != nil {
		return nil, err
	}

	return &ImageAnalysis{rest: rest}, nil
}

// TagImage 提取标签与描述，没有描述时 Caption 为 "No caption generated.".
func (c *ImageAnalysis) TagImage(ctx context.Context, image []byte) (VisionResult, error) {
	q := url.Values{}
	q.Set("features", "tags,caption")

	var out imageAnalysisResponse
	if err := c.rest.post(ctx, "/computervision/imageanalysis:analyze", q, "application/octet-stream", image, &out); err != nil {
		return VisionResult{}, err
	}

	res := VisionResult{Caption: "No caption generated."}
	if out.CaptionResult != nil {
		res.Caption = out.CaptionResult.Text
		res.Confidence = out.CaptionResult.Confidence
	}

	if out.TagsResult != nil {
		res.Tags = make([]string, 0, len(out.TagsResult.Values))
		for _, v := range out.TagsResult.Values {
			if v.Name != "" {
				res.Tags = append(res.Tags, v.Name)
			}
		}
	}

	return res, nil
}
