// Package handle 提供 HTTP 请求处理器，业务逻辑由 service 包实现.
package handle

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/types"
	"github.com/yeisme/datanexus/pkg/log"
)

const timeLayout = time.RFC3339

// writeError 按错误分类映射状态码，响应体只包含可展示的消息.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)

		log.Logger().Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.JSON(status, types.ErrorResponse{Message: service.PublicMessage(err)})
}

// bindJSON 解析并校验请求体，失败时直接写 400.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		resp := types.ErrorResponse{Message: "Invalid request body"}

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Message = "Invalid request parameters"
			resp.Fields = make(map[string]string, len(verrs))

			for _, fe := range verrs {
				resp.Fields[fe.Field()] = fe.Tag()
			}
		}

		c.JSON(http.StatusBadRequest, resp)

		return false
	}

	return true
}

// userID 读取 userId：query 优先，其次 X-User 请求头.
func userID(c *gin.Context) string {
	if v := strings.TrimSpace(c.Query("userId")); v != "" {
		return v
	}

	return strings.TrimSpace(c.GetHeader("X-User"))
}

func toSubmission(s *model.Submission) types.Submission {
	out := types.Submission{
		ID:              s.ID,
		OwnerID:         s.OwnerID,
		ObjectKey:       s.ObjectKey,
		ContentType:     s.ContentType,
		SizeBytes:       s.SizeBytes,
		UploadedAt:      s.UploadedAt.UTC().Format(timeLayout),
		ContentKind:     string(s.ContentKind),
		Tags:            []string(s.Tags),
		Caption:         s.Caption,
		UserTitle:       s.UserTitle,
		UserDescription: s.UserDescription,
		UserTags:        []string(s.UserTags),
		IsSafe:          s.IsSafe,
		SafetyReason:    s.SafetyReason,
		ScoreStatus:     string(s.ScoreStatus),
		QualityScore:    s.QualityScore,
		MetadataBonus:   s.MetadataBonus,
		EstimatedPayout: s.EstimatedPayout,
		SoldPrice:       s.SoldPrice,
		Payout:          s.Payout(),
		MarketCategory:  s.MarketCategory,
		Sold:            s.IsSold(),
	}

	if out.Tags == nil {
		out.Tags = []string{}
	}

	if len(s.AIAnalysis) > 0 {
		var analysis map[string]any
		if err := sonic.Unmarshal(s.AIAnalysis, &analysis); err == nil {
			out.AIAnalysis = analysis
		}
	}

	if s.TransactionDate != nil {
		out.TransactionDate = s.TransactionDate.UTC().Format(timeLayout)
	}

	return out
}
