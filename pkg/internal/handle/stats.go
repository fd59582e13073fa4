package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/types"
)

// ContributorStats 贡献者收益看板.
//
//	@Summary		贡献者统计
//	@Description	收益为已售条目成交价的贡献者分成，平均质量分覆盖全部上传
//	@Tags			统计
//	@Produce		json
//	@Param			userId	query		string	true	"贡献者 ID"
//	@Success		200		{object}	types.StatsResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/v1/stats [get]
func ContributorStats(c *gin.Context) {
	svc := service.NewStatsServiceFromContext(c.Request.Context())

	st, err := svc.Contributor(c.Request.Context(), c.Query("userId"))
	if err != nil {
		writeError(c, err)
		return
	}

	out := types.StatsResponse{
		Earnings:     st.Earnings,
		AvgQuality:   st.AvgQuality,
		TotalUploads: st.TotalUploads,
		History:      make([]types.HistoryRow, 0, len(st.History)),
	}

	for _, h := range st.History {
		out.History = append(out.History, types.HistoryRow(h))
	}

	c.JSON(http.StatusOK, out)
}
