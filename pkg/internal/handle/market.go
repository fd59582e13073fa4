package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/types"
)

// Purchase 机构按分类购买一批数据.
//
//	@Summary		购买数据集
//	@Description	认领该分类下质量最高的未售条目（最多 batch_size 个），资金池按质量分比例分配给贡献者
//	@Tags			市场
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.PurchaseRequest	true	"购买请求"
//	@Success		200		{object}	types.PurchaseResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/v1/market/purchase [post]
func Purchase(c *gin.Context) {
	var req types.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	svc := service.NewMarketServiceFromContext(c.Request.Context())

	res, err := svc.Purchase(c.Request.Context(), service.PurchaseRequest{Category: req.Category, AgencyID: req.AgencyID})
	if err != nil {
		writeError(c, err)
		return
	}

	out := types.PurchaseResponse{
		Message:      res.Message,
		Count:        res.Count,
		TotalCost:    res.TotalCost,
		Note:         res.Note,
		SettlementID: res.SettlementID,
		Partial:      res.Partial,
		Items:        make([]types.PurchasedItem, 0, len(res.Items)),
	}

	for _, it := range res.Items {
		out.Items = append(out.Items, types.PurchasedItem{
			ID:           it.ID,
			OwnerID:      it.OwnerID,
			QualityScore: it.QualityScore,
			SoldPrice:    it.SoldPrice,
			Certificate: types.Certificate{
				CertificateID:      it.Certificate.CertificateID,
				TransactionID:      it.Certificate.TransactionID,
				AssetName:          it.Certificate.AssetName,
				QualityScore:       it.Certificate.QualityScore,
				ResponsibleAICheck: it.Certificate.ResponsibleAICheck,
				IssuedAt:           it.Certificate.IssuedAt.Format(timeLayout),
			},
		})
	}

	c.JSON(http.StatusOK, out)
}

// MarketSummaries 可售分类汇总.
//
//	@Summary	分类汇总
//	@Tags		市场
//	@Produce	json
//	@Success	200	{object}	types.SummariesResponse
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/v1/market/summaries [get]
func MarketSummaries(c *gin.Context) {
	svc := service.NewMarketServiceFromContext(c.Request.Context())

	res, err := svc.Summaries(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := types.SummariesResponse{HasData: res.HasData, Categories: make([]types.CategorySummary, 0, len(res.Categories))}
	for _, row := range res.Categories {
		out.Categories = append(out.Categories, types.CategorySummary{
			MarketCategory: row.MarketCategory,
			TotalFiles:     row.TotalFiles,
			AvgQuality:     row.AvgQuality,
		})
	}

	c.JSON(http.StatusOK, out)
}

// AgencyPurchases 机构的购买记录.
//
//	@Summary	机构购买记录
//	@Tags		市场
//	@Produce	json
//	@Param		agencyId	query		string	true	"机构 ID"
//	@Success	200			{array}		types.AgencyPurchase
//	@Failure	400			{object}	types.ErrorResponse
//	@Failure	500			{object}	types.ErrorResponse
//	@Router		/api/v1/agency/purchases [get]
func AgencyPurchases(c *gin.Context) {
	svc := service.NewMarketServiceFromContext(c.Request.Context())

	rows, err := svc.AgencyPurchases(c.Request.Context(), c.Query("agencyId"))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]types.AgencyPurchase, 0, len(rows))
	for _, r := range rows {
		p := types.AgencyPurchase{
			ID:             r.ID,
			OwnerID:        r.OwnerID,
			OriginalName:   r.OriginalName,
			MarketCategory: r.MarketCategory,
			SoldPrice:      r.SoldPrice,
			QualityScore:   r.QualityScore,
		}

		if r.TransactionDate != nil {
			p.TransactionDate = r.TransactionDate.UTC().Format(timeLayout)
		}

		out = append(out, p)
	}

	c.JSON(http.StatusOK, out)
}
