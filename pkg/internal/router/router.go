// Package router 管理路由配置，将路径与 handle 包中的处理器绑定.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/handle"
	"github.com/yeisme/datanexus/pkg/middleware"
)

// RegisterAPIRoutes 注册 /api/v1 下的全部业务路由.
//
//	POST   /market/purchase          -> 购买数据集
//	GET    /market/summaries         -> 分类汇总
//	GET    /agency/purchases         -> 机构购买记录
//	GET    /stats                    -> 贡献者看板
//	GET    /submissions              -> 提交列表
//	GET    /submissions/:id          -> 提交详情
//	POST   /submissions/delete       -> 删除提交
//	DELETE /submissions/:id          -> 删除提交
//	POST   /submissions/reprocess    -> 重新评分
//	POST   /storage/upload-url       -> 上传链接
func RegisterAPIRoutes(g *gin.RouterGroup, cfg *configs.AppConfig) {
	RegisterHealthCheckRoute(g)
	RegisterMarketRoutes(g, cfg.Auth.Enabled)
	RegisterSubmissionRoutes(g)
	RegisterStatsRoutes(g)

	admin := g.Group("")
	if cfg.Auth.Enabled {
		admin.Use(middleware.RequireMinRole(middleware.RoleAdmin))
	}

	RegisterSchedulerRoutes(admin)
}

// RegisterMarketRoutes 注册市场路由，启用认证时购买需要机构角色.
func RegisterMarketRoutes(g *gin.RouterGroup, enforceRoles bool) {
	market := g.Group("/market")
	{
		market.GET("/summaries", handle.MarketSummaries)

		if enforceRoles {
			market.POST("/purchase", middleware.RequireMinRole(middleware.RoleAgency), handle.Purchase)
		} else {
			market.POST("/purchase", handle.Purchase)
		}
	}

	g.GET("/agency/purchases", handle.AgencyPurchases)
}

// RegisterSubmissionRoutes 注册贡献者提交相关路由.
func RegisterSubmissionRoutes(g *gin.RouterGroup) {
	subs := g.Group("/submissions")
	{
		subs.GET("", handle.ListSubmissions)
		subs.POST("/delete", handle.DeleteSubmission)
		subs.POST("/reprocess", handle.ReprocessSubmission)
		subs.GET("/:id", handle.GetSubmission)
		subs.DELETE("/:id", handle.DeleteSubmissionByID)
	}

	g.POST("/storage/upload-url", handle.UploadURL)
}
