package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/internal/handle"
)

// RegisterStatsRoutes 注册统计相关路由.
func RegisterStatsRoutes(g *gin.RouterGroup) {
	g.GET("/stats", handle.ContributorStats)
}
