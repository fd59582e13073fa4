// Package api 组装对外 HTTP 接口：/api/v1 业务路由与调试模式下的 Swagger 文档.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/router"
)

// BasePath 业务路由前缀.
const BasePath = "/api/v1"

// RegisterGroup 将全部路由注册到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine, cfg *configs.AppConfig) *gin.Engine {
	router.RegisterAPIRoutes(e.Group(BasePath), cfg)
	router.RegisterSwaggerRoute(e, cfg)

	return e
}
