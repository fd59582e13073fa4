package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/configs"
)

// CORSMiddleware 允许前端门户跨域访问，并放行身份相关请求头.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AddAllowHeaders(HeaderUser, "X-Role")
	config.AddAllowMethods("DELETE")

	if cfg.Debug {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}

	return cors.New(config)
}
