package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// PrometheusMiddleware 按路由模板记录请求数和耗时.
// 使用 FullPath 而非原始路径，避免 /submissions/:id 之类的路由把标签基数撑爆.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		method := c.Request.Method
		metrics.RequestCounter.WithLabelValues(method, route).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
