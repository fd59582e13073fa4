package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/context"
	"github.com/yeisme/datanexus/pkg/internal/storage"
)

// StorageMiddleware 把存储管理器放进 request.Context，service 层从中取 DB、S3、MQ、KV 客户端.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
