package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/configs"
)

// 身份请求头由前置的认证代理注入.
const (
	HeaderUser      = "X-User"
	HeaderAuthEmail = "X-Auth-Request-Email"
	HeaderFwdEmail  = "X-Forwarded-Email"
	userContextKey  = "identity"
	devQueryUser    = "userId"
	devQueryAgency  = "agencyId"
	msgUnauthorized = "unauthorized"
)

// AuthMiddleware 校验认证代理注入的身份头.
//   - 认证关闭或路径命中 skip_paths 时直接放行
//   - 开发模式 (dev_allow_query) 允许 ?userId= / ?agencyId= 充当身份
//
// 通过校验的身份写入 gin.Context，可用 Identity 读取.
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled || isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		id := headerIdentity(c)
		if id == "" && conf.DevAllowQuery {
			id = queryIdentity(c)
		}

		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUnauthorized})
			return
		}

		c.Set(userContextKey, id)
		c.Next()
	}
}

// Identity 返回认证通过的身份，未认证时为空串.
func Identity(c *gin.Context) string {
	return c.GetString(userContextKey)
}

func headerIdentity(c *gin.Context) string {
	for _, h := range []string{HeaderUser, HeaderAuthEmail, HeaderFwdEmail} {
		if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
			return v
		}
	}

	return ""
}

func queryIdentity(c *gin.Context) string {
	if v := strings.TrimSpace(c.Query(devQueryUser)); v != "" {
		return v
	}

	return strings.TrimSpace(c.Query(devQueryAgency))
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
