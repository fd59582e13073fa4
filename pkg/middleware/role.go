// Package middleware 提供角色与权限相关的中间件和辅助方法。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role 表示请求方的角色，数值越大权限越高。
type Role int

const (
	RoleContributor Role = iota + 1
	RoleAgency
	RoleAdmin
)

// String 返回角色的字符串表示。
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAgency:
		return "agency"
	case RoleContributor:
		fallthrough
	default:
		return "contributor"
	}
}

type roleKey struct{}

// ParseRole 从字符串解析角色，未知值降级为 contributor。
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "agency", "buyer":
		return RoleAgency
	default:
		return RoleContributor
	}
}

// RoleMiddleware 解析 X-Role（由网关在认证后注入）并写入 gin.Context 和 request.Context。
func RoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := ParseRole(c.GetHeader("X-Role"))
		c.Set("role", r)

		ctx := context.WithValue(c.Request.Context(), roleKey{}, r)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRole 获取当前请求角色，未设置时为 contributor。
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get("role"); ok {
		if r, ok2 := v.(Role); ok2 {
			return r
		}
	}

	if r, ok := c.Request.Context().Value(roleKey{}).(Role); ok {
		return r
	}

	return RoleContributor
}

// RequireMinRole 要求最小角色，不满足则返回 403。
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden: requires " + minRole.String() + " role"})
			return
		}

		c.Next()
	}
}
