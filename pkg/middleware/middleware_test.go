package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/middleware"
)

func serve(e *gin.Engine, path string, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := configs.AuthConfig{Enabled: true, SkipPaths: []string{"/health"}, DevAllowQuery: true}

	e := gin.New()
	e.Use(middleware.AuthMiddleware(cfg))
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, middleware.Identity(c)) })

	cases := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"skipped path", "/health", nil, http.StatusOK},
		{"anonymous", "/me", nil, http.StatusUnauthorized},
		{"user header", "/me", map[string]string{middleware.HeaderUser: "alice"}, http.StatusOK},
		{"proxy email", "/me", map[string]string{middleware.HeaderAuthEmail: "a@example.com"}, http.StatusOK},
		{"dev query", "/me?userId=alice", nil, http.StatusOK},
		{"dev agency query", "/me?agencyId=agency-1", nil, http.StatusOK},
	}

	for _, tc := range cases {
		if got := serve(e, tc.path, tc.headers); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRequireMinRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RoleMiddleware())
	e.GET("/buy", middleware.RequireMinRole(middleware.RoleAgency), func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/admin", middleware.RequireMinRole(middleware.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		path string
		role string
		want int
	}{
		{"/buy", "", http.StatusForbidden},
		{"/buy", "agency", http.StatusOK},
		{"/buy", "Admin", http.StatusOK},
		{"/admin", "agency", http.StatusForbidden},
		{"/admin", "admin", http.StatusOK},
	}

	for _, tc := range cases {
		if got := serve(e, tc.path, map[string]string{"X-Role": tc.role}); got != tc.want {
			t.Errorf("%s as %q: status = %d, want %d", tc.path, tc.role, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if middleware.ParseRole(" buyer ") != middleware.RoleAgency {
		t.Error("buyer should map to agency")
	}

	if middleware.ParseRole("root") != middleware.RoleContributor {
		t.Error("unknown role should fall back to contributor")
	}
}

func TestRateLimitByHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1, Key: "header:X-User"}))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := map[string]string{middleware.HeaderUser: "alice"}

	if got := serve(e, "/", alice); got != http.StatusOK {
		t.Fatalf("first request = %d", got)
	}

	if got := serve(e, "/", alice); got != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", got)
	}

	if got := serve(e, "/", map[string]string{middleware.HeaderUser: "bob"}); got != http.StatusOK {
		t.Fatalf("other user = %d, want 200", got)
	}
}
