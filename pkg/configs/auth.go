package configs

import "github.com/spf13/viper"

// AuthConfig 身份认证配置.
// 身份来自网关注入的 X-User / X-Auth-Request-Email 头，角色来自 X-Role；
// 启用后购买数据集需要 agency 角色，调度器接口需要 admin 角色.
type AuthConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	SkipPaths []string `mapstructure:"skip_paths"      rule:"dive,startswith=/"` // 跳过认证的路径前缀
	// DevAllowQuery 允许用 ?userId= / ?agencyId= 代替请求头，仅用于本地调试
	DevAllowQuery bool `mapstructure:"dev_allow_query"`
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.dev_allow_query", true)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/swagger",
		"/api/v1/health",
		"/api/v1/market/summaries",
	})
}
