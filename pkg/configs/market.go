package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MarketConfig 市场结算配置.
type MarketConfig struct {
	// PoolRate 每个成交条目贡献到资金池的金额
	PoolRate float64 `mapstructure:"pool_rate"  rule:"gt=0"`
	// BatchSize 单次购买最多成交的条目数
	BatchSize int `mapstructure:"batch_size" rule:"min=1,max=100"`
	// ContributorShare 贡献者可得的成交额比例
	ContributorShare float64 `mapstructure:"contributor_share" rule:"min=0,max=1"`
	// SummaryCacheTTL 分类汇总缓存时间，0 表示不缓存
	SummaryCacheTTL time.Duration `mapstructure:"summary_cache_ttl" rule:"min=0"`
}

func (c *MarketConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("market.pool_rate", 25.0)
	v.SetDefault("market.batch_size", 5)
	v.SetDefault("market.contributor_share", 0.8)
	v.SetDefault("market.summary_cache_ttl", 30*time.Second)
}
