package configs

import "github.com/spf13/viper"

// JobsConfig 定时任务配置，Cron 为空表示不启用对应任务.
type JobsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ReconcileCron 扫描上传区，为尚未入库的对象补发入库事件
	ReconcileCron string `mapstructure:"reconcile_cron"`
	// SummaryCron 预热市场分类汇总缓存
	SummaryCron string `mapstructure:"summary_cron"`
	// ReconcileLimit 单次补偿扫描的对象上限
	ReconcileLimit int `mapstructure:"reconcile_limit" rule:"min=1"`
}

func (c *JobsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.reconcile_cron", "*/10 * * * *")
	v.SetDefault("jobs.summary_cron", "* * * * *")
	v.SetDefault("jobs.reconcile_limit", 1000)
}
