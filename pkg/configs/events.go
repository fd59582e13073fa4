package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled    bool                   `mapstructure:"enabled"` // 总开关
	Object     ObjectEventsConfig     `mapstructure:"object"`
	Submission SubmissionEventsConfig `mapstructure:"submission"`
	Market     MarketEventsConfig     `mapstructure:"market"`
}

// ObjectEventsConfig 上传区对象事件开关。
type ObjectEventsConfig struct {
	Stored bool `mapstructure:"stored"`
}

// SubmissionEventsConfig 评分结果事件开关。
type SubmissionEventsConfig struct {
	Scored  bool `mapstructure:"scored"`
	Blocked bool `mapstructure:"blocked"`
}

// MarketEventsConfig 结算事件开关。
type MarketEventsConfig struct {
	Settled bool `mapstructure:"settled"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 对象入库事件驱动评分流水线，必须开启
	v.SetDefault("events.object.stored", true)

	v.SetDefault("events.submission.scored", true)
	v.SetDefault("events.submission.blocked", true)
	v.SetDefault("events.market.settled", true)
}
