package configs

import "github.com/spf13/viper"

// ScoringConfig 评分流水线配置.
type ScoringConfig struct {
	// OnError 视觉/文本评分预言机失败时的策略
	OnError OnErrorPolicy `mapstructure:"on_error"       rule:"oneof=fail_open fail_closed"`
	// VisionOnError 视觉预言机失败时的策略，empty_tags 按零标签计分
	VisionOnError OnErrorPolicy `mapstructure:"vision_on_error" rule:"oneof=empty_tags fail_open fail_closed"`
	// FallbackScore fail_open 时使用的兜底分
	FallbackScore int `mapstructure:"fallback_score" rule:"min=0,max=100"`
	// ClassifyOther 是否对不支持深度分析的文件类型也做市场分类
	ClassifyOther bool `mapstructure:"classify_other"`
	// PreviewChars 送给文本评分的预览长度
	PreviewChars int `mapstructure:"preview_chars" rule:"min=1"`
	// Concurrency worker 并发处理的对象数
	Concurrency int `mapstructure:"concurrency" rule:"min=1,max=256"`
}

func (c *ScoringConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("scoring.on_error", FailClosed)
	v.SetDefault("scoring.vision_on_error", EmptyTags)
	v.SetDefault("scoring.fallback_score", 50)
	v.SetDefault("scoring.classify_other", false)
	v.SetDefault("scoring.preview_chars", 8000)
	v.SetDefault("scoring.concurrency", 4)
}
