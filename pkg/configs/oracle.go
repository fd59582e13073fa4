package configs

import (
	"time"

	"github.com/spf13/viper"
)

// OnErrorPolicy 预言机调用失败时的处理策略.
type OnErrorPolicy string

const (
	// FailOpen 失败时放行（安全检查视为通过，评分使用兜底分）.
	FailOpen OnErrorPolicy = "fail_open"
	// FailClosed 失败时拒绝（安全检查视为不通过，评分记 0）.
	FailClosed OnErrorPolicy = "fail_closed"
	// EmptyTags 仅用于视觉评分：失败时视为没有识别到标签.
	EmptyTags OnErrorPolicy = "empty_tags"

	DefaultOracleTimeout    = 20 * time.Second
	DefaultOracleAPIVersion = "2024-02-15-preview"
	DefaultOracleRPS        = 5.0
	DefaultOracleBurst      = 10
)

type (
	// OracleConfig 外部预言机（内容安全、视觉标注、生成式文本评分）配置.
	OracleConfig struct {
		Safety SafetyOracleConfig `mapstructure:"safety"`
		Vision VisionOracleConfig `mapstructure:"vision"`
		LLM    LLMOracleConfig    `mapstructure:"llm"`
		// Breaker 所有预言机共用的熔断参数
		Breaker OracleBreakerConfig `mapstructure:"breaker"`
	}

	// OracleEndpoint 单个预言机的连接参数，Endpoint 为空视为未配置.
	OracleEndpoint struct {
		Endpoint string        `mapstructure:"endpoint"`
		APIKey   string        `mapstructure:"api_key"`
		Timeout  time.Duration `mapstructure:"timeout"  rule:"min=0"`
		RPS      float64       `mapstructure:"rps"      rule:"min=0"`
		Burst    int           `mapstructure:"burst"    rule:"min=0"`
	}

	// SafetyOracleConfig 内容安全审核.
	SafetyOracleConfig struct {
		OracleEndpoint `mapstructure:",squash"`
		APIVersion     string        `mapstructure:"api_version"`
		OnError        OnErrorPolicy `mapstructure:"on_error" rule:"oneof=fail_open fail_closed"`
		// TextSampleChars 送审文本的最大字符数
		TextSampleChars int `mapstructure:"text_sample_chars" rule:"min=1"`
	}

	// VisionOracleConfig 图像标注.
	VisionOracleConfig struct {
		OracleEndpoint `mapstructure:",squash"`
		APIVersion     string `mapstructure:"api_version"`
	}

	// LLMOracleConfig 生成式文本评分、分类与描述相关性判断.
	LLMOracleConfig struct {
		OracleEndpoint `mapstructure:",squash"`
		Deployment     string `mapstructure:"deployment"`
		APIVersion     string `mapstructure:"api_version"`
	}

	// OracleBreakerConfig 预言机熔断参数.
	OracleBreakerConfig struct {
		MaxRequests         uint32        `mapstructure:"max_requests"`
		Interval            time.Duration `mapstructure:"interval"`
		Timeout             time.Duration `mapstructure:"timeout"`
		ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" rule:"min=1"`
	}
)

// Configured 是否配置了端点.
func (e OracleEndpoint) Configured() bool {
	return e.Endpoint != ""
}

func (c *OracleConfig) setDefaults(v *viper.Viper) {
	for _, name := range []string{"safety", "vision", "llm"} {
		v.SetDefault("oracle."+name+".endpoint", "")
		v.SetDefault("oracle."+name+".api_key", "")
		v.SetDefault("oracle."+name+".timeout", DefaultOracleTimeout)
		v.SetDefault("oracle."+name+".rps", DefaultOracleRPS)
		v.SetDefault("oracle."+name+".burst", DefaultOracleBurst)
	}

	v.SetDefault("oracle.safety.api_version", "2023-10-01")
	v.SetDefault("oracle.safety.on_error", FailOpen)
	v.SetDefault("oracle.safety.text_sample_chars", 10000)

	v.SetDefault("oracle.vision.api_version", "2024-02-01")

	v.SetDefault("oracle.llm.deployment", "gpt-4o")
	v.SetDefault("oracle.llm.api_version", DefaultOracleAPIVersion)

	v.SetDefault("oracle.breaker.max_requests", 1)
	v.SetDefault("oracle.breaker.interval", time.Minute)
	v.SetDefault("oracle.breaker.timeout", 30*time.Second)
	v.SetDefault("oracle.breaker.consecutive_failures", 5)
}
