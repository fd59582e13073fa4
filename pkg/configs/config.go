// Package configs 管理应用程序配置，包括数据库、对象存储、消息队列、评分预言机与市场结算的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "github.com/yeisme/datanexus/pkg/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing Market config:
//
//	market := configs.GetConfig().Market
//	fmt.Println("pool rate:", market.PoolRate, "batch:", market.BatchSize)
//
// Example accessing Oracle config:
//
//	oracle := configs.GetConfig().Oracle
//	fmt.Println("safety on error:", oracle.Safety.OnError)
//
// 环境变量使用 DATANEXUS_ 前缀，层级以下划线分隔，如 DATANEXUS_DB_HOST.
package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/datanexus/pkg/rule"
)

// AppVersion 应用版本号，构建时可通过 -ldflags 覆盖.
var AppVersion = "0.1.0"

// EnvPrefix 环境变量前缀.
const EnvPrefix = "DATANEXUS"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 数据库配置
		S3             S3Config             `mapstructure:"s3"`              // S3Config 对象存储配置
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列配置
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 键值存储配置
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 其它服务器配置，日志级别、服务器端口等
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 链路追踪
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 监控指标
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig HTTP 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig HTTP 熔断
		Auth           AuthConfig           `mapstructure:"auth"`            // AuthConfig 身份认证
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 事件开关
		Oracle         OracleConfig         `mapstructure:"oracle"`          // OracleConfig 内容安全/视觉/生成式评分服务
		Scoring        ScoringConfig        `mapstructure:"scoring"`         // ScoringConfig 评分流水线
		Market         MarketConfig         `mapstructure:"market"`          // MarketConfig 市场结算
		Jobs           JobsConfig           `mapstructure:"jobs"`            // JobsConfig 定时任务
		Worker         WorkerConfig         `mapstructure:"worker"`          // WorkerConfig 入库消费者
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// path 为空或不存在配置文件时仅使用默认值与环境变量.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	found := false

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)

		found = true
	} else if path != "" {
		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, dir := range []string{path, filepath.Join(path, "configs")} {
			for _, ext := range exts {
				cfg := filepath.Join(dir, "config."+ext)
				if _, err := os.Stat(cfg); err == nil {
					appViper.SetConfigFile(cfg)

					found = true

					break
				}
			}

			if found {
				break
			}
		}
	}

	appViper.SetEnvPrefix(EnvPrefix)
	appViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	appViper.AutomaticEnv()

	// 读取配置
	if found {
		if err := appViper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&globalConfig); err != nil {
		return err
	}

	reloadConfigs(appViper, found && globalConfig.Server.ReloadConfig)

	return nil
}

// Validate 使用 rule 标签校验配置.
func Validate(cfg *AppConfig) error {
	if err := rule.ValidateStruct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.S3.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
	cfg.Auth.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.Oracle.setDefaults(v)
	cfg.Scoring.setDefaults(v)
	cfg.Market.setDefaults(v)
	cfg.Jobs.setDefaults(v)
	cfg.Worker.setDefaults(v)
}

// Defaults 返回只包含默认值的配置，便于测试与 CLI 离线命令使用.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig

	_ = v.Unmarshal(&cfg)

	return cfg
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)

		var next AppConfig
		if err := v.Unmarshal(&next); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}

		// 校验失败时保留旧配置
		if err := Validate(&next); err != nil {
			fmt.Printf("Rejected reloaded config: %v\n", err)
			return
		}

		globalConfig = next
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

// SetConfig 替换全局配置，主要用于测试.
func SetConfig(cfg AppConfig) {
	globalConfig = cfg
}

func GetViper() *viper.Viper {
	return appViper
}
