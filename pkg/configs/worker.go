package configs

import "github.com/spf13/viper"

// WorkerConfig 入库消费者配置.
type WorkerConfig struct {
	// Embedded serve 进程内同时运行消费者，独立部署时设为 false 并使用 worker 子命令
	Embedded bool `mapstructure:"embedded"`
	// Retries 可重试错误的重试次数
	Retries int `mapstructure:"retries" rule:"min=0,max=20"`
	// Bridge 监听上传桶通知并转为 dn.object.stored 事件
	Bridge bool `mapstructure:"bridge"`
}

func (c *WorkerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.retries", 3)
	v.SetDefault("worker.bridge", false)
}
