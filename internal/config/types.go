package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有命名空间共享同一份参数。
type GlobalConfig struct {
	LogLevel              string   `mapstructure:"LogLevel"`
	LogFilePath           string   `mapstructure:"LogFilePath"`
	LogMaxSize            int      `mapstructure:"LogMaxSize"`
	LogMaxBackups         int      `mapstructure:"LogMaxBackups"`
	LogCompress           bool     `mapstructure:"LogCompress"`
	StoragePath           string   `mapstructure:"StoragePath"`
	DefaultNamespace      string   `mapstructure:"DefaultNamespace"`
	Codec                 string   `mapstructure:"Codec"`
	DefaultLifetime       Duration `mapstructure:"DefaultLifetime"`
	LockTimeout           Duration `mapstructure:"LockTimeout"`
	InvalidateLockTimeout Duration `mapstructure:"InvalidateLockTimeout"`
	LockPollInterval      Duration `mapstructure:"LockPollInterval"`
	StripPrefixes         []string `mapstructure:"StripPrefixes"`
}

// NamespaceConfig 覆盖单个命名空间的编解码器与默认寿命。
type NamespaceConfig struct {
	Name            string   `mapstructure:"Name"`
	Codec           string   `mapstructure:"Codec"`
	DefaultLifetime Duration `mapstructure:"DefaultLifetime"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global     GlobalConfig      `mapstructure:",squash"`
	Namespaces []NamespaceConfig `mapstructure:"Namespace"`
}

// EffectiveLifetime 返回特定命名空间生效的默认寿命，未覆盖时回退至全局值。
func (c *Config) EffectiveLifetime(ns NamespaceConfig) time.Duration {
	if ns.DefaultLifetime.DurationValue() > 0 {
		return ns.DefaultLifetime.DurationValue()
	}
	return c.Global.DefaultLifetime.DurationValue()
}

// EffectiveCodecKey 返回特定命名空间生效的编解码器键，未覆盖时回退至全局值。
func (c *Config) EffectiveCodecKey(ns NamespaceConfig) string {
	if ns.Codec != "" {
		return ns.Codec
	}
	return c.Global.Codec
}

// NamespaceSummaries 输出所有命名空间的 name:codec 摘要，供启动日志使用。
func NamespaceSummaries(c *Config) []string {
	if len(c.Namespaces) == 0 {
		return nil
	}
	result := make([]string, len(c.Namespaces))
	for i, ns := range c.Namespaces {
		result[i] = fmt.Sprintf("%s:%s", ns.Name, c.EffectiveCodecKey(ns))
	}
	return result
}
