package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/tagcache/tagcache/internal/codec"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Namespaces {
		applyNamespaceDefaults(&cfg.Namespaces[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("DefaultNamespace", "default")
	v.SetDefault("Codec", codec.DefaultKey())
	v.SetDefault("DefaultLifetime", 86400)
	v.SetDefault("LockTimeout", "30s")
	v.SetDefault("InvalidateLockTimeout", "2s")
	v.SetDefault("LockPollInterval", "10ms")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.DefaultNamespace == "" {
		g.DefaultNamespace = "default"
	}
	if g.Codec == "" {
		g.Codec = codec.DefaultKey()
	} else {
		g.Codec = strings.ToLower(strings.TrimSpace(g.Codec))
	}
	if g.DefaultLifetime.DurationValue() == 0 {
		g.DefaultLifetime = Duration(24 * time.Hour)
	}
	if g.LockTimeout.DurationValue() == 0 {
		g.LockTimeout = Duration(30 * time.Second)
	}
	if g.InvalidateLockTimeout.DurationValue() == 0 {
		g.InvalidateLockTimeout = Duration(2 * time.Second)
	}
	if g.LockPollInterval.DurationValue() == 0 {
		g.LockPollInterval = Duration(10 * time.Millisecond)
	}
}

func applyNamespaceDefaults(ns *NamespaceConfig) {
	ns.Name = strings.TrimSpace(ns.Name)
	if ns.DefaultLifetime.DurationValue() < 0 {
		ns.DefaultLifetime = Duration(0)
	}
	if trimmed := strings.TrimSpace(ns.Codec); trimmed != "" {
		ns.Codec = strings.ToLower(trimmed)
	} else {
		ns.Codec = ""
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
