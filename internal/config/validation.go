package config

import (
	"errors"
	"fmt"

	"github.com/tagcache/tagcache/internal/cachekey"
	"github.com/tagcache/tagcache/internal/codec"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入存储层。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if err := validateStableName(g.DefaultNamespace); err != nil {
		return fmt.Errorf("Global.DefaultNamespace: %w", err)
	}
	if err := validateCodecKey(g.Codec); err != nil {
		return fmt.Errorf("Global.Codec: %w", err)
	}
	if g.DefaultLifetime.DurationValue() <= 0 {
		return newFieldError("Global.DefaultLifetime", "必须大于 0")
	}
	if g.LockTimeout.DurationValue() <= 0 {
		return newFieldError("Global.LockTimeout", "必须大于 0")
	}
	if g.InvalidateLockTimeout.DurationValue() <= 0 {
		return newFieldError("Global.InvalidateLockTimeout", "必须大于 0")
	}
	if g.LockPollInterval.DurationValue() <= 0 {
		return newFieldError("Global.LockPollInterval", "必须大于 0")
	}
	if g.LockPollInterval.DurationValue() >= g.LockTimeout.DurationValue() {
		return newFieldError("Global.LockPollInterval", "必须小于 LockTimeout")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Namespaces {
		ns := &c.Namespaces[i]
		if ns.Name == "" {
			return newFieldError("Namespace[].Name", "不能为空")
		}
		if err := validateStableName(ns.Name); err != nil {
			return fmt.Errorf("%s: %w", nsField(ns.Name, "Name"), err)
		}
		if _, exists := seenNames[ns.Name]; exists {
			return newFieldError(nsField(ns.Name, "Name"), "重复")
		}
		seenNames[ns.Name] = struct{}{}

		if ns.Codec != "" {
			if err := validateCodecKey(ns.Codec); err != nil {
				return fmt.Errorf("%s: %w", nsField(ns.Name, "Codec"), err)
			}
		}
	}

	return nil
}

// validateStableName 要求名称在清洗规则下保持不变，目录名与配置名一一对应。
func validateStableName(name string) error {
	if name == "" {
		return errors.New("不能为空")
	}
	if sanitized := cachekey.Sanitize(name); sanitized != name {
		return fmt.Errorf("必须为清洗后的形式（小写，仅 a-z0-9+_.-），建议使用 %q", sanitized)
	}
	return nil
}

func validateCodecKey(key string) error {
	if key == "" {
		return errors.New("不能为空")
	}
	if _, ok := codec.Resolve(key); !ok {
		return fmt.Errorf("未注册的编解码器: %s（可用: %v）", key, codec.Keys())
	}
	return nil
}
