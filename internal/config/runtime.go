package config

import (
	"fmt"
	"time"

	"github.com/tagcache/tagcache/internal/codec"
)

// NamespaceRuntime 把全局与命名空间级配置合并成运行时视图，编解码器已解析。
type NamespaceRuntime struct {
	Name     string
	CodecKey string
	Codec    codec.Codec
	Lifetime time.Duration
}

// BuildNamespaceRuntime 解析 name 指向的命名空间，空值回退到全局默认命名
// 空间。未在 [[Namespace]] 中列出的名称同样合法，它直接继承全局参数。
func BuildNamespaceRuntime(cfg *Config, name string) (NamespaceRuntime, error) {
	if name == "" {
		name = cfg.Global.DefaultNamespace
	}

	key := cfg.Global.Codec
	lifetime := cfg.Global.DefaultLifetime.DurationValue()
	for i := range cfg.Namespaces {
		ns := cfg.Namespaces[i]
		if ns.Name != name {
			continue
		}
		key = cfg.EffectiveCodecKey(ns)
		lifetime = cfg.EffectiveLifetime(ns)
		break
	}

	resolved, ok := codec.Resolve(key)
	if !ok {
		return NamespaceRuntime{}, fmt.Errorf("未注册的编解码器: %s", key)
	}
	return NamespaceRuntime{
		Name:     name,
		CodecKey: resolved.Name(),
		Codec:    resolved,
		Lifetime: lifetime,
	}, nil
}
