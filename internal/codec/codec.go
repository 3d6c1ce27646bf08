// Package codec 定义缓存负载的可插拔编解码器，并维护按键注册的全局注册表。
// 内置实现通过各自文件的 init() 注册，配置层按名称解析，默认使用 json。
package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultKey = "json"

// DefaultKey 返回内置默认编解码器的键值。
func DefaultKey() string {
	return defaultKey
}

// Codec 负责值与字节序列之间的互转；Decode 的 target 必须是指针。
type Codec interface {
	Name() string
	Encode(value any) ([]byte, error)
	Decode(data []byte, target any) error
}

var globalRegistry = newRegistry()

type registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func newRegistry() *registry {
	return &registry{codecs: make(map[string]Codec)}
}

// Register 将编解码器加入全局注册表，重复键会返回错误。
func Register(c Codec) error {
	return globalRegistry.register(c)
}

// MustRegister 在注册失败时 panic，适合编解码器 init() 中调用。
func MustRegister(c Codec) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的编解码器。
func Resolve(key string) (Codec, bool) {
	return globalRegistry.resolve(key)
}

// Keys 返回按字典序排序的已注册键列表，供配置校验与诊断使用。
func Keys() []string {
	return globalRegistry.keys()
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(c Codec) error {
	if c == nil {
		return fmt.Errorf("codec is nil")
	}
	key := r.normalizeKey(c.Name())
	if key == "" {
		return fmt.Errorf("codec name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codecs[key]; exists {
		return fmt.Errorf("codec %s already registered", key)
	}
	r.codecs[key] = c
	return nil
}

func (r *registry) resolve(key string) (Codec, bool) {
	normalized := r.normalizeKey(key)
	if normalized == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codecs[normalized]
	return c, ok
}

func (r *registry) keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.codecs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.codecs))
	for key := range r.codecs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
