package cache

import (
	"errors"
	"sync"
)

var (
	defaultMu    sync.Mutex
	defaultStore *Store
)

// Configure 设置进程级默认存储，只允许成功一次，重复调用返回
// ErrAlreadyConfigured。除这一个注入点外不存在其它环境态。
func Configure(store *Store) error {
	if store == nil {
		return errors.New("cache store required")
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultStore != nil {
		return ErrAlreadyConfigured
	}
	defaultStore = store
	return nil
}

// Default 返回进程级默认存储，未配置时返回 ErrNotConfigured。
func Default() (*Store, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultStore == nil {
		return nil, ErrNotConfigured
	}
	return defaultStore, nil
}
