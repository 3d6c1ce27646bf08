package cache

import (
	"errors"
	"fmt"
)

// 写路径的操作分类；读路径从不上抛错误，全部退化为未命中。
const (
	OpOpen   = "open"
	OpLock   = "lock"
	OpWrite  = "write"
	OpEncode = "encode"
)

// StorageError 描述写路径上的存储失败。生成器自身的错误永远不会被包进来，
// 调用方据此区分“我的代码坏了”与“缓存坏了”。
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrNotConfigured 表示进程级默认存储尚未通过 Configure 设置。
var ErrNotConfigured = errors.New("cache store not configured")

// ErrAlreadyConfigured 表示默认存储只允许设置一次。
var ErrAlreadyConfigured = errors.New("cache store already configured")
