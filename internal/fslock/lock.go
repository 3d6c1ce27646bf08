// Package fslock 提供基于 flock 的跨进程文件锁：按请求的打开模式打开文件，
// 以固定步长轮询非阻塞锁直到成功或超时，供存储层实现共享读/独占写协议。
// 锁是建议性的，互斥只在同样通过本包访问文件的进程之间成立。
package fslock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// LockMode 区分共享读锁与独占写锁。
type LockMode int

const (
	// LockShared 允许多个读者同时持有。
	LockShared LockMode = iota
	// LockExclusive 同一时刻只允许一个持有者。
	LockExclusive
)

// DefaultTimeout 是锁轮询的默认上限，放宽到 30s 以容忍较慢的生成器。
const DefaultTimeout = 30 * time.Second

// PollInterval 是两次加锁尝试之间的固定休眠。进程启动时可按配置调整一次，
// 之后不应再改动。
var PollInterval = 10 * time.Millisecond

// ErrLockTimeout 表示在期限内未能取得锁。
var ErrLockTimeout = errors.New("fslock: lock not acquired before timeout")

// OpenError 包装打开文件阶段的失败，与锁超时相互区分。
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("fslock: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Handle 持有一个已上锁的文件，Release 负责解锁并关闭。
type Handle struct {
	file *os.File
}

// Acquire 以 flag 模式打开 path，并在 timeout 内轮询请求 mode 对应的 flock。
// timeout <= 0 时使用 DefaultTimeout。打开失败返回 *OpenError，轮询超时返回
// ErrLockTimeout，ctx 取消原样透传；三种失败都保证文件已关闭。
func Acquire(ctx context.Context, path string, flag int, mode LockMode, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	file, err := os.OpenFile(path, flag, 0o664)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	op := unix.LOCK_SH
	if mode == LockExclusive {
		op = unix.LOCK_EX
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := unix.Flock(int(file.Fd()), op|unix.LOCK_NB); err == nil {
			return &Handle{file: file}, nil
		}
		if err := ctx.Err(); err != nil {
			file.Close()
			return nil, err
		}
		if time.Now().After(deadline) {
			file.Close()
			return nil, ErrLockTimeout
		}
		time.Sleep(PollInterval)
	}
}

// File 暴露底层文件供读写；Release 之后不可再使用。
func (h *Handle) File() *os.File {
	return h.file
}

// Release 先解锁再关闭文件，可安全重复调用；调用方的所有退出路径都应执行。
func (h *Handle) Release() error {
	if h == nil || h.file == nil {
		return nil
	}
	file := h.file
	h.file = nil

	unlockErr := unix.Flock(int(file.Fd()), unix.LOCK_UN)
	closeErr := file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
