package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"reflect"
	"time"

	"github.com/tagcache/tagcache/internal/cachekey"
	"github.com/tagcache/tagcache/internal/fslock"
)

// GetText 读取文本负载。任何读路径失败都退化为未命中，绝不上抛错误，
// 调用方的正确性不依赖缓存可用。
func (s *Store) GetText(ctx context.Context, key *cachekey.Key, lifetime time.Duration) (string, bool) {
	data, ok := s.read(ctx, key, lifetime)
	if !ok {
		return "", false
	}
	return string(data), true
}

// Get 读取并解码负载到 target（必须是指针），解码失败同样按未命中处理。
// 未命中时 target 保持原样。
func (s *Store) Get(ctx context.Context, key *cachekey.Key, lifetime time.Duration, target any) bool {
	data, ok := s.read(ctx, key, lifetime)
	if !ok {
		return false
	}
	if err := s.codec.Decode(data, target); err != nil {
		s.logger.WithError(err).WithField("key", key.Canonical()).Debug("cache decode failed, treating as miss")
		return false
	}
	return true
}

// StoreText 无条件写入文本负载。空串会被持久化，但读取时按未命中返回。
func (s *Store) StoreText(ctx context.Context, key *cachekey.Key, value string) error {
	_, _, err := s.generateLocked(ctx, key, func(context.Context, string) ([]byte, bool, error) {
		return []byte(value), true, nil
	})
	return err
}

// Store 编码并无条件写入负载；nil 值是空操作。
func (s *Store) Store(ctx context.Context, key *cachekey.Key, value any) error {
	if isNil(value) {
		return nil
	}
	_, _, err := s.generateLocked(ctx, key, s.encodePayload(value))
	return err
}

// GetOrGenerateText 先尝试读取，命中立即返回且不触碰写锁。未命中时运行
// gen 并持久化其结果。duringLock 为 true 时生成在排他锁内完成，同键并发
// 调用串行化，阻塞在共享锁上的读者在锁释放后直接读到新内容；为 false 时
// 生成在锁外完成，两个并发未命中可能都计算一次，后写者覆盖先写者。
func (s *Store) GetOrGenerateText(ctx context.Context, key *cachekey.Key, lifetime time.Duration, duringLock bool, gen func(context.Context) (string, error)) (string, error) {
	if value, ok := s.GetText(ctx, key, lifetime); ok {
		return value, nil
	}
	if err := key.Err(); err != nil {
		return "", err
	}

	if !duringLock {
		value, err := gen(ctx)
		if err != nil {
			return "", err
		}
		if err := s.StoreText(ctx, key, value); err != nil {
			return "", err
		}
		return value, nil
	}

	payload, _, err := s.generateLocked(ctx, key, func(ctx context.Context, _ string) ([]byte, bool, error) {
		value, err := gen(ctx)
		if err != nil {
			return nil, false, err
		}
		return []byte(value), true, nil
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// GetOrGenerate 是 GetOrGenerateText 的类型化形态：未命中时运行 gen，把
// 结果编码落盘后再解码回 target，调用方拿到的始终是经过编解码往返的值。
// gen 返回 nil 值表示放弃持久化，target 保持原样且不算错误。
func (s *Store) GetOrGenerate(ctx context.Context, key *cachekey.Key, lifetime time.Duration, duringLock bool, target any, gen func(context.Context) (any, error)) error {
	if s.Get(ctx, key, lifetime, target) {
		return nil
	}
	if err := key.Err(); err != nil {
		return err
	}

	var (
		payload   []byte
		persisted bool
		err       error
	)
	if duringLock {
		payload, persisted, err = s.generateLocked(ctx, key, func(ctx context.Context, path string) ([]byte, bool, error) {
			value, genErr := gen(ctx)
			if genErr != nil {
				return nil, false, genErr
			}
			if isNil(value) {
				return nil, false, nil
			}
			data, encErr := s.codec.Encode(value)
			if encErr != nil {
				return nil, false, &StorageError{Op: OpEncode, Path: path, Err: encErr}
			}
			return data, true, nil
		})
	} else {
		value, genErr := gen(ctx)
		if genErr != nil {
			return genErr
		}
		if isNil(value) {
			return nil
		}
		payload, persisted, err = s.generateLocked(ctx, key, s.encodePayload(value))
	}
	if err != nil {
		return err
	}
	if !persisted {
		return nil
	}

	if err := s.codec.Decode(payload, target); err != nil {
		path, _ := s.EntryPath(key)
		return &StorageError{Op: OpEncode, Path: path, Err: err}
	}
	return nil
}

// payloadFunc 在排他锁内产出待持久化的负载。persist=false 且 err=nil 表示
// 放弃本次写入；错误按约定已经分类完毕，generateLocked 原样上抛。
type payloadFunc func(ctx context.Context, path string) (payload []byte, persist bool, err error)

// encodePayload 把已经算好的值包装成 payloadFunc。
func (s *Store) encodePayload(value any) payloadFunc {
	return func(_ context.Context, path string) ([]byte, bool, error) {
		data, err := s.codec.Encode(value)
		if err != nil {
			return nil, false, &StorageError{Op: OpEncode, Path: path, Err: err}
		}
		return data, true, nil
	}
}

// generateLocked 执行排他锁写入协议：O_CREATE 打开但不截断，取到锁后才
// 截断重写，锁覆盖整个生成过程，这就是同键并发写的单飞机制。生成失败时
// 释放锁、尽力移除半成品文件并原样上抛；写入失败上抛 StorageError；成功
// 后先释放锁再归一权限并重建标签链接，链接失败从不回滚已提交的条目。
func (s *Store) generateLocked(ctx context.Context, key *cachekey.Key, gen payloadFunc) ([]byte, bool, error) {
	path, err := s.EntryPath(key)
	if err != nil {
		return nil, false, err
	}

	handle, err := fslock.Acquire(ctx, path, os.O_CREATE|os.O_WRONLY, fslock.LockExclusive, s.lockTimeout)
	if err != nil {
		return nil, false, newStorageError(path, err)
	}

	payload, persist, err := gen(ctx, path)
	if err != nil {
		s.discardEntry(handle, path)
		return nil, false, err
	}
	if !persist {
		s.discardEntry(handle, path)
		return nil, false, nil
	}

	if err := writePayload(handle.File(), payload); err != nil {
		s.discardEntry(handle, path)
		return nil, false, &StorageError{Op: OpWrite, Path: path, Err: err}
	}
	if err := handle.Release(); err != nil {
		return nil, false, &StorageError{Op: OpWrite, Path: path, Err: err}
	}

	_ = os.Chmod(path, filePerm)
	s.createLinks(key, path)
	return payload, true, nil
}

// read 执行带共享锁的读取协议；所有失败分支都返回未命中。
func (s *Store) read(ctx context.Context, key *cachekey.Key, lifetime time.Duration) ([]byte, bool) {
	path, err := s.EntryPath(key)
	if err != nil {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	if s.expired(info.ModTime(), lifetime) {
		return nil, false
	}

	handle, err := fslock.Acquire(ctx, path, os.O_RDONLY, fslock.LockShared, s.lockTimeout)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Debug("cache read lock unavailable, treating as miss")
		return nil, false
	}
	defer handle.Release()

	data, err := io.ReadAll(handle.File())
	if err != nil {
		return nil, false
	}
	// 锁等待期间条目可能被重写，以锁内的文件时间复核寿命。
	if info, err := handle.File().Stat(); err != nil || s.expired(info.ModTime(), lifetime) {
		return nil, false
	}
	// 写入方先建空文件再抢排他锁，空负载一律按未命中处理。
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// expired 实现懒惰过期：mtime+lifetime 早于当前时刻即未命中，文件原地保留。
func (s *Store) expired(modTime time.Time, lifetime time.Duration) bool {
	return modTime.Add(lifetime).Before(s.now())
}

// discardEntry 在仍持有锁时尽力移除条目文件，然后释放锁。先删后放，
// 避免误删后继写入者刚提交的新条目。
func (s *Store) discardEntry(handle *fslock.Handle, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.WithError(err).WithField("path", path).Debug("partial cache entry not removed")
	}
	_ = handle.Release()
}

func writePayload(f *os.File, payload []byte) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.Write(payload)
	return err
}

// newStorageError 把锁层失败翻译为写路径错误分类。
func newStorageError(path string, err error) *StorageError {
	var openErr *fslock.OpenError
	if errors.As(err, &openErr) {
		return &StorageError{Op: OpOpen, Path: path, Err: err}
	}
	return &StorageError{Op: OpLock, Path: path, Err: err}
}

// isNil 识别接口本身或其承载的指针类值为 nil 的情形。
func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
