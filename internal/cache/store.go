package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tagcache/tagcache/internal/cachekey"
	"github.com/tagcache/tagcache/internal/codec"
	"github.com/tagcache/tagcache/internal/fslock"
)

// 目录权限带组写与 setgid 位，多个进程属主可以共享同一棵缓存树。
const dirPerm = os.FileMode(0o775) | os.ModeSetgid

// 条目文件写入成功后统一归一到 0664。
const filePerm = os.FileMode(0o664)

const entrySuffix = ".cache"

// reservedNameTag 下的合成链接让调用方仅凭基础名称就能失效条目。
const reservedNameTag = "name"

// DefaultInvalidateTimeout 限制失效时等待目标文件排他锁的时长。
// 失效是尽力而为的操作，不应拖慢批量处理。
const DefaultInvalidateTimeout = 2 * time.Second

// Options 描述一个命名空间存储实例的构造参数。
type Options struct {
	// Root 是缓存树根目录，cache/ 与 tags/ 都建立在其下。
	Root string
	// Namespace 区分同一棵树上的多个使用方，空值回退为 default。
	Namespace string
	// Codec 负责类型化负载的编解码，空值回退为注册表中的默认实现。
	Codec codec.Codec
	// DefaultLifetime 供上层在调用方未显式给出寿命时读取。
	DefaultLifetime time.Duration
	// LockTimeout 约束读写路径的锁等待，非正值回退为 fslock.DefaultTimeout。
	LockTimeout time.Duration
	// InvalidateLockTimeout 约束失效路径对目标文件的锁等待。
	InvalidateLockTimeout time.Duration
	// StripPrefixes 在派生对象标签类型时从限定类型名头部剔除。
	StripPrefixes []string
	Logger        *logrus.Logger
}

// Store 拥有一个命名空间的 cache/ 与 tags/ 目录。条目文件路径上的排他锁
// 是唯一的互斥单位，任意数量的进程可以共享同一棵树。
type Store struct {
	root      string
	namespace string
	cacheDir  string
	tagsDir   string

	codec             codec.Codec
	defaultLifetime   time.Duration
	lockTimeout       time.Duration
	invalidateTimeout time.Duration
	stripPrefixes     []string
	logger            *logrus.Logger

	now func() time.Time
}

// New 构建存储实例并准备磁盘目录，进程内按命名空间复用一份。
func New(opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, errors.New("storage path required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	namespace := "default"
	if opts.Namespace != "" {
		namespace = cachekey.Sanitize(opts.Namespace)
	}

	entryCodec := opts.Codec
	if entryCodec == nil {
		fallback, ok := codec.Resolve(codec.DefaultKey())
		if !ok {
			return nil, fmt.Errorf("default codec %s not registered", codec.DefaultKey())
		}
		entryCodec = fallback
	}

	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = fslock.DefaultTimeout
	}
	invalidateTimeout := opts.InvalidateLockTimeout
	if invalidateTimeout <= 0 {
		invalidateTimeout = DefaultInvalidateTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Store{
		root:              root,
		namespace:         namespace,
		cacheDir:          filepath.Join(root, "cache", namespace),
		tagsDir:           filepath.Join(root, "tags", namespace),
		codec:             entryCodec,
		defaultLifetime:   opts.DefaultLifetime,
		lockTimeout:       lockTimeout,
		invalidateTimeout: invalidateTimeout,
		stripPrefixes:     append([]string(nil), opts.StripPrefixes...),
		logger:            logger,
		now:               time.Now,
	}

	for _, dir := range []string{
		root,
		filepath.Join(root, "cache"),
		s.cacheDir,
		filepath.Join(root, "tags"),
		s.tagsDir,
	} {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	return s, nil
}

// Root 返回解析后的存储根目录。
func (s *Store) Root() string { return s.root }

// Namespace 返回清洗后的命名空间名。
func (s *Store) Namespace() string { return s.namespace }

// DefaultLifetime 返回构造时配置的参考寿命。
func (s *Store) DefaultLifetime() time.Duration { return s.defaultLifetime }

// EntryPath 返回键对应条目文件的绝对路径，并在首次使用时冻结键。
func (s *Store) EntryPath(key *cachekey.Key) (string, error) {
	if err := key.Err(); err != nil {
		return "", err
	}
	key.Freeze()
	return filepath.Join(s.cacheDir, key.HashedKey()+entrySuffix), nil
}

// ObjectOptions 返回带配置前缀剥离的对象标签派生选项。键构建与对象失效
// 两侧使用同一份选项，保证双方落在同一个链接目录。
func (s *Store) ObjectOptions(property string) cachekey.ObjectOptions {
	return cachekey.ObjectOptions{
		Property:      property,
		StripPrefixes: append([]string(nil), s.stripPrefixes...),
	}
}

// ensureDir 创建目录并把权限位补齐到 02775；已存在的目录只增加缺失位，
// 不清除额外权限。umask 会过滤 Mkdir 的模式，所以 setgid 位靠随后的
// Chmod 补上。
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(dir, dirPerm); mkErr != nil {
			return mkErr
		}
		if info, err = os.Stat(dir); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	if info.Mode()&dirPerm != dirPerm {
		if err := os.Chmod(dir, info.Mode()|dirPerm); err != nil {
			return err
		}
	}
	return nil
}
