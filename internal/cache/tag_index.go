package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tagcache/tagcache/internal/cachekey"
	"github.com/tagcache/tagcache/internal/fslock"
)

// createLinks 为键上的每个 (type,id) 标签以及合成的 name 标签重建指向
// 条目文件的相对符号链接。各链接相互独立，单个失败只记录调试日志，
// 绝不阻塞其余链接，也绝不回滚已提交的条目。
func (s *Store) createLinks(key *cachekey.Key, entryPath string) {
	linkName := filepath.Base(entryPath)
	tags := key.Tags()
	tags[reservedNameTag] = key.Name()

	for tagType, tagID := range tags {
		if err := s.createLink(tagType, tagID, linkName, entryPath); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"tag_type": tagType,
				"tag_id":   tagID,
			}).Debug("tag link not created")
		}
	}
}

func (s *Store) createLink(tagType, tagID, linkName, entryPath string) error {
	dir := filepath.Join(s.tagsDir, tagType, tagID)
	if err := ensureDir(filepath.Dir(dir)); err != nil {
		return err
	}
	if err := ensureDir(dir); err != nil {
		return err
	}

	target, err := filepath.Rel(dir, entryPath)
	if err != nil {
		return err
	}

	// 同一键重写时链接已存在，先清掉旧链接再建新的。
	linkPath := filepath.Join(dir, linkName)
	if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, linkPath)
}

// InvalidateTag 删除一个 (type,id) 标签下的全部条目。入参按键构建的同一
// 规则清洗；目录不存在时返回 0。返回值统计处理过的链接数，无论目标文件
// 是否删除成功，它表示清除的标签关联数量而非回收的字节数。
func (s *Store) InvalidateTag(ctx context.Context, tagType string, id any) int {
	t := cachekey.Sanitize(tagType)
	if t == "" {
		return 0
	}
	return s.invalidateDir(ctx, t, cachekey.NormalizeTagID(id))
}

// InvalidateNamed 按基础名称失效，走合成的 name 标签目录。
func (s *Store) InvalidateNamed(ctx context.Context, name string) int {
	return s.InvalidateTag(ctx, reservedNameTag, name)
}

// InvalidateObject 按值的动态类型与默认 ID 字段失效。
func (s *Store) InvalidateObject(ctx context.Context, v any) int {
	return s.InvalidateObjectProperty(ctx, v, "")
}

// InvalidateObjectProperty 与 InvalidateObject 相同，但使用指定字段充当标识。
func (s *Store) InvalidateObjectProperty(ctx context.Context, v any, property string) int {
	tagType := cachekey.ObjectType(v, s.ObjectOptions(property))
	if tagType == "" {
		return 0
	}
	return s.invalidateDir(ctx, tagType, cachekey.ObjectID(v, property))
}

// InvalidateObjects 逐个失效并累计处理的链接数。
func (s *Store) InvalidateObjects(ctx context.Context, values []any) int {
	total := 0
	for _, v := range values {
		total += s.InvalidateObject(ctx, v)
	}
	return total
}

// InvalidateGlobal 失效所有带全局标记的条目。
func (s *Store) InvalidateGlobal(ctx context.Context) int {
	return s.InvalidateTag(ctx, "global", 0)
}

func (s *Store) invalidateDir(ctx context.Context, tagType, tagID string) int {
	dir := filepath.Join(s.tagsDir, tagType, tagID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.Type()&fs.ModeSymlink == 0 {
			continue
		}
		linkPath := filepath.Join(dir, entry.Name())
		s.removeTarget(ctx, linkPath)
		if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).WithField("link", linkPath).Debug("tag link not removed")
		}
		count++
	}

	// 目录大概率已空，留着也无妨，交给下一轮 GC。
	_ = os.Remove(dir)
	return count
}

// removeTarget 在短排他锁保护下删除链接指向的条目文件。目标打不开或在
// 时限内拿不到锁都静默放弃，失效不得拖慢批量操作。
func (s *Store) removeTarget(ctx context.Context, linkPath string) {
	target, err := os.Readlink(linkPath)
	if err != nil {
		return
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(linkPath), target)
	}

	handle, err := fslock.Acquire(ctx, target, os.O_RDONLY, fslock.LockExclusive, s.invalidateTimeout)
	if err != nil {
		return
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.WithError(err).WithField("path", target).Debug("entry not removed during invalidation")
	}
	_ = handle.Release()
}
