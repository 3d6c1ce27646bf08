package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// CleanupExpired 扫描条目目录，删除 mtime+maxAge 早于当前时刻的文件，
// 返回删除数量与释放的字节数。故意不碰随之悬空的标签链接，让扫描成本
// 只与条目数成正比；链接交给 GCSymlinks。
func (s *Store) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, int64, error) {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return 0, 0, err
	}

	count := 0
	var freed int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return count, freed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !s.expired(info.ModTime(), maxAge) {
			continue
		}

		path := filepath.Join(s.cacheDir, entry.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.WithError(err).WithField("path", path).Debug("expired entry not removed")
			}
			continue
		}
		count++
		freed += info.Size()
	}
	return count, freed, nil
}

// GCSymlinks 删除目标已不存在的标签链接并修剪清空的目录。可与线上流量
// 并发运行：只删除检查时已悬空的链接，检查与删除之间才变旧的链接留给
// 下一轮。
func (s *Store) GCSymlinks(ctx context.Context) (int, error) {
	typeDirs, err := os.ReadDir(s.tagsDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, typeDir := range typeDirs {
		if !typeDir.IsDir() {
			continue
		}
		typePath := filepath.Join(s.tagsDir, typeDir.Name())
		idDirs, err := os.ReadDir(typePath)
		if err != nil {
			continue
		}

		for _, idDir := range idDirs {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !idDir.IsDir() {
				continue
			}
			idPath := filepath.Join(typePath, idDir.Name())
			removed += s.gcLinkDir(idPath)
			_ = os.Remove(idPath)
		}
		_ = os.Remove(typePath)
	}
	return removed, nil
}

func (s *Store) gcLinkDir(dir string) int {
	links, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, link := range links {
		if link.Type()&fs.ModeSymlink == 0 {
			continue
		}
		linkPath := filepath.Join(dir, link.Name())
		if _, err := os.Stat(linkPath); err == nil || !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.Remove(linkPath); err == nil {
			removed++
		}
	}
	return removed
}
