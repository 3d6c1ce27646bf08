// Package outbuf 提供作用域输出捕获：调用方在 Begin 与 End 之间照常写出
// 内容，未命中时写入被捕获并在 End 时落盘，命中时写入被忽略、直接复用
// 缓存文本。它只建立在存储层的 GetText/StoreText 之上，不触碰内部协议。
package outbuf

import (
	"bytes"
	"context"
	"time"

	"github.com/tagcache/tagcache/internal/cache"
	"github.com/tagcache/tagcache/internal/cachekey"
)

// Region 是一段以缓存键界定的输出区域，实现 io.Writer。
type Region struct {
	store    *cache.Store
	key      *cachekey.Key
	hit      bool
	content  string
	buf      bytes.Buffer
	finished bool
}

// Begin 打开一个输出区域。store 为 nil 时回退到进程级默认存储；命中时
// 区域直接携带缓存文本，后续写入全部忽略。
func Begin(ctx context.Context, store *cache.Store, key *cachekey.Key, lifetime time.Duration) (*Region, error) {
	if store == nil {
		fallback, err := cache.Default()
		if err != nil {
			return nil, err
		}
		store = fallback
	}

	r := &Region{store: store, key: key}
	if content, ok := store.GetText(ctx, key, lifetime); ok {
		r.hit = true
		r.content = content
	}
	return r, nil
}

// Hit 报告区域是否由缓存命中填充。
func (r *Region) Hit() bool { return r.hit }

// Content 返回命中时携带的缓存文本；未命中时为空串。
func (r *Region) Content() string { return r.content }

// Write 捕获区域内的输出。命中或已结束的区域吞掉写入并报告成功，
// 调用方无需区分两种形态。
func (r *Region) Write(p []byte) (int, error) {
	if r.hit || r.finished {
		return len(p), nil
	}
	return r.buf.Write(p)
}

// End 关闭区域并返回最终文本：命中时是缓存内容，未命中时是捕获的输出，
// 后者同时落盘。落盘失败时文本仍然返回，调用方自行决定是否继续。
// 重复调用只返回首次的结果。
func (r *Region) End(ctx context.Context) (string, error) {
	if r.hit {
		r.finished = true
		return r.content, nil
	}
	if r.finished {
		return r.content, nil
	}
	r.finished = true
	r.content = r.buf.String()

	if err := r.store.StoreText(ctx, r.key, r.content); err != nil {
		return r.content, err
	}
	return r.content, nil
}

// Discard 放弃本次捕获，之后的 End 返回已捕获的文本但不再落盘。
func (r *Region) Discard() {
	if r.hit || r.finished {
		return
	}
	r.finished = true
	r.content = r.buf.String()
}
