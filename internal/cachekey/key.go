// Package cachekey 负责缓存键的构建：基础名称加上任意 (type,id) 标签集合，
// 派生出排序后的规范字符串与 128 位散列，供存储层定位条目文件与标签链接。
// 相同的标签集合无论以什么顺序添加，规范字符串与散列都保持一致。
package cachekey

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
)

// 日期标签统一使用紧凑的 YYYYMMDD 形式，保证同一天派生出的键彼此对齐。
const dateLayout = "20060102"

// ErrEmptyTagType 表示标签类型清洗后为空，键不可再用于写入。
var ErrEmptyTagType = errors.New("cachekey: tag type is empty")

// ErrEmptyName 表示基础名称清洗后为空。
var ErrEmptyName = errors.New("cachekey: name is empty")

// Key 通过链式调用逐步累积标签，首次被存储层使用后冻结，
// 之后的修改调用一律忽略，规范字符串不再漂移。
type Key struct {
	name   string
	tags   map[string]string
	frozen atomic.Bool
	err    error
}

// New 创建以 name 为基础名称的键，名称按统一规则清洗并转小写。
func New(name string) *Key {
	k := &Key{
		name: Sanitize(name),
		tags: make(map[string]string),
	}
	if k.name == "" {
		k.err = ErrEmptyName
	}
	return k
}

// Tag 追加一个 (type,id) 标签；id 接受常见标量，空值回退为 "0"，
// 同类型后写覆盖先写。清洗后类型为空会记录粘性错误。
func (k *Key) Tag(tagType string, id any) *Key {
	if k.frozen.Load() {
		return k
	}
	t := Sanitize(tagType)
	if t == "" {
		k.fail(ErrEmptyTagType)
		return k
	}
	k.tags[t] = NormalizeTagID(id)
	return k
}

// NormalizeTagID 把任意标量格式化并清洗为标签标识，空值回退为 "0"。
// 键构建与标签失效两侧共用同一规则，保证双方落在同一个链接目录。
func NormalizeTagID(id any) string {
	v := Sanitize(formatID(id))
	if v == "" {
		return "0"
	}
	return v
}

// Date 追加 date_YYYYMMDD 标签；零值时间直接跳过，调用方无需分支即可链式书写。
func (k *Key) Date(t time.Time) *Key {
	if t.IsZero() {
		return k
	}
	return k.Tag("date", t.Format(dateLayout))
}

// DateRange 追加 datefrom/dateto 两个标签，零值的一侧各自跳过。
func (k *Key) DateRange(from, to time.Time) *Key {
	if !from.IsZero() {
		k.Tag("datefrom", from.Format(dateLayout))
	}
	if !to.IsZero() {
		k.Tag("dateto", to.Format(dateLayout))
	}
	return k
}

// Global 追加全局失效标记 global_0，供一次性失效所有带标记的条目。
func (k *Key) Global() *Key {
	return k.Tag("global", 0)
}

// Object 根据值的动态类型与 ID 字段派生标签，等价于默认选项的 ObjectWith。
func (k *Key) Object(v any) *Key {
	return k.ObjectWith(v, ObjectOptions{})
}

// ObjectProperty 与 Object 相同，但使用指定字段充当标识。
func (k *Key) ObjectProperty(v any, property string) *Key {
	return k.ObjectWith(v, ObjectOptions{Property: property})
}

// ObjectWith 按选项派生对象标签；nil 值跳过而非报错，可选引用可以直接链式传入。
func (k *Key) ObjectWith(v any, opts ObjectOptions) *Key {
	if k.frozen.Load() {
		return k
	}
	t := ObjectType(v, opts)
	if t == "" {
		return k
	}
	return k.Tag(t, ObjectID(v, opts.Property))
}

// Name 返回清洗后的基础名称。
func (k *Key) Name() string { return k.name }

// Tags 返回标签集合的副本，键与值均为清洗后的形式。
func (k *Key) Tags() map[string]string {
	out := make(map[string]string, len(k.tags))
	for t, id := range k.tags {
		out[t] = id
	}
	return out
}

// Canonical 输出按类型升序排列的 type_id 列表并以基础名称收尾。
func (k *Key) Canonical() string {
	types := make([]string, 0, len(k.tags))
	for t := range k.tags {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	for _, t := range types {
		b.WriteString(t)
		b.WriteByte('_')
		b.WriteString(k.tags[t])
		b.WriteByte('-')
	}
	b.WriteString(k.name)
	return b.String()
}

// HashedKey 返回规范字符串的 XXH3-128 摘要，固定 32 位小写十六进制，
// 直接用作条目文件与全部标签链接的文件名主干。
func (k *Key) HashedKey() string {
	sum := xxh3.HashString128(k.Canonical()).Bytes()
	return hex.EncodeToString(sum[:])
}

// Err 返回构建过程记录的第一个错误；读路径将其视为未命中，写路径原样上抛。
func (k *Key) Err() error { return k.err }

// Freeze 由存储层在首次使用键时调用，此后所有修改调用变为空操作。
func (k *Key) Freeze() { k.frozen.Store(true) }

func (k *Key) fail(err error) {
	if k.err == nil {
		k.err = err
	}
}

// formatID 把常见标量转成字符串；nil 与空串由调用方回退为 "0"。
func formatID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
