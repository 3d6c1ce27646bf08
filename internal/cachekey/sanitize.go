package cachekey

import "strings"

// Sanitize 将任意字符串规整为可安全充当文件名与标签目录的形式：
// 整体转小写，字面 ".." 折叠为 "_"，其余超出 [a-z0-9+_.-] 的字节逐个替换为 "_"。
// 键名、标签类型、标签 ID 共用同一规则，保证派生出的磁盘路径彼此一致。
func Sanitize(raw string) string {
	lowered := strings.ToLower(raw)
	lowered = strings.ReplaceAll(lowered, "..", "_")

	var b strings.Builder
	b.Grow(len(lowered))
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c)
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '+' || c == '_' || c == '.' || c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
