package cachekey

import (
	"reflect"
	"strings"
)

// ObjectOptions 控制对象标签的派生方式。
type ObjectOptions struct {
	// Property 指定充当标识的导出字段名，空值默认 "ID"，匹配大小写不敏感。
	Property string
	// BaseNameOnly 为 true 时仅取类型名本身，不带包路径。
	BaseNameOnly bool
	// StripPrefixes 列出需要从限定类型名头部剔除的前缀，先于清洗执行。
	StripPrefixes []string
}

// ObjectType 根据值的动态类型派生标签类型；nil 返回空串表示跳过。
// 指针逐层解引用后取元素类型，未命名类型回退到其字符串表示。
func ObjectType(v any, opts ObjectOptions) string {
	if isNilValue(v) {
		return ""
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	} else if !opts.BaseNameOnly && t.PkgPath() != "" {
		name = t.PkgPath() + "." + name
	}

	for _, prefix := range opts.StripPrefixes {
		if prefix == "" {
			continue
		}
		if trimmed := strings.TrimPrefix(name, prefix); trimmed != name && trimmed != "" {
			name = trimmed
			break
		}
	}
	return Sanitize(name)
}

// ObjectID 读取命名字段充当标识，字段缺失、不可读或为零值时回退 "0"。
func ObjectID(v any, property string) string {
	if property == "" {
		property = "ID"
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "0"
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "0"
	}

	field := rv.FieldByNameFunc(func(name string) bool {
		return strings.EqualFold(name, property)
	})
	if !field.IsValid() || !field.CanInterface() || field.IsZero() {
		return "0"
	}

	id := Sanitize(formatID(field.Interface()))
	if id == "" {
		return "0"
	}
	return id
}

// isNilValue 判断接口本身或其承载的指针类值是否为 nil。
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
