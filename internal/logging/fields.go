package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// EntryFields 提供命名空间/条目哈希/命中状态字段，供读写路径日志复用。
func EntryFields(namespace, hash string, hit bool) logrus.Fields {
	return logrus.Fields{
		"namespace": namespace,
		"entry":     hash,
		"cache_hit": hit,
	}
}

// InvalidateFields 提供标签类型/标识/删除数量字段，供失效操作日志复用。
func InvalidateFields(tagType, tagID string, removed int) logrus.Fields {
	return logrus.Fields{
		"tag_type": tagType,
		"tag_id":   tagID,
		"removed":  removed,
	}
}

// SweepFields 提供清扫统计字段，供过期清理与符号链接回收日志复用。
func SweepFields(action string, removed int, bytesFreed int64) logrus.Fields {
	return logrus.Fields{
		"action":      action,
		"removed":     removed,
		"bytes_freed": bytesFreed,
	}
}
