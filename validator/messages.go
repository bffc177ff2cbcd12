package validator

import (
	"reflect"
	"strings"
	"sync"
)

// messageCache 缓存 error_msg 标签解析结果
type messageCache struct {
	mu    sync.RWMutex
	rules map[string]map[string]string
}

func newMessageCache() *messageCache {
	return &messageCache{rules: make(map[string]map[string]string)}
}

// lookup 沿结构体字段路径找到 error_msg 标签并返回 rule 对应的消息
func (c *messageCache) lookup(root reflect.Type, structNS, rule string) string {
	tag := errorMsgTag(root, trimRoot(structNS))
	if tag == "" {
		return ""
	}

	c.mu.RLock()
	parsed, ok := c.rules[tag]
	c.mu.RUnlock()
	if !ok {
		parsed = parseErrorMessageTag(tag)
		c.mu.Lock()
		c.rules[tag] = parsed
		c.mu.Unlock()
	}
	return parsed[rule]
}

func errorMsgTag(t reflect.Type, path string) string {
	var field reflect.StructField
	for _, part := range strings.Split(path, ".") {
		// 切片 / map 元素形如 Brokers[0]
		if i := strings.IndexByte(part, '['); i >= 0 {
			part = part[:i]
		}
		for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Map {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return ""
		}
		f, ok := t.FieldByName(part)
		if !ok {
			return ""
		}
		field = f
		t = f.Type
	}
	return field.Tag.Get(tagCustom)
}

// parseErrorMessageTag 解析 "required:必填|min:过短"
func parseErrorMessageTag(tag string) map[string]string {
	out := make(map[string]string)
	for _, item := range strings.Split(tag, ruleSeparator) {
		parts := strings.SplitN(item, keyValueSep, 2)
		if len(parts) == 2 {
			out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return out
}
