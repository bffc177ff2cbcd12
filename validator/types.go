package validator

import (
	"sort"
	"strings"

	"github.com/aisgo/ais-tenancy/errors"
)

const (
	// tagCustom 自定义错误消息标签名
	tagCustom = "error_msg"
	// ruleSeparator 规则分隔符
	ruleSeparator = "|"
	// keyValueSep 规则名与消息分隔符
	keyValueSep = ":"
)

// ValidationError 按字段路径分组的校验错误
type ValidationError struct {
	Errors map[string][]string // 字段路径 -> 错误消息列表
}

// Error 实现 error 接口，字段按路径排序
func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for n, f := range fields {
		if n > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(f)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(v.Errors[f], ", "))
	}
	return sb.String()
}

// HasErrors 是否有错误
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add 添加字段错误
func (v *ValidationError) Add(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string][]string)
	}
	v.Errors[field] = append(v.Errors[field], message)
}

// Get 获取字段错误
func (v *ValidationError) Get(field string) []string {
	return v.Errors[field]
}

// BizError 转为 InvalidArgument，字段错误放入 details
func (v *ValidationError) BizError() *errors.BizError {
	be := errors.Wrap(errors.ErrCodeInvalidArgument, "validation failed", v)
	for f, msgs := range v.Errors {
		be = be.WithDetail(f, strings.Join(msgs, ", "))
	}
	return be
}
