package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

/* ========================================================================
 * Validator - 结构体校验
 * ========================================================================
 * 职责: 基于 go-playground/validator 的结构体校验，错误按字段路径分组
 * 特性:
 *   - 字段路径使用 mapstructure / json 标签名（如 kafka.brokers）
 *   - 支持 error_msg 标签定义自定义错误消息
 *   - 跨字段规则（required_if 等）由 Struct 整体校验保证
 * 使用示例:
 *     type KafkaConfig struct {
 *         Enabled bool     `mapstructure:"enabled"`
 *         Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true" error_msg:"required_if:启用时必须配置 broker"`
 *     }
 * ======================================================================== */

// Validator 结构体校验器
type Validator struct {
	validate *validator.Validate
	messages *messageCache
}

// New 创建校验器
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return &Validator{validate: v, messages: newMessageCache()}
}

// Validate 校验结构体，失败时返回 *ValidationError
func (v *Validator) Validate(s any) error {
	if s == nil {
		return nil
	}
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	root := reflect.TypeOf(s)
	for root.Kind() == reflect.Ptr {
		root = root.Elem()
	}

	out := &ValidationError{Errors: make(map[string][]string)}
	for _, fe := range fieldErrs {
		path := trimRoot(fe.Namespace())
		msg := v.messages.lookup(root, fe.StructNamespace(), fe.Tag())
		if msg == "" {
			msg = describe(fe)
		}
		out.Add(path, msg)
	}
	return out
}

// fieldName 优先使用 mapstructure 标签，其次 json 标签
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"mapstructure", "json"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// trimRoot 去掉命名空间中的根类型名
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	if fe.Param() != "" {
		return "failed on '" + fe.Tag() + "=" + fe.Param() + "'"
	}
	return "failed on '" + fe.Tag() + "'"
}
