package repository

import (
	"reflect"
	"sort"

	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * Filter - 结构化查询条件
 * ========================================================================
 * 职责: 以 列名 -> 值 表达调用方查询，不接受原始 SQL 片段
 * 语义:
 *   - nil       -> col IS NULL
 *   - 切片/数组 -> col IN (...)
 *   - 其他      -> col = value
 * ======================================================================== */

// Filter 调用方查询条件
type Filter map[string]any

// Eq 单列等值条件
func Eq(column string, value any) Filter {
	return Filter{column: value}
}

// And 合并条件，后者覆盖同名列
func (f Filter) And(other Filter) Filter {
	out := make(Filter, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (f Filter) clone() Filter {
	return f.And(nil)
}

func (f Filter) sortedColumns() []string {
	cols := make([]string, 0, len(f))
	for k := range f {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// validate 校验列名必须是模型的数据库列
func (f Filter) validate(s *schema.Schema) error {
	if s == nil {
		return nil
	}
	for col := range f {
		if _, ok := s.FieldsByDBName[col]; !ok {
			return errors.New(errors.ErrCodeInvalidArgument, "unknown filter column: "+col)
		}
	}
	return nil
}

// expressions 转为 GORM 条件表达式（列名排序保证 SQL 稳定）
func (f Filter) expressions() []clause.Expression {
	exprs := make([]clause.Expression, 0, len(f))
	for _, col := range f.sortedColumns() {
		column := clause.Column{Table: clause.CurrentTable, Name: col}
		v := f[col]
		if values, ok := listValues(v); ok {
			exprs = append(exprs, clause.IN{Column: column, Values: values})
			continue
		}
		exprs = append(exprs, clause.Eq{Column: column, Value: v})
	}
	return exprs
}

func listValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// []byte 作为标量
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
