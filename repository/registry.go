package repository

import (
	"fmt"
	"sort"
	"strings"
)

/* ========================================================================
 * Table Registry - 表作用域注册
 * ========================================================================
 * 职责: 静态声明哪些表按租户隔离、哪些表是租户无关的
 * 规则:
 *   - 未注册的表一律拒绝（fail closed）
 *   - 不根据字段是否存在推断作用域
 * ======================================================================== */

// Scope 表作用域
type Scope int

const (
	ScopeUnknown Scope = iota
	ScopeTenant
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeTenant:
		return "tenant"
	case ScopeGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Registry 表作用域注册表，创建后只读
type Registry struct {
	tables map[string]Scope
}

// NewRegistry 创建注册表
// 同一张表不能同时出现在 scoped 与 global 中。
func NewRegistry(scoped, global []string) (*Registry, error) {
	r := &Registry{tables: make(map[string]Scope, len(scoped)+len(global))}
	add := func(table string, scope Scope) error {
		table = strings.TrimSpace(table)
		if table == "" {
			return fmt.Errorf("empty table name in %s registry", scope)
		}
		if prev, ok := r.tables[table]; ok && prev != scope {
			return fmt.Errorf("table %q registered as both %s and %s", table, prev, scope)
		}
		r.tables[table] = scope
		return nil
	}
	for _, t := range scoped {
		if err := add(t, ScopeTenant); err != nil {
			return nil, err
		}
	}
	for _, t := range global {
		if err := add(t, ScopeGlobal); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry 创建注册表，失败时 panic
func MustRegistry(scoped, global []string) *Registry {
	r, err := NewRegistry(scoped, global)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup 查询表作用域
func (r *Registry) Lookup(table string) Scope {
	if r == nil {
		return ScopeUnknown
	}
	return r.tables[table]
}

// Tables 返回指定作用域的表（已排序）
func (r *Registry) Tables(scope Scope) []string {
	var out []string
	for t, s := range r.tables {
		if s == scope {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
