package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/metrics"
	"github.com/aisgo/ais-tenancy/tenancy"
)

/* ========================================================================
 * Scoping Interceptor - 租户作用域拦截
 * ========================================================================
 * 职责: 所有数据访问在执行前经过这里
 * 规则:
 *   - 租户表: 读/改/删 注入 tenant_id = 当前租户，创建时写入 tenant_id
 *   - 全局表: 不做处理
 *   - 未注册表、缺少租户上下文: 拒绝（fail closed）
 *   - 显式跳过: 放行且记录审计日志
 *   - 调用方条件中携带其他租户的 tenant_id: 拒绝
 * ======================================================================== */

// Op 数据操作类型
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Access 一次操作的授权结果
type Access struct {
	Table    string
	Op       Op
	Scope    Scope
	TenantID string
	Bypass   bool
}

// Filtered 是否需要注入租户条件
func (a Access) Filtered() bool {
	return a.Scope == ScopeTenant && !a.Bypass
}

// Interceptor 租户作用域拦截器
type Interceptor struct {
	registry *Registry
	log      *logger.Logger
}

// NewInterceptor 创建拦截器
func NewInterceptor(registry *Registry, log *logger.Logger) *Interceptor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Interceptor{registry: registry, log: log}
}

// Registry 返回表注册表
func (i *Interceptor) Registry() *Registry {
	return i.registry
}

// Authorize 检查 ctx 是否允许对 table 执行 op
func (i *Interceptor) Authorize(ctx context.Context, table string, op Op) (Access, error) {
	access := Access{Table: table, Op: op, Scope: i.registry.Lookup(table)}

	switch access.Scope {
	case ScopeGlobal:
		return access, nil
	case ScopeTenant:
	default:
		metrics.ScopeRejectedTotal.WithLabelValues(table, "unregistered_table").Inc()
		i.log.Error("rejected access to unregistered table",
			zap.String("table", table), zap.String("op", string(op)))
		return access, errors.New(errors.ErrCodeInvalidArgument, "table is not registered for tenant scoping: "+table)
	}

	st, ok := tenancy.Get(ctx)
	if !ok || !st.HasTenant() {
		metrics.ScopeRejectedTotal.WithLabelValues(table, "missing_context").Inc()
		return access, errors.ErrTenantContextMissing
	}
	access.TenantID = st.TenantID

	if bypass, ok := st.BypassInfo(); ok {
		access.Bypass = true
		metrics.ScopeBypassTotal.WithLabelValues(table, string(op)).Inc()
		i.log.WithContext(ctx).Warn("tenant scope bypassed",
			zap.String("table", table),
			zap.String("op", string(op)),
			zap.String("reason", bypass.Reason),
			zap.String("target_tenant", bypass.TargetTenant),
		)
	}
	return access, nil
}

// Apply 把调用方条件与租户条件合并到 db
func (i *Interceptor) Apply(ctx context.Context, db *gorm.DB, access Access, filter Filter) (*gorm.DB, error) {
	filter = filter.clone()
	if access.Filtered() {
		if requested, ok := filter[ColumnTenantID]; ok {
			if s, isString := requested.(string); !isString || s != access.TenantID {
				metrics.ScopeRejectedTotal.WithLabelValues(access.Table, "cross_tenant_filter").Inc()
				i.log.WithContext(ctx).Error("cross-tenant filter rejected",
					zap.String("table", access.Table),
					zap.String("op", string(access.Op)),
					zap.Any("requested_tenant", requested),
				)
				return db, errors.New(errors.ErrCodePermissionDenied, "cross-tenant filter")
			}
		}
		filter[ColumnTenantID] = access.TenantID
	}

	exprs := filter.expressions()
	if len(exprs) == 0 {
		return db, nil
	}
	conds := make([]any, len(exprs))
	for n, e := range exprs {
		conds[n] = e
	}
	return db.Where(conds[0], conds[1:]...), nil
}

// Scope Authorize + Apply
func (i *Interceptor) Scope(ctx context.Context, db *gorm.DB, table string, op Op, filter Filter) (*gorm.DB, Access, error) {
	access, err := i.Authorize(ctx, table, op)
	if err != nil {
		return db, access, err
	}
	db, err = i.Apply(ctx, db, access, filter)
	return db, access, err
}

// StampTenant 返回创建时应写入的 tenant_id；全局表返回空串
func (i *Interceptor) StampTenant(ctx context.Context, table string) (string, error) {
	access, err := i.Authorize(ctx, table, OpCreate)
	if err != nil {
		return "", err
	}
	if access.Scope != ScopeTenant {
		return "", nil
	}
	return access.TenantID, nil
}
