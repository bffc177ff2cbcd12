package tenancy

import (
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/logger"
)

/* ========================================================================
 * Tenancy Module
 * ========================================================================
 * 职责: 提供租户目录与解析器
 * 提供: *GormDirectory, *Resolver
 * 说明: Directory / Memberships 由 DirectoryModule 或 cache.Module 绑定
 * ======================================================================== */

// Config 租户边界配置
type Config struct {
	TenantHeader  string   `yaml:"tenant_header" mapstructure:"tenant_header"`   // 默认 X-Tenant-ID
	TenantQuery   string   `yaml:"tenant_query" mapstructure:"tenant_query"`     // 默认 tenant_id
	OperatorRoles []string `yaml:"operator_roles" mapstructure:"operator_roles"` // 视为特权用户的角色
}

const (
	DefaultTenantHeader = "X-Tenant-ID"
	DefaultTenantQuery  = "tenant_id"
	DefaultOperatorRole = "platform_operator"
)

// WithDefaults 填充默认值
func (c Config) WithDefaults() Config {
	if c.TenantHeader == "" {
		c.TenantHeader = DefaultTenantHeader
	}
	if c.TenantQuery == "" {
		c.TenantQuery = DefaultTenantQuery
	}
	if len(c.OperatorRoles) == 0 {
		c.OperatorRoles = []string{DefaultOperatorRole}
	}
	return c
}

// Module 租户模块
var Module = fx.Module("tenancy",
	fx.Provide(
		NewGormDirectory,
		NewResolver,
	),
	fx.Invoke(func(l *logger.Logger) { SetLogger(l) }),
)

// DirectoryModule 直接使用 GORM 目录（无缓存）
var DirectoryModule = fx.Module("tenancy-directory",
	fx.Provide(
		func(d *GormDirectory) Directory { return d },
		func(d *GormDirectory) Memberships { return d },
	),
)
