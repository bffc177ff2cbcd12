package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/tenancy"
)

/* ========================================================================
 * Tenant Resolver Middleware
 * ========================================================================
 * 职责: 由已校验的 actor 与目标租户解析租户，并在该请求的 context 中绑定
 * 规则:
 *   - 目标租户取自请求头（默认 X-Tenant-ID），其次查询参数（默认 tenant_id）
 *   - 匿名请求不绑定租户，数据访问由作用域拦截器拒绝
 *   - 解析失败直接返回错误，交给 ErrorHandler 统一输出
 * ======================================================================== */

// TenantResolver 租户解析中间件
type TenantResolver struct {
	resolver *tenancy.Resolver
	cfg      tenancy.Config
}

// NewTenantResolver 创建中间件
func NewTenantResolver(resolver *tenancy.Resolver, cfg tenancy.Config) *TenantResolver {
	return &TenantResolver{resolver: resolver, cfg: cfg.WithDefaults()}
}

// TargetTenant 读取请求中的目标租户
func (m *TenantResolver) TargetTenant(c fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(m.cfg.TenantHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query(m.cfg.TenantQuery))
}

// Handler 返回 Fiber 中间件
func (m *TenantResolver) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, _ := ClaimsFromContext(c)
		actor := claims.Actor(m.cfg.OperatorRoles)
		if !actor.Authenticated {
			return c.Next()
		}

		parent := c.Context()
		return m.resolver.Bind(parent, actor, m.TargetTenant(c), func(ctx context.Context) error {
			c.SetContext(ctx)
			defer c.SetContext(parent)
			return c.Next()
		})
	}
}
