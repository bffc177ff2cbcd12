package tenancy

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
)

/* ========================================================================
 * Tenant Resolver - 租户解析
 * ========================================================================
 * 职责: 由已认证 actor（及特权用户的目标租户）确定本次操作的租户
 * 规则:
 *   - 未认证: 不解析，不设置 bypass
 *   - 普通用户: 使用 home tenant
 *   - 特权用户: 必须显式提供目标租户，没有默认租户
 *   - 租户状态必须为 active / trial
 * ======================================================================== */

// Resolver 租户解析器
type Resolver struct {
	dir     Directory
	members Memberships
	log     *logger.Logger
}

// NewResolver 创建租户解析器
func NewResolver(dir Directory, members Memberships, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{dir: dir, members: members, log: log}
}

// Resolve 解析租户上下文
func (r *Resolver) Resolve(ctx context.Context, actor Actor, targetTenant string) (State, error) {
	if !actor.Authenticated {
		return State{}, nil
	}
	targetTenant = strings.TrimSpace(targetTenant)

	var tenantID string
	if actor.Privileged {
		if targetTenant == "" {
			return State{}, errors.ErrTenantIDRequired.WithDetail("actor_id", actor.ID)
		}
		tenantID = targetTenant
	} else {
		home, err := r.members.HomeTenant(ctx, actor.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				return State{}, errors.ErrNoTenantAssociation.WithDetail("actor_id", actor.ID)
			}
			return State{}, err
		}
		// 普通用户只能访问 home tenant
		if targetTenant != "" && targetTenant != home {
			r.log.Warn("ordinary actor requested a foreign tenant",
				zap.String("actor_id", actor.ID),
				zap.String("home_tenant", home),
				zap.String("target_tenant", targetTenant),
			)
			return State{}, errors.New(errors.ErrCodePermissionDenied, "actor cannot act on another tenant")
		}
		tenantID = home
	}

	if err := r.checkTenant(ctx, tenantID); err != nil {
		return State{}, err
	}

	if actor.Privileged {
		r.log.Info("privileged actor impersonating tenant",
			zap.String("actor_id", actor.ID),
			zap.String("tenant_id", tenantID),
		)
	}

	return State{
		TenantID:   tenantID,
		ActorID:    actor.ID,
		Privileged: actor.Privileged,
		Access:     Scoped{},
	}, nil
}

// Bind 解析租户并在新的上下文绑定中执行 fn
func (r *Resolver) Bind(ctx context.Context, actor Actor, targetTenant string, fn func(context.Context) error) error {
	st, err := r.Resolve(ctx, actor, targetTenant)
	if err != nil {
		return err
	}
	return Run(ctx, st, fn)
}

func (r *Resolver) checkTenant(ctx context.Context, tenantID string) error {
	t, err := r.dir.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.ErrNoTenantAssociation.WithDetail("tenant_id", tenantID)
		}
		return err
	}

	switch {
	case t.Status.Usable():
		return nil
	case t.Status == StatusSuspended:
		return errors.ErrTenantSuspended.WithDetail("tenant_id", tenantID)
	default:
		return errors.ErrTenantInactive.WithDetail("tenant_id", tenantID)
	}
}
