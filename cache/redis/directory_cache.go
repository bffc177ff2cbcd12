package redis

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/tenancy"
)

/* ========================================================================
 * Directory Cache - 租户目录读穿缓存
 * ========================================================================
 * 职责: 缓存租户记录与用户归属，降低每次请求的目录查询
 * 规则:
 *   - 缓存读取失败时回源，不影响解析结果
 *   - 不缓存 NotFound，新建租户立即可见
 *   - 状态变更经由 SetStatus 时立即失效
 * ======================================================================== */

type statusWriter interface {
	SetStatus(ctx context.Context, tenantID string, status tenancy.Status) error
}

// DirectoryCache 实现 tenancy.Directory 与 tenancy.Memberships
type DirectoryCache struct {
	client  *Client
	dir     tenancy.Directory
	members tenancy.Memberships
	ttl     time.Duration
	prefix  string
	log     *logger.Logger
}

// NewDirectoryCache 创建目录缓存
func NewDirectoryCache(client *Client, dir tenancy.Directory, members tenancy.Memberships, cfg Config, log *logger.Logger) *DirectoryCache {
	if log == nil {
		log = logger.NewNop()
	}
	cfg = cfg.WithDefaults()
	return &DirectoryCache{client: client, dir: dir, members: members, ttl: cfg.TenantTTL, prefix: cfg.KeyPrefix, log: log}
}

// DirectoryCacheParams 依赖参数
type DirectoryCacheParams struct {
	fx.In
	Client    *Client
	Directory *tenancy.GormDirectory
	Config    Config
	Logger    *logger.Logger
}

// ProvideDirectoryCache 以 GORM 目录为源创建缓存（用于 Fx）
func ProvideDirectoryCache(p DirectoryCacheParams) *DirectoryCache {
	return NewDirectoryCache(p.Client, p.Directory, p.Directory, p.Config, p.Logger)
}

func (c *DirectoryCache) tenantKey(id string) string { return c.prefix + ":tenant:" + id }
func (c *DirectoryCache) memberKey(id string) string { return c.prefix + ":member:" + id }

// GetTenant 实现 tenancy.Directory
func (c *DirectoryCache) GetTenant(ctx context.Context, tenantID string) (*tenancy.Tenant, error) {
	fields, err := c.client.HGetAll(ctx, c.tenantKey(tenantID))
	if err != nil {
		c.log.Warn("tenant cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
	} else if fields["id"] != "" {
		return &tenancy.Tenant{ID: fields["id"], Name: fields["name"], Status: tenancy.Status(fields["status"])}, nil
	}

	t, err := c.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := c.client.HSetWithTTL(ctx, c.tenantKey(tenantID), c.ttl, map[string]any{
		"id":     t.ID,
		"name":   t.Name,
		"status": string(t.Status),
	}); err != nil {
		c.log.Warn("tenant cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return t, nil
}

// HomeTenant 实现 tenancy.Memberships
func (c *DirectoryCache) HomeTenant(ctx context.Context, actorID string) (string, error) {
	tenantID, err := c.client.Get(ctx, c.memberKey(actorID))
	switch {
	case err == nil && tenantID != "":
		return tenantID, nil
	case err != nil && !IsNil(err):
		c.log.Warn("membership cache read failed", zap.String("actor_id", actorID), zap.Error(err))
	}

	tenantID, err = c.members.HomeTenant(ctx, actorID)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, c.memberKey(actorID), tenantID, c.ttl); err != nil {
		c.log.Warn("membership cache write failed", zap.String("actor_id", actorID), zap.Error(err))
	}
	return tenantID, nil
}

// Invalidate 删除租户缓存
func (c *DirectoryCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, c.tenantKey(tenantID))
}

// InvalidateMember 删除用户归属缓存
func (c *DirectoryCache) InvalidateMember(ctx context.Context, actorID string) error {
	return c.client.Del(ctx, c.memberKey(actorID))
}

// SetStatus 修改租户状态并使缓存失效
func (c *DirectoryCache) SetStatus(ctx context.Context, tenantID string, status tenancy.Status) error {
	w, ok := c.dir.(statusWriter)
	if !ok {
		return c.Invalidate(ctx, tenantID)
	}
	if err := w.SetStatus(ctx, tenantID, status); err != nil {
		return err
	}
	return c.Invalidate(ctx, tenantID)
}
