package cache

import (
	"github.com/aisgo/ais-tenancy/cache/redis"
	"github.com/aisgo/ais-tenancy/tenancy"

	"go.uber.org/fx"
)

/* ========================================================================
 * Cache Module
 * ========================================================================
 * 职责: 提供 Redis 客户端，并以读穿缓存作为租户目录
 * 用法: 与 tenancy.Module 一起使用，替代 tenancy.DirectoryModule
 * ======================================================================== */

// Module 缓存模块
// 提供: *redis.Client, *redis.DirectoryCache, tenancy.Directory, tenancy.Memberships
var Module = fx.Module("cache",
	fx.Provide(
		redis.NewClient,
		redis.ProvideDirectoryCache,
		func(c *redis.DirectoryCache) tenancy.Directory { return c },
		func(c *redis.DirectoryCache) tenancy.Memberships { return c },
	),
)
