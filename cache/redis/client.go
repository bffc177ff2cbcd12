package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/logger"
)

/* ========================================================================
 * Redis Client
 * ========================================================================
 * 职责: 目录缓存使用的最小 Redis 操作集
 * 约束: 启动时 Ping 失败则启动失败；运行期错误交给调用方降级
 * ======================================================================== */

// Config redis 段
type Config struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host" validate:"required_if=Enabled true"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	TenantTTL    time.Duration `yaml:"tenant_ttl" mapstructure:"tenant_ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// WithDefaults 端口 6379，TTL 1m，前缀 tenancy
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 6379
	}
	if c.TenantTTL <= 0 {
		c.TenantTTL = time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tenancy"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// Addr host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	c = c.WithDefaults()
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
	}
}

// Client go-redis 封装
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

type ClientParams struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger
}

// NewClient 按配置创建连接池，生命周期交给 fx
func NewClient(p ClientParams) *Client {
	c := NewClientFromRedis(redis.NewClient(p.Config.options()), p.Logger)
	addr := p.Config.WithDefaults().Addr()

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := c.Ping(ctx); err != nil {
				return err
			}
			c.log.Info("redis connected", zap.String("addr", addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return c.rdb.Close()
		},
	})
	return c
}

// NewClientFromRedis 包装已有客户端（测试用 miniredis）
func NewClientFromRedis(rdb *redis.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{rdb: rdb, log: log}
}

// IsNil key 不存在
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

// HSetWithTTL HSET 与 EXPIRE 在同一 MULTI 中执行
func (c *Client) HSetWithTTL(ctx context.Context, key string, ttl time.Duration, values map[string]any) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.log.Error("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}
