package http

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/metrics"
	"github.com/aisgo/ais-tenancy/middleware"
)

/* ========================================================================
 * HTTP Server - Fiber v3 HTTP 服务器
 * ========================================================================
 * 职责: 健康检查、指标暴露，以及业务路由前的 actor 校验与租户绑定
 * 顺序: recover -> metrics -> /healthz /readyz /metrics -> actor -> tenant -> 业务路由
 * 说明: TLS 在网关终止，这里只监听明文 TCP
 * ======================================================================== */

// Config HTTP 服务器配置
type Config struct {
	Port               int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Host               string        `yaml:"host" mapstructure:"host"`
	AppName            string        `yaml:"app_name" mapstructure:"app_name"`
	ReadTimeout        time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" mapstructure:"health_check_timeout"`
}

// Addr 监听地址
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerParams 依赖参数
type ServerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Config   Config
	Logger   *logger.Logger
	DB       *gorm.DB                   `optional:"true"`
	Verifier *middleware.ActorVerifier  `optional:"true"`
	Tenant   *middleware.TenantResolver `optional:"true"`
}

// NewApp 创建并配置 Fiber 应用（不监听）
func NewApp(p ServerParams) *fiber.App {
	cfg := p.Config
	appName := cfg.AppName
	if appName == "" {
		appName = "ais-tenancy"
	}

	app := fiber.New(fiber.Config{
		AppName:      appName,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 120*time.Second),
		ErrorHandler: middleware.NewErrorHandler(p.Logger),
	})

	app.Use(recoverer.New(recoverer.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			p.Logger.WithContext(c.Context()).Error("panic recovered",
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
		},
	}))
	app.Use(metrics.HTTPMiddleware(isHealthCheck))

	registerHealthEndpoints(app, p.DB, orDefault(cfg.HealthCheckTimeout, 2*time.Second))
	metrics.RegisterMetricsEndpoint(app)

	if p.Verifier != nil {
		app.Use(p.Verifier.Authenticate())
	}
	if p.Tenant != nil {
		app.Use(p.Tenant.Handler())
	}
	return app
}

// NewHTTPServer 创建应用并注册生命周期
func NewHTTPServer(p ServerParams) *fiber.App {
	app := NewApp(p)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := p.Config.Addr()
			// 先绑定端口，失败时让 fx 启动失败
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to bind to %s: %w", addr, err)
			}
			go func() {
				p.Logger.Info("starting HTTP server", zap.String("addr", addr))
				if err := app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					p.Logger.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping HTTP server")
			return app.ShutdownWithContext(ctx)
		},
	})
	return app
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func isHealthCheck(c fiber.Ctx) bool {
	path := c.Path()
	return path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/metrics")
}

/* ========================================================================
 * Health Check Endpoints
 * ========================================================================
 * /healthz - 存活探针，进程可响应即返回 200
 * /readyz  - 就绪探针，检查数据库连接
 * ======================================================================== */

func registerHealthEndpoints(app *fiber.App, db *gorm.DB, timeout time.Duration) {
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	app.Get("/readyz", func(c fiber.Ctx) error {
		checks := make(map[string]string)
		healthy := true

		if db != nil {
			if err := pingDB(c.Context(), db, timeout); err != nil {
				checks["database"] = "error: " + err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

		status, code := "ok", fiber.StatusOK
		if !healthy {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	})
}

func pingDB(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
