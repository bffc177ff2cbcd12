package conf

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/cache/redis"
	"github.com/aisgo/ais-tenancy/cascade"
	"github.com/aisgo/ais-tenancy/database"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/middleware"
	"github.com/aisgo/ais-tenancy/mq"
	"github.com/aisgo/ais-tenancy/tenancy"
	grpcserver "github.com/aisgo/ais-tenancy/transport/grpc"
	httpserver "github.com/aisgo/ais-tenancy/transport/http"
	"github.com/aisgo/ais-tenancy/validator"
)

/* ========================================================================
 * App Config - 进程配置
 * ========================================================================
 * 职责: 聚合各组件配置，加载后校验，并拆分为 fx 可注入的各段配置
 * ======================================================================== */

// App 进程配置
type App struct {
	Logger   logger.Config             `yaml:"logger" mapstructure:"logger"`
	Database database.Config           `yaml:"database" mapstructure:"database"`
	Redis    redis.Config              `yaml:"redis" mapstructure:"redis"`
	Tenancy  tenancy.Config            `yaml:"tenancy" mapstructure:"tenancy"`
	Actor    middleware.VerifierConfig `yaml:"actor" mapstructure:"actor"`
	HTTP     httpserver.Config         `yaml:"http" mapstructure:"http"`
	GRPC     grpcserver.Config         `yaml:"grpc" mapstructure:"grpc"`
	Cascade  cascade.Config            `yaml:"cascade" mapstructure:"cascade"`
	Files    filestore.Config          `yaml:"files" mapstructure:"files"`
	Outbox   outbox.Config             `yaml:"outbox" mapstructure:"outbox"`
	Kafka    mq.Config                 `yaml:"kafka" mapstructure:"kafka"`
}

// Default 返回默认配置，文件中出现的键覆盖默认值
func Default() App {
	return App{
		Logger:   logger.Config{Level: "info", Format: "json", Output: "stdout"},
		Database: database.Config{Driver: database.DriverSQLite, Path: "tenancy.db"},
		Redis:    redis.Config{Host: "127.0.0.1", Port: 6379},
		HTTP:     httpserver.Config{Port: 8080, AppName: "tenancyd"},
		GRPC:     grpcserver.Config{Port: 9090},
		Kafka:    mq.DefaultConfig(),
	}
}

// Load 读取配置文件并校验
func Load(path string) (*App, error) {
	app := Default()
	if err := decode(path, &app); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Validate 校验各段配置
func (a *App) Validate() error {
	if err := validator.New().Validate(a); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.ValidateConfig(a.Logger); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Sections 按段注入
type Sections struct {
	fx.Out

	Logger   logger.Config
	Database database.Config
	Redis    redis.Config
	Tenancy  tenancy.Config
	Actor    middleware.VerifierConfig
	HTTP     httpserver.Config
	GRPC     grpcserver.Config
	Cascade  cascade.Config
	Files    filestore.Config
	Outbox   outbox.Config
	Kafka    mq.Config
}

// Sections 拆分配置
func (a *App) Sections() Sections {
	return Sections{
		Logger:   a.Logger,
		Database: a.Database,
		Redis:    a.Redis,
		Tenancy:  a.Tenancy.WithDefaults(),
		Actor:    a.Actor,
		HTTP:     a.HTTP,
		GRPC:     a.GRPC,
		Cascade:  a.Cascade.WithDefaults(),
		Files:    a.Files.WithDefaults(),
		Outbox:   a.Outbox.WithDefaults(),
		Kafka:    a.Kafka,
	}
}

// Module 提供 *App 与各段配置
func Module(app *App) fx.Option {
	return fx.Module("conf",
		fx.Supply(app),
		fx.Provide(func(a *App) Sections { return a.Sections() }),
	)
}
