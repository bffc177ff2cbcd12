package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aisgo/ais-tenancy/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

/* ========================================================================
 * Database - 关系型数据库连接
 * ========================================================================
 * 职责: 按驱动打开 GORM 连接，统一连接池与日志
 * 驱动: postgres / mysql / sqlite（测试与单机部署）
 * ======================================================================== */

// Open 按配置打开连接；时间戳一律使用 UTC
func Open(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logger.NewNop()
	}

	dialector, target, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewZapGormLogger(log.Logger,
			WithSlowThreshold(cfg.SlowThreshold),
			WithLogLevel(cfg.LogLevel),
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database %s: %w", cfg.Driver, target, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	p := cfg.pool()
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)
	sqlDB.SetConnMaxIdleTime(p.maxIdleTime)

	log.Info("database connected",
		zap.String("driver", string(cfg.Driver)),
		zap.String("target", target),
		zap.Int("max_open_conns", p.maxOpen),
	)
	return db, nil
}

type poolSettings struct {
	maxIdle, maxOpen         int
	maxLifetime, maxIdleTime time.Duration
}

// pool 连接池参数；内存 SQLite 每个连接是独立的库，只能开一个
func (c Config) pool() poolSettings {
	p := poolSettings{
		maxIdle:     orDefault(c.MaxIdleConns, 10),
		maxOpen:     orDefault(c.MaxOpenConns, 25),
		maxLifetime: orDefault(c.ConnMaxLifetime, time.Hour),
		maxIdleTime: orDefault(c.ConnMaxIdleTime, 20*time.Minute),
	}
	if c.Driver == DriverSQLite && (c.Path == "" || c.Path == ":memory:") {
		p.maxOpen = 1
		p.maxIdle = 1
	}
	return p
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func dialectorFor(cfg Config) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case DriverPostgres:
		dsn := PostgresDSN(cfg)
		return postgres.New(postgres.Config{DSN: dsn}), sanitizeDSN(dsn), nil
	case DriverMySQL:
		dsn := MySQLDSN(cfg)
		return mysql.Open(dsn), fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.DBName), nil
	case DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return sqlite.Open(path), path, nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// PostgresDSN 构建 PostgreSQL URL 形式的 DSN
func PostgresDSN(cfg Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	// 如果配置了 schema，添加到 DSN
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// MySQLDSN 构建 MySQL DSN
func MySQLDSN(cfg Config) string {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	loc := cfg.Loc
	if loc == "" {
		loc = "UTC"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, charset, url.QueryEscape(loc))
}

// sanitizeDSN 隐藏 DSN 中的密码，解析失败时原样返回
func sanitizeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
