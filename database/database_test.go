package database

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aisgo/ais-tenancy/logger"
)

func TestSanitizeDSN(t *testing.T) {
	dsn := PostgresDSN(Config{Host: "localhost", Port: 5432, User: "user", Password: "secret", DBName: "db"})
	got := sanitizeDSN(dsn)
	if strings.Contains(got, "secret") {
		t.Fatalf("password leaked in sanitized DSN: %s", got)
	}
	if !strings.Contains(got, "***") && !strings.Contains(got, "%2A%2A%2A") {
		t.Fatalf("expected masked password, got: %s", got)
	}
}

func TestSanitizeDSNInvalid(t *testing.T) {
	dsn := "postgres://%zz"
	got := sanitizeDSN(dsn)
	if got != dsn {
		t.Fatalf("expected original DSN on parse error")
	}
}

func TestPostgresDSNSchema(t *testing.T) {
	dsn := PostgresDSN(Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "core", Schema: "tenancy"})
	if !strings.Contains(dsn, "search_path=tenancy") {
		t.Fatalf("expected search_path in dsn: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("expected default sslmode in dsn: %s", dsn)
	}
}

func TestMySQLDSNDefaults(t *testing.T) {
	dsn := MySQLDSN(Config{Host: "db", Port: 3306, User: "u", Password: "p", DBName: "core"})
	if !strings.Contains(dsn, "charset=utf8mb4") || !strings.Contains(dsn, "loc=UTC") {
		t.Fatalf("unexpected mysql dsn: %s", dsn)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, Path: ":memory:"}, logger.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected single connection for in-memory sqlite, got %d", got)
	}
}

func TestPoolDefaults(t *testing.T) {
	p := Config{Driver: DriverPostgres, MaxOpenConns: 50}.pool()
	if p.maxOpen != 50 || p.maxIdle != 10 || p.maxLifetime != time.Hour {
		t.Fatalf("unexpected pool: %+v", p)
	}
	if p := (Config{Driver: DriverSQLite}).pool(); p.maxOpen != 1 {
		t.Fatalf("default sqlite path is in-memory, got %+v", p)
	}
	if p := (Config{Driver: DriverSQLite, Path: "tenancy.db"}).pool(); p.maxOpen != 25 {
		t.Fatalf("file sqlite uses the normal pool, got %+v", p)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}, nil); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestZapGormLoggerSlowQuery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapGormLogger(zap.New(core), WithSlowThreshold(time.Millisecond))

	l.Trace(t.Context(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)

	if logs.FilterMessage("gorm slow query").Len() != 1 {
		t.Fatalf("expected slow query log, got %v", logs.All())
	}

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(t.Context(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if logs.Len() != 1 {
		t.Fatalf("silent logger must not log, got %d entries", logs.Len())
	}
}
