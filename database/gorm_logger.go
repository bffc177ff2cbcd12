package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

/* ========================================================================
 * Zap GORM Logger - GORM 日志桥接
 * ========================================================================
 * 职责: 将 GORM SQL 日志输出到 zap，记录慢查询与错误
 * ======================================================================== */

// ZapGormLogger GORM logger.Interface 的 zap 实现
type ZapGormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// GormLoggerOption ZapGormLogger 选项
type GormLoggerOption func(*ZapGormLogger)

// WithSlowThreshold 设置慢查询阈值，<=0 时保留默认值
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *ZapGormLogger) {
		if d > 0 {
			l.slowThreshold = d
		}
	}
}

// WithLogLevel 设置日志级别（silent / error / warn / info）
func WithLogLevel(level string) GormLoggerOption {
	return func(l *ZapGormLogger) {
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "silent":
			l.level = gormlogger.Silent
		case "error":
			l.level = gormlogger.Error
		case "info":
			l.level = gormlogger.Info
		case "warn":
			l.level = gormlogger.Warn
		}
	}
}

// NewZapGormLogger 创建 GORM 日志适配器
func NewZapGormLogger(zl *zap.Logger, opts ...GormLoggerOption) *ZapGormLogger {
	if zl == nil {
		zl = zap.NewNop()
	}
	l := &ZapGormLogger{
		log:           zl.WithOptions(zap.AddCallerSkip(3)),
		level:         gormlogger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode 实现 gormlogger.Interface
func (l *ZapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *ZapGormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *ZapGormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *ZapGormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace 记录 SQL 执行情况
func (l *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error("gorm query failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("gorm slow query",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("gorm query",
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	}
}
