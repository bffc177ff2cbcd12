package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/* ========================================================================
 * Logger - 统一日志组件
 * ========================================================================
 * 职责: 提供结构化日志能力，支持 JSON / Console 格式
 * 技术: Uber Zap + lumberjack（文件滚动）
 * ======================================================================== */

// Config Logger 配置
type Config struct {
	Level      string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"`           // json, console
	Output     string `yaml:"output" mapstructure:"output"`           // stdout, stderr, 或文件路径
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"` // 单个日志文件最大尺寸
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Logger 封装 Zap Logger
type Logger struct {
	*zap.Logger
}

// ContextFieldsFunc 从 context 中提取日志字段（如 tenant_id / actor_id）
type ContextFieldsFunc func(ctx context.Context) []zap.Field

var (
	ctxFieldsMu sync.RWMutex
	ctxFields   []ContextFieldsFunc
)

// RegisterContextFields 注册 context 字段提取器，由 WithContext 调用
func RegisterContextFields(fn ContextFieldsFunc) {
	if fn == nil {
		return
	}
	ctxFieldsMu.Lock()
	defer ctxFieldsMu.Unlock()
	ctxFields = append(ctxFields, fn)
}

// ValidateConfig 校验日志配置
func ValidateConfig(cfg Config) error {
	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	switch cfg.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return nil
}

// NewLogger 初始化 Logger
func NewLogger(cfg Config) *Logger {
	// 解析日志级别，非法值回退到 info
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zap.InfoLevel
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// 根据格式选择编码器
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, newWriter(cfg), level)

	logger := zap.New(core, zap.AddCaller())
	return &Logger{Logger: logger}
}

func newWriter(cfg Config) zapcore.WriteSyncer {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// NewNop 返回不输出任何内容的 Logger（测试用）
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithContext 注入已注册提取器给出的 context 字段
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.Logger
	}

	ctxFieldsMu.RLock()
	extractors := ctxFields
	ctxFieldsMu.RUnlock()

	var fields []zap.Field
	for _, fn := range extractors {
		fields = append(fields, fn(ctx)...)
	}
	if len(fields) == 0 {
		return l.Logger
	}
	return l.Logger.With(fields...)
}
