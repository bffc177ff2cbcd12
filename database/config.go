package database

import "time"

/* ========================================================================
 * Database Config - 数据库配置
 * ========================================================================
 * 职责: 统一 PostgreSQL / MySQL / SQLite 的连接与连接池配置
 * ======================================================================== */

// Driver 数据库驱动类型
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config 数据库配置
type Config struct {
	Driver   Driver `yaml:"driver" mapstructure:"driver" validate:"required,oneof=postgres mysql sqlite"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`

	SSLMode string `yaml:"sslmode" mapstructure:"sslmode"` // postgres
	Schema  string `yaml:"schema" mapstructure:"schema"`   // postgres search_path
	Charset string `yaml:"charset" mapstructure:"charset"` // mysql，默认 utf8mb4
	Loc     string `yaml:"loc" mapstructure:"loc"`         // mysql 时区，默认 UTC
	Path    string `yaml:"path" mapstructure:"path"`       // sqlite 文件路径或 :memory:

	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`         // 最大空闲连接数
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`         // 最大打开连接数
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`   // 连接最大生命周期
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"` // 空闲连接最大时间

	SlowThreshold time.Duration `yaml:"slow_threshold" mapstructure:"slow_threshold"` // 慢查询阈值
	LogLevel      string        `yaml:"log_level" mapstructure:"log_level"`           // silent / error / warn / info
}
