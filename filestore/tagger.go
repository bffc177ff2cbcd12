// Package filestore 为被删除实体关联的文件下发保留期标记，字节存储本身不在此处理。
package filestore

import (
	"context"
	"time"
)

// 对象标签键
const (
	TagDeletedAt     = "ais-deleted-at"
	TagRetentionDays = "ais-retention-days"
	TagTenantID      = "ais-tenant-id"
)

// DefaultRetentionDays 默认保留天数
const DefaultRetentionDays = 30

// DeletionTag 文件删除标记：标记后由存储侧在保留期满时清理
type DeletionTag struct {
	BucketRef     string    `json:"bucket_ref"`
	ObjectKey     string    `json:"object_key"`
	TaggedAt      time.Time `json:"tagged_at"`
	RetentionDays int       `json:"retention_days"`

	TenantID   string `json:"tenant_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
}

// ExpiresAt 保留期截止时间
func (t DeletionTag) ExpiresAt() time.Time {
	return t.TaggedAt.AddDate(0, 0, t.RetentionDays)
}

// Tagger 文件标记器
type Tagger interface {
	// Name 后端名称，用于日志与指标
	Name() string
	// Tag 为对象打删除标记，重复调用必须安全
	Tag(ctx context.Context, tag DeletionTag) error
}

// Config 文件标记配置；保留天数由 cascade.retention_days 决定
type Config struct {
	Backends []string `yaml:"backends" mapstructure:"backends" validate:"dive,oneof=s3 queue"`
	Topic    string   `yaml:"topic" mapstructure:"topic"`
	S3       S3Config `yaml:"s3" mapstructure:"s3"`
}

// WithDefaults 填充默认值
func (c Config) WithDefaults() Config {
	if len(c.Backends) == 0 {
		c.Backends = []string{"s3"}
	}
	if c.Topic == "" {
		c.Topic = "ais.file-deletion-tags"
	}
	return c
}
