package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/id"
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Pending Tag Outbox - 待重试的文件标记
 * ========================================================================
 * 职责: 级联删除在标记实体的同一事务内登记文件标记，由 Reconciler 兜底
 * 说明: pending_file_tags 是租户无关表，租户 ID 仅作为审计字段保存
 *       所有方法都会加入 ctx 中的事务（repository.WithTx）
 * ======================================================================== */

// Status 标记状态
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusDead    Status = "dead"
)

// PendingTag 待重试的文件标记
type PendingTag struct {
	ID            string    `gorm:"column:id;type:varchar(26);primaryKey"`
	BucketRef     string    `gorm:"column:bucket_ref;type:varchar(128);not null"`
	ObjectKey     string    `gorm:"column:object_key;type:varchar(512);not null"`
	TaggedAt      time.Time `gorm:"column:tagged_at;not null"`
	RetentionDays int       `gorm:"column:retention_days;not null"`
	TenantID      string    `gorm:"column:tenant_id;type:varchar(26);index"`
	EntityKind    string    `gorm:"column:entity_kind;type:varchar(32)"`
	EntityID      string    `gorm:"column:entity_id;type:varchar(26)"`
	RunID         int64     `gorm:"column:run_id;index"`
	Status        Status    `gorm:"column:status;type:varchar(16);not null;index:idx_pending_due,priority:1"`
	Attempts      int       `gorm:"column:attempts;not null;default:0"`
	LastError     string    `gorm:"column:last_error;type:text"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;not null;index:idx_pending_due,priority:2"`
	CreateTime    time.Time `gorm:"column:create_time;autoCreateTime"`
	UpdateTime    time.Time `gorm:"column:update_time;autoUpdateTime"`
}

func (PendingTag) TableName() string { return "pending_file_tags" }

// DeletionTag 还原为标记指令
func (p PendingTag) DeletionTag() filestore.DeletionTag {
	return filestore.DeletionTag{
		BucketRef:     p.BucketRef,
		ObjectKey:     p.ObjectKey,
		TaggedAt:      p.TaggedAt,
		RetentionDays: p.RetentionDays,
		TenantID:      p.TenantID,
		EntityKind:    p.EntityKind,
		EntityID:      p.EntityID,
	}
}

// Store 待重试标记存储
type Store struct {
	db *gorm.DB
}

// NewStore 创建存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 创建表
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&PendingTag{})
}

// Enqueue 登记一个待下发的标记，retryAt 之前 Reconciler 不会处理它
func (s *Store) Enqueue(ctx context.Context, runID int64, tag filestore.DeletionTag, retryAt time.Time) (string, error) {
	row := &PendingTag{
		ID:            id.NewEntityID(),
		BucketRef:     tag.BucketRef,
		ObjectKey:     tag.ObjectKey,
		TaggedAt:      tag.TaggedAt,
		RetentionDays: tag.RetentionDays,
		TenantID:      tag.TenantID,
		EntityKind:    tag.EntityKind,
		EntityID:      tag.EntityID,
		RunID:         runID,
		Status:        StatusPending,
		NextAttemptAt: retryAt,
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to enqueue pending file tag", err)
	}
	return row.ID, nil
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return repository.DBFromContext(ctx, s.db)
}

// Due 返回到期需要重试的标记
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]PendingTag, error) {
	var rows []PendingTag
	err := s.conn(ctx).
		Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to load pending file tags", err)
	}
	return rows, nil
}

// MarkDone 标记已完成
func (s *Store) MarkDone(ctx context.Context, tagID string) error {
	return s.update(ctx, tagID, map[string]any{"status": StatusDone, "last_error": ""})
}

// MarkFailed 记录失败；dead 为 true 时不再重试
func (s *Store) MarkFailed(ctx context.Context, tagID string, attempts int, cause error, next time.Time, dead bool) error {
	status := StatusPending
	if dead {
		status = StatusDead
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, tagID, map[string]any{
		"status":          status,
		"attempts":        attempts,
		"last_error":      msg,
		"next_attempt_at": next,
	})
}

// CountPending 待重试数量
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&PendingTag{}).Where("status = ?", StatusPending).Count(&n).Error; err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "failed to count pending file tags", err)
	}
	return n, nil
}

func (s *Store) update(ctx context.Context, tagID string, values map[string]any) error {
	result := s.conn(ctx).Model(&PendingTag{}).Where("id = ?", tagID).Updates(values)
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to update pending file tag", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "pending file tag not found")
	}
	return nil
}
