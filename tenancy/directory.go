package tenancy

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * Tenant Directory - 租户目录
 * ========================================================================
 * 职责: 租户记录与用户归属（home tenant）查询
 * 说明: tenants / tenant_memberships 为租户无关表，不经过租户过滤
 * ======================================================================== */

// Status 租户状态
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Usable 仅 active / trial 可以访问数据
func (s Status) Usable() bool {
	return s == StatusActive || s == StatusTrial
}

// Tenant 租户记录
type Tenant struct {
	ID         string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Status     Status    `gorm:"type:varchar(16);not null;index" json:"status"`
	CreateTime time.Time `gorm:"autoCreateTime" json:"create_time"`
	UpdateTime time.Time `gorm:"autoUpdateTime" json:"update_time"`
}

// TableName 表名
func (Tenant) TableName() string { return "tenants" }

// Membership 用户归属租户
type Membership struct {
	ActorID    string    `gorm:"primaryKey;type:varchar(64)" json:"actor_id"`
	TenantID   string    `gorm:"type:varchar(26);not null;index" json:"tenant_id"`
	CreateTime time.Time `gorm:"autoCreateTime" json:"create_time"`
}

// TableName 表名
func (Membership) TableName() string { return "tenant_memberships" }

// Directory 租户目录查询
// 租户不存在时返回 errors.ErrNotFound。
type Directory interface {
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
}

// Memberships 用户归属查询
// 用户没有归属时返回 errors.ErrNotFound。
type Memberships interface {
	HomeTenant(ctx context.Context, actorID string) (string, error)
}

// GormDirectory 基于 GORM 的租户目录
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory 创建租户目录
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// AutoMigrate 创建目录表
func (d *GormDirectory) AutoMigrate() error {
	return d.db.AutoMigrate(&Tenant{}, &Membership{})
}

// GetTenant 实现 Directory
func (d *GormDirectory) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := d.db.WithContext(ctx).Where("id = ?", tenantID).Take(&t).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to load tenant", err)
	}
	return &t, nil
}

// HomeTenant 实现 Memberships
func (d *GormDirectory) HomeTenant(ctx context.Context, actorID string) (string, error) {
	var m Membership
	err := d.db.WithContext(ctx).Where("actor_id = ?", actorID).Take(&m).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.ErrNotFound
		}
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to load membership", err)
	}
	return m.TenantID, nil
}

// SaveTenant 新增或更新租户
func (d *GormDirectory) SaveTenant(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "tenant id is empty")
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "status", "update_time"}),
	}).Create(t).Error
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to save tenant", err)
	}
	return nil
}

// SetStatus 修改租户状态
func (d *GormDirectory) SetStatus(ctx context.Context, tenantID string, status Status) error {
	result := d.db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", tenantID).Update("status", status)
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to update tenant status", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// AddMembership 设置用户的 home tenant
func (d *GormDirectory) AddMembership(ctx context.Context, actorID, tenantID string) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id"}),
	}).Create(&Membership{ActorID: actorID, TenantID: tenantID}).Error
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to save membership", err)
	}
	return nil
}
