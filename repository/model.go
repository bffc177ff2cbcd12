package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/soft_delete"

	"github.com/aisgo/ais-tenancy/id"
)

/* ========================================================================
 * Tenant Model - 租户实体基础模型
 * ========================================================================
 * 职责: 定义所有租户实体的公共字段
 * 字段:
 *   - TenantID 仅创建时写入（<-:create），任何更新都不会修改
 *   - Version 从 0 开始，每次成功写入 +1
 *   - IsDeleted 软删除标记（soft_delete flag 模式，1=已删除）
 * ======================================================================== */

// 公共列名
const (
	ColumnID         = "id"
	ColumnTenantID   = "tenant_id"
	ColumnVersion    = "version"
	ColumnIsDeleted  = "is_deleted"
	ColumnCreateTime = "create_time"
	ColumnUpdateTime = "update_time"
)

// protectedColumns 只能由仓储自身维护的列
var protectedColumns = map[string]struct{}{
	ColumnID:         {},
	ColumnTenantID:   {},
	ColumnVersion:    {},
	ColumnIsDeleted:  {},
	ColumnCreateTime: {},
	ColumnUpdateTime: {},
}

// TenantModel 租户实体基类
type TenantModel struct {
	ID         string                `json:"id" gorm:"column:id;type:varchar(26);primaryKey;comment:主键ID"`
	TenantID   string                `json:"tenant_id" gorm:"column:tenant_id;type:varchar(26);not null;index;<-:create;comment:租户ID"`
	Version    int64                 `json:"version" gorm:"column:version;not null;default:0;comment:版本号"`
	IsDeleted  soft_delete.DeletedAt `json:"-" gorm:"column:is_deleted;not null;default:0;softDelete:flag;comment:软删除标记(1=已删除)"`
	CreateTime time.Time             `json:"create_time" gorm:"column:create_time;autoCreateTime;comment:创建时间"`
	UpdateTime time.Time             `json:"update_time" gorm:"column:update_time;autoUpdateTime;comment:更新时间"`
}

// BeforeCreate GORM 钩子：未指定 ID 时生成 ULID
func (m *TenantModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = id.NewEntityID()
	}
	return nil
}

// Deleted 是否已软删除
func (m TenantModel) Deleted() bool {
	return m.IsDeleted != 0
}
