package model

import (
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Hierarchy Entities - 层级实体
 * ========================================================================
 * 层级: Customer -> Site -> Building -> Floor -> {Asset, Document, OccupantTenant}
 * 规则:
 *   - 每层保存直接父级 ID 与冗余的祖先 ID（customer_id / site_id / building_id）
 *   - Asset / OccupantTenant 可直接挂在 Building 下（floor_id 为 NULL）
 *   - Asset / Document 可携带文件引用
 * ======================================================================== */

// FileRef 对象存储中的文件引用
type FileRef struct {
	FileBucket string `json:"file_bucket,omitempty" gorm:"column:file_bucket;type:varchar(128);comment:存储桶"`
	FileKey    string `json:"file_key,omitempty" gorm:"column:file_key;type:varchar(512);comment:对象键"`
}

// HasFile 是否携带文件
func (f FileRef) HasFile() bool {
	return f.FileBucket != "" && f.FileKey != ""
}

// Customer 客户
type Customer struct {
	repository.TenantModel
	Name string `json:"name" gorm:"column:name;type:varchar(128);not null"`
}

func (Customer) TableName() string { return TableCustomers }

// Site 园区
type Site struct {
	repository.TenantModel
	CustomerID string `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	Name       string `json:"name" gorm:"column:name;type:varchar(128);not null"`
}

func (Site) TableName() string { return TableSites }

// Building 楼宇
type Building struct {
	repository.TenantModel
	CustomerID string `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	SiteID     string `json:"site_id" gorm:"column:site_id;type:varchar(26);not null;index"`
	Name       string `json:"name" gorm:"column:name;type:varchar(128);not null"`
}

func (Building) TableName() string { return TableBuildings }

// Floor 楼层
type Floor struct {
	repository.TenantModel
	CustomerID string `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	SiteID     string `json:"site_id" gorm:"column:site_id;type:varchar(26);not null;index"`
	BuildingID string `json:"building_id" gorm:"column:building_id;type:varchar(26);not null;index"`
	Level      int    `json:"level" gorm:"column:level;not null;default:0"`
	Name       string `json:"name" gorm:"column:name;type:varchar(128)"`
}

func (Floor) TableName() string { return TableFloors }

// Asset 设备资产
type Asset struct {
	repository.TenantModel
	CustomerID string  `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	SiteID     string  `json:"site_id" gorm:"column:site_id;type:varchar(26);not null;index"`
	BuildingID string  `json:"building_id" gorm:"column:building_id;type:varchar(26);not null;index"`
	FloorID    *string `json:"floor_id,omitempty" gorm:"column:floor_id;type:varchar(26);index"`
	Name       string  `json:"name" gorm:"column:name;type:varchar(128);not null"`
	FileRef
}

func (Asset) TableName() string { return TableAssets }

// Document 楼层文档
type Document struct {
	repository.TenantModel
	CustomerID string `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	SiteID     string `json:"site_id" gorm:"column:site_id;type:varchar(26);not null;index"`
	BuildingID string `json:"building_id" gorm:"column:building_id;type:varchar(26);not null;index"`
	FloorID    string `json:"floor_id" gorm:"column:floor_id;type:varchar(26);not null;index"`
	Title      string `json:"title" gorm:"column:title;type:varchar(255);not null"`
	FileRef
}

func (Document) TableName() string { return TableDocuments }

// OccupantTenant 入驻单位
type OccupantTenant struct {
	repository.TenantModel
	CustomerID string  `json:"customer_id" gorm:"column:customer_id;type:varchar(26);not null;index"`
	SiteID     string  `json:"site_id" gorm:"column:site_id;type:varchar(26);not null;index"`
	BuildingID string  `json:"building_id" gorm:"column:building_id;type:varchar(26);not null;index"`
	FloorID    *string `json:"floor_id,omitempty" gorm:"column:floor_id;type:varchar(26);index"`
	Name       string  `json:"name" gorm:"column:name;type:varchar(128);not null"`
}

func (OccupantTenant) TableName() string { return TableOccupantTenants }
