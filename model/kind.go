package model

import (
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/repository"
)

// Kind 层级实体种类
type Kind string

const (
	KindCustomer       Kind = "customer"
	KindSite           Kind = "site"
	KindBuilding       Kind = "building"
	KindFloor          Kind = "floor"
	KindAsset          Kind = "asset"
	KindDocument       Kind = "document"
	KindOccupantTenant Kind = "occupant_tenant"
)

// 表名
const (
	TableCustomers       = "customers"
	TableSites           = "sites"
	TableBuildings       = "buildings"
	TableFloors          = "floors"
	TableAssets          = "assets"
	TableDocuments       = "documents"
	TableOccupantTenants = "occupant_tenants"

	TableTenants         = "tenants"
	TableMemberships     = "tenant_memberships"
	TablePendingFileTags = "pending_file_tags"
)

var kindTables = map[Kind]string{
	KindCustomer:       TableCustomers,
	KindSite:           TableSites,
	KindBuilding:       TableBuildings,
	KindFloor:          TableFloors,
	KindAsset:          TableAssets,
	KindDocument:       TableDocuments,
	KindOccupantTenant: TableOccupantTenants,
}

// Table 返回种类对应的表名
func (k Kind) Table() string {
	return kindTables[k]
}

// KindOfTable 按表名（即集合路径段）查找种类
func KindOfTable(table string) (Kind, bool) {
	for k, t := range kindTables {
		if t == table {
			return k, true
		}
	}
	return "", false
}

// Valid 是否为已知种类
func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// FileBearing 该种类是否可能携带文件
func (k Kind) FileBearing() bool {
	return k == KindAsset || k == KindDocument
}

// ScopedTables 所有按租户隔离的层级表
func ScopedTables() []string {
	return []string{
		TableCustomers, TableSites, TableBuildings, TableFloors,
		TableAssets, TableDocuments, TableOccupantTenants,
	}
}

// GlobalTables 显式声明的租户无关表
func GlobalTables() []string {
	return []string{TableTenants, TableMemberships, TablePendingFileTags}
}

// NewRegistry 层级表与全局表的作用域注册表
func NewRegistry() *repository.Registry {
	return repository.MustRegistry(ScopedTables(), GlobalTables())
}

// All 所有层级模型（用于迁移）
func All() []any {
	return []any{
		&Customer{}, &Site{}, &Building{}, &Floor{},
		&Asset{}, &Document{}, &OccupantTenant{},
	}
}

// AutoMigrate 创建层级表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
