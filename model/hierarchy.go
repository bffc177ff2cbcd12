package model

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Hierarchy - 层级实体的创建入口
 * ========================================================================
 * 职责: 子实体只能通过父实体创建
 * 规则:
 *   - 父实体在当前租户内加载，不可见即 NotFound
 *   - 父实体必须属于子实体将被写入的租户（bypass 下读取不过滤）
 *   - 子实体复制父实体的租户与祖先 ID，无法产生孤儿
 * ======================================================================== */

// Hierarchy 层级仓储集合
type Hierarchy struct {
	Customers       repository.Repository[Customer]
	Sites           repository.Repository[Site]
	Buildings       repository.Repository[Building]
	Floors          repository.Repository[Floor]
	Assets          repository.Repository[Asset]
	Documents       repository.Repository[Document]
	OccupantTenants repository.Repository[OccupantTenant]

	scope *repository.Interceptor
}

// HierarchyParams fx 注入参数
type HierarchyParams struct {
	fx.In

	DB    *gorm.DB
	Scope *repository.Interceptor
}

// NewHierarchy 创建层级仓储
func NewHierarchy(p HierarchyParams) *Hierarchy {
	return &Hierarchy{
		Customers:       repository.NewRepository[Customer](p.DB, p.Scope),
		Sites:           repository.NewRepository[Site](p.DB, p.Scope),
		Buildings:       repository.NewRepository[Building](p.DB, p.Scope),
		Floors:          repository.NewRepository[Floor](p.DB, p.Scope),
		Assets:          repository.NewRepository[Asset](p.DB, p.Scope),
		Documents:       repository.NewRepository[Document](p.DB, p.Scope),
		OccupantTenants: repository.NewRepository[OccupantTenant](p.DB, p.Scope),
		scope:           p.Scope,
	}
}

func create[T any](ctx context.Context, repo repository.Repository[T], child *T) (*T, error) {
	if err := repo.Create(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

// sameTenant 子实体落入的租户必须与父实体一致，否则视为父实体不可见
func (h *Hierarchy) sameTenant(ctx context.Context, childTable string, parent repository.TenantModel) error {
	tenantID, err := h.scope.StampTenant(ctx, childTable)
	if err != nil {
		return err
	}
	if tenantID != "" && tenantID != parent.TenantID {
		return errors.ErrNotFound.WithDetail(errors.DetailResourceID, parent.ID)
	}
	return nil
}

func inherit(parent repository.TenantModel) repository.TenantModel {
	return repository.TenantModel{TenantID: parent.TenantID}
}

/* ========================================================================
 * 纯构造函数：复制租户与祖先 ID
 * ======================================================================== */

// NewSite 在客户下构造园区
func NewSite(parent *Customer, name string) *Site {
	return &Site{TenantModel: inherit(parent.TenantModel), CustomerID: parent.ID, Name: name}
}

// NewBuilding 在园区下构造楼宇
func NewBuilding(parent *Site, name string) *Building {
	return &Building{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.ID,
		Name:        name,
	}
}

// NewFloor 在楼宇下构造楼层
func NewFloor(parent *Building, level int, name string) *Floor {
	return &Floor{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.ID,
		Level:       level,
		Name:        name,
	}
}

// NewBuildingAsset 构造直接挂在楼宇下的资产
func NewBuildingAsset(parent *Building, name string, file FileRef) *Asset {
	return &Asset{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.ID,
		Name:        name,
		FileRef:     file,
	}
}

// NewFloorAsset 构造楼层资产
func NewFloorAsset(parent *Floor, name string, file FileRef) *Asset {
	floorID := parent.ID
	return &Asset{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.BuildingID,
		FloorID:     &floorID,
		Name:        name,
		FileRef:     file,
	}
}

// NewDocument 构造楼层文档
func NewDocument(parent *Floor, title string, file FileRef) *Document {
	return &Document{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.BuildingID,
		FloorID:     parent.ID,
		Title:       title,
		FileRef:     file,
	}
}

// NewBuildingOccupant 构造直接入驻楼宇的单位
func NewBuildingOccupant(parent *Building, name string) *OccupantTenant {
	return &OccupantTenant{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.ID,
		Name:        name,
	}
}

// NewFloorOccupant 构造楼层入驻单位
func NewFloorOccupant(parent *Floor, name string) *OccupantTenant {
	floorID := parent.ID
	return &OccupantTenant{
		TenantModel: inherit(parent.TenantModel),
		CustomerID:  parent.CustomerID,
		SiteID:      parent.SiteID,
		BuildingID:  parent.BuildingID,
		FloorID:     &floorID,
		Name:        name,
	}
}

/* ========================================================================
 * 持久化入口：先在租户内加载父实体
 * ======================================================================== */

// CreateCustomer 创建客户
func (h *Hierarchy) CreateCustomer(ctx context.Context, name string) (*Customer, error) {
	return create(ctx, h.Customers, &Customer{Name: name})
}

// AddSite 在客户下创建园区
func (h *Hierarchy) AddSite(ctx context.Context, customerID, name string) (*Site, error) {
	parent, err := h.Customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableSites, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewSite(parent, name)
	return create(ctx, h.Sites, child)
}

// AddBuilding 在园区下创建楼宇
func (h *Hierarchy) AddBuilding(ctx context.Context, siteID, name string) (*Building, error) {
	parent, err := h.Sites.FindByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableBuildings, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewBuilding(parent, name)
	return create(ctx, h.Buildings, child)
}

// AddFloor 在楼宇下创建楼层
func (h *Hierarchy) AddFloor(ctx context.Context, buildingID string, level int, name string) (*Floor, error) {
	parent, err := h.Buildings.FindByID(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableFloors, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewFloor(parent, level, name)
	return create(ctx, h.Floors, child)
}

// AddBuildingAsset 在楼宇下直接创建资产
func (h *Hierarchy) AddBuildingAsset(ctx context.Context, buildingID, name string, file FileRef) (*Asset, error) {
	parent, err := h.Buildings.FindByID(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableAssets, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewBuildingAsset(parent, name, file)
	return create(ctx, h.Assets, child)
}

// AddFloorAsset 在楼层下创建资产
func (h *Hierarchy) AddFloorAsset(ctx context.Context, floorID, name string, file FileRef) (*Asset, error) {
	parent, err := h.Floors.FindByID(ctx, floorID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableAssets, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewFloorAsset(parent, name, file)
	return create(ctx, h.Assets, child)
}

// AddDocument 在楼层下创建文档
func (h *Hierarchy) AddDocument(ctx context.Context, floorID, title string, file FileRef) (*Document, error) {
	parent, err := h.Floors.FindByID(ctx, floorID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableDocuments, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewDocument(parent, title, file)
	return create(ctx, h.Documents, child)
}

// AddBuildingOccupant 在楼宇下直接创建入驻单位
func (h *Hierarchy) AddBuildingOccupant(ctx context.Context, buildingID, name string) (*OccupantTenant, error) {
	parent, err := h.Buildings.FindByID(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableOccupantTenants, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewBuildingOccupant(parent, name)
	return create(ctx, h.OccupantTenants, child)
}

// AddFloorOccupant 在楼层下创建入驻单位
func (h *Hierarchy) AddFloorOccupant(ctx context.Context, floorID, name string) (*OccupantTenant, error) {
	parent, err := h.Floors.FindByID(ctx, floorID)
	if err != nil {
		return nil, err
	}
	if err := h.sameTenant(ctx, TableOccupantTenants, parent.TenantModel); err != nil {
		return nil, err
	}
	child := NewFloorOccupant(parent, name)
	return create(ctx, h.OccupantTenants, child)
}
