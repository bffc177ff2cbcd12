package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * CRUD Repository Implementation - CRUD 操作实现
 * ========================================================================
 * 职责: 实现 Repository 接口的创建与批量写入
 *
 * 使用示例:
 *   type Building struct {
 *       repository.TenantModel
 *       SiteID string `gorm:"column:site_id;type:varchar(26);index"`
 *       Name   string `gorm:"column:name;type:varchar(128)"`
 *   }
 *
 *   scope := repository.NewInterceptor(registry, log)
 *   repo := repository.NewRepository[Building](db, scope)
 *
 *   err := tenancy.Run(ctx, state, func(ctx context.Context) error {
 *       b := &Building{Name: "HQ"}
 *       if err := repo.Create(ctx, b); err != nil { // tenant_id 自动写入
 *           return err
 *       }
 *       _, err := repo.CheckAndApply(ctx, repository.NewVersionToken(b.ID, b.Version),
 *           func(b *Building) error { b.Name = "HQ-2"; return nil })
 *       return err
 *   })
 * ======================================================================== */

const (
	// DefaultBatchSize 默认批量操作大小
	DefaultBatchSize = 100
)

// tenantEntity 嵌入 TenantModel 的实体
type tenantEntity interface {
	tenantModel() *TenantModel
}

func (m *TenantModel) tenantModel() *TenantModel { return m }

// RepositoryImpl 仓储实现
type RepositoryImpl[T any] struct {
	db    *gorm.DB
	scope *Interceptor

	// Schema 缓存（线程安全）
	schemaOnce sync.Once
	schema     *schema.Schema
	schemaErr  error
}

// NewRepository 创建新的仓储实例
func NewRepository[T any](db *gorm.DB, scope *Interceptor) Repository[T] {
	return &RepositoryImpl[T]{db: db, scope: scope}
}

// GetDB 获取底层 GORM DB 实例
func (r *RepositoryImpl[T]) GetDB() *gorm.DB {
	return r.db
}

// Table 返回实体表名
func (r *RepositoryImpl[T]) Table() string {
	s, err := r.getSchema()
	if err != nil {
		return ""
	}
	return s.Table
}

// newModelPtr 创建新的模型指针
func (r *RepositoryImpl[T]) newModelPtr() *T {
	var model T
	return &model
}

// withContext 返回带 context 的 DB (自动识别事务)
func (r *RepositoryImpl[T]) withContext(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, r.db)
}

// getSchema 获取缓存的 Schema（线程安全）
func (r *RepositoryImpl[T]) getSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		r.schemaErr = stmt.Parse(r.newModelPtr())
		if r.schemaErr == nil {
			r.schema = stmt.Schema
		}
	})
	return r.schema, r.schemaErr
}

// scoped 授权并返回注入了租户条件的 DB
func (r *RepositoryImpl[T]) scoped(ctx context.Context, op Op, filter Filter) (*gorm.DB, Access, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, Access{}, errors.Wrap(errors.ErrCodeInternal, "failed to parse model schema", err)
	}
	if err := filter.validate(s); err != nil {
		return nil, Access{}, err
	}
	db := r.withContext(ctx).Model(r.newModelPtr())
	return r.scope.Scope(ctx, db, s.Table, op, filter)
}

/* ========================================================================
 * Create 操作
 * ======================================================================== */

// Create 创建单条记录，tenant_id 取自上下文并覆盖传入值
func (r *RepositoryImpl[T]) Create(ctx context.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}
	if err := r.prepareCreate(ctx, []*T{model}); err != nil {
		return err
	}
	if err := r.withContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to create record", err)
	}
	return nil
}

// CreateBatch 批量创建记录
func (r *RepositoryImpl[T]) CreateBatch(ctx context.Context, models []*T, batchSize int) error {
	if len(models) == 0 {
		return errors.ErrInvalidArgument
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	// 过滤 nil 模型
	validModels := make([]*T, 0, len(models))
	for _, m := range models {
		if m != nil {
			validModels = append(validModels, m)
		}
	}

	if len(validModels) == 0 {
		return nil
	}

	if err := r.prepareCreate(ctx, validModels); err != nil {
		return err
	}
	if err := r.withContext(ctx).CreateInBatches(validModels, batchSize).Error; err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to create records", err)
	}
	return nil
}

// prepareCreate 写入租户并重置版本与删除标记
func (r *RepositoryImpl[T]) prepareCreate(ctx context.Context, models []*T) error {
	s, err := r.getSchema()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to parse model schema", err)
	}
	tenantID, err := r.scope.StampTenant(ctx, s.Table)
	if err != nil {
		return err
	}

	for _, model := range models {
		entity, ok := any(model).(tenantEntity)
		if !ok {
			if tenantID != "" {
				return errors.New(errors.ErrCodeInvalidArgument, "tenant table model must embed TenantModel: "+s.Table)
			}
			continue
		}
		base := entity.tenantModel()
		if tenantID != "" {
			base.TenantID = tenantID
		}
		base.Version = 0
		base.IsDeleted = 0
	}
	return nil
}

/* ========================================================================
 * Update 操作
 * ======================================================================== */

// UpdateWhere 按条件批量更新，受保护列不可写
func (r *RepositoryImpl[T]) UpdateWhere(ctx context.Context, filter Filter, updates map[string]any) (int64, error) {
	if len(updates) == 0 {
		return 0, errors.ErrInvalidArgument
	}

	// 过滤非法字段，防止注入/批量赋值漏洞
	filtered, err := r.filterUpdates(updates)
	if err != nil {
		return 0, err
	}

	db, _, err := r.scoped(ctx, OpUpdate, filter)
	if err != nil {
		return 0, err
	}

	filtered[ColumnVersion] = gorm.Expr(ColumnVersion + " + ?", 1)
	result := db.Updates(filtered)
	if result.Error != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "failed to update records", result.Error)
	}
	return result.RowsAffected, nil
}

// filterUpdates 校验更新列，拒绝未知列与受保护列
func (r *RepositoryImpl[T]) filterUpdates(updates map[string]any) (map[string]any, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to parse model schema", err)
	}

	filtered := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		field, ok := s.FieldsByDBName[k]
		if !ok {
			// 尝试匹配结构体字段名 (Struct Field Name)
			field, ok = s.FieldsByName[k]
		}
		if !ok || field.DBName == "" {
			return nil, errors.New(errors.ErrCodeInvalidArgument, "unknown update column: "+k)
		}
		if _, protected := protectedColumns[field.DBName]; protected || field.PrimaryKey || !field.Updatable {
			return nil, errors.New(errors.ErrCodeInvalidArgument, "column is not updatable: "+field.DBName)
		}
		filtered[field.DBName] = v
	}
	return filtered, nil
}

/* ========================================================================
 * Delete 操作
 * ======================================================================== */

// SoftDeleteWhere 按条件软删除，已删除的行不受影响
func (r *RepositoryImpl[T]) SoftDeleteWhere(ctx context.Context, filter Filter) (int64, error) {
	db, _, err := r.scoped(ctx, OpDelete, filter)
	if err != nil {
		return 0, err
	}

	result := db.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: ColumnIsDeleted}, Value: 0}).
		Updates(map[string]any{
			ColumnIsDeleted: 1,
			ColumnVersion:   gorm.Expr(ColumnVersion + " + ?", 1),
		})
	if result.Error != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "failed to delete records", result.Error)
	}
	return result.RowsAffected, nil
}
