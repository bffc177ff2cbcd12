package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * Query Repository Implementation - 查询操作实现
 * ========================================================================
 * 职责: 实现 Repository 接口的读操作，全部经过租户拦截
 * ======================================================================== */

// buildQuery 构建查询
func (r *RepositoryImpl[T]) buildQuery(ctx context.Context, filter Filter, opts []Option) (*gorm.DB, *QueryOption, error) {
	opt := ApplyOptions(opts)
	if err := opt.Err(); err != nil {
		return nil, opt, err
	}

	db, access, err := r.scoped(ctx, OpRead, filter)
	if err != nil {
		return nil, opt, err
	}

	if opt.WithDeleted {
		db = db.Unscoped()
	}

	// 应用选择字段
	if len(opt.Select) > 0 {
		db = db.Select(opt.Select)
	}

	// 应用排序
	if opt.OrderBy != "" {
		db = db.Order(opt.OrderBy)
	}

	// 应用预加载（租户表关联同样限定在当前租户）
	for _, preload := range opt.Preloads {
		if access.Filtered() {
			tenantID := access.TenantID
			db = db.Preload(preload, func(tx *gorm.DB) *gorm.DB {
				return tx.Where(ColumnTenantID+" = ?", tenantID)
			})
			continue
		}
		db = db.Preload(preload)
	}

	return db, opt, nil
}

/* ========================================================================
 * FindByID 操作
 * ======================================================================== */

// FindByID 根据 ID 查找当前租户内的记录
func (r *RepositoryImpl[T]) FindByID(ctx context.Context, id string, opts ...Option) (*T, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "id is required")
	}
	return r.FindOne(ctx, Eq(ColumnID, id), opts...)
}

/* ========================================================================
 * FindOne / Find 操作
 * ======================================================================== */

// FindOne 查找单条记录
func (r *RepositoryImpl[T]) FindOne(ctx context.Context, filter Filter, opts ...Option) (*T, error) {
	db, _, err := r.buildQuery(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	model := r.newModelPtr()
	if err := db.Take(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrCodeNotFound, "record not found")
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to find record", err)
	}

	return model, nil
}

// Find 查找多条记录
func (r *RepositoryImpl[T]) Find(ctx context.Context, filter Filter, opts ...Option) ([]*T, error) {
	db, opt, err := r.buildQuery(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if opt.Limit > 0 {
		db = db.Limit(opt.Limit)
	}

	var models []*T
	if err := db.Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to find records", err)
	}

	return models, nil
}

/* ========================================================================
 * Count/Exists 操作
 * ======================================================================== */

// Count 统计记录数
func (r *RepositoryImpl[T]) Count(ctx context.Context, filter Filter, opts ...Option) (int64, error) {
	db, _, err := r.buildQuery(ctx, filter, opts)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "failed to count records", err)
	}

	return count, nil
}

// Exists 检查记录是否存在
func (r *RepositoryImpl[T]) Exists(ctx context.Context, filter Filter, opts ...Option) (bool, error) {
	count, err := r.Count(ctx, filter, opts...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
