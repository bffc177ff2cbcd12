package repository

import (
	"context"
	"database/sql"
	"math"

	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * Page Repository Implementation - 分页查询实现
 * ========================================================================
 * 职责: 在同一快照内统计总数并取当前页
 * ======================================================================== */

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

// PageResult 分页结果
type PageResult[T any] struct {
	List     []*T  `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}

// FindPage 分页查询
func (r *RepositoryImpl[T]) FindPage(ctx context.Context, page, pageSize int, filter Filter, opts ...Option) (*PageResult[T], error) {
	// 参数校验
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize // 限制最大页大小
	}

	var result *PageResult[T]
	run := func(tx *gorm.DB) error {
		txCtx := WithTx(ctx, tx)

		countDB, _, err := r.buildQuery(txCtx, filter, opts)
		if err != nil {
			return err
		}
		var total int64
		if err := countDB.Count(&total).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to count records", err)
		}

		listDB, _, err := r.buildQuery(txCtx, filter, opts)
		if err != nil {
			return err
		}
		var list []*T
		if err := listDB.Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to find records", err)
		}

		result = &PageResult[T]{
			List:     list,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Pages:    int64(math.Ceil(float64(total) / float64(pageSize))),
		}
		return nil
	}

	db := r.withContext(ctx)
	if _, inTx := TxFromContext(ctx); inTx {
		if err := run(db); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := db.Transaction(run, snapshotTxOptions(db)); err != nil {
		return nil, err
	}
	return result, nil
}

// snapshotTxOptions sqlite 只有串行化事务，不设置隔离级别
func snapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
