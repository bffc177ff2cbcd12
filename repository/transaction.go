package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
)

/* ========================================================================
 * Transaction Repository Implementation - 事务支持实现
 * ======================================================================== */

// Transaction 在事务中执行操作
// 如果 fn 返回错误，事务将回滚；否则提交。
// 已处于事务中时使用 SAVEPOINT 嵌套。
func (r *RepositoryImpl[T]) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return RunInTx(ctx, r.db, fn)
}

// RunInTx 在事务中执行 fn，业务错误原样返回
func RunInTx(ctx context.Context, db *gorm.DB, fn func(txCtx context.Context) error) error {
	err := getDBFromContext(ctx, db).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, "transaction failed", err)
}
