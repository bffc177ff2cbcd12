package repository

import (
	"context"

	"gorm.io/gorm"
)

/* ========================================================================
 * Transaction Context Helper
 * ========================================================================
 * 职责: 处理 Context 中的事务传递
 * ======================================================================== */

type ctxTxKey struct{}

// WithTx 将事务 DB 放入 ctx，之后使用该 ctx 的仓储调用共享事务
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, ctxTxKey{}, tx)
}

// TxFromContext 返回 ctx 中的事务 DB
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(ctxTxKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// DBFromContext 返回 ctx 中的事务 DB，没有则返回 db，二者均绑定 ctx
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	return getDBFromContext(ctx, db)
}

// getDBFromContext 尝试从 context 中获取事务 DB
// 如果 context 中存在事务，返回事务 DB；否则返回原始 DB
// 始终会将 context 绑定到返回的 DB 实例
func getDBFromContext(ctx context.Context, originalDB *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return originalDB.WithContext(ctx)
}
