package repository

import (
	"context"
)

/* ========================================================================
 * Repository Interfaces - 仓储接口定义
 * ========================================================================
 * 职责: 定义租户隔离的泛型仓储接口
 * 设计:
 *   - 条件只接受结构化 Filter，不接受原始 SQL
 *   - 每个方法都先经过 Interceptor
 *   - 写入通过 CheckAndApply / UpdateWhere 自动维护 version
 * ======================================================================== */

// Repository 租户实体仓储
type Repository[T any] interface {
	// Table 返回实体表名
	Table() string

	Create(ctx context.Context, model *T) error
	CreateBatch(ctx context.Context, models []*T, batchSize int) error

	FindByID(ctx context.Context, id string, opts ...Option) (*T, error)
	FindOne(ctx context.Context, filter Filter, opts ...Option) (*T, error)
	Find(ctx context.Context, filter Filter, opts ...Option) ([]*T, error)
	FindPage(ctx context.Context, page, pageSize int, filter Filter, opts ...Option) (*PageResult[T], error)
	Count(ctx context.Context, filter Filter, opts ...Option) (int64, error)
	Exists(ctx context.Context, filter Filter, opts ...Option) (bool, error)

	// UpdateWhere 按条件批量更新，每行 version +1，返回影响行数
	UpdateWhere(ctx context.Context, filter Filter, updates map[string]any) (int64, error)
	// CheckAndApply 基于版本号的单实体读-改-写
	CheckAndApply(ctx context.Context, token VersionToken, mutate func(*T) error) (*T, error)
	// SoftDeleteWhere 按条件软删除，每行 version +1，返回影响行数
	SoftDeleteWhere(ctx context.Context, filter Filter) (int64, error)

	// Transaction 在事务中执行 fn，fn 内使用 txCtx 调用的仓储方法共享事务
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// QueryOption 查询选项
type QueryOption struct {
	// Preloads 预加载关联（如 "Floors"），租户表关联自动带租户条件
	Preloads []string
	// OrderBy 排序（如 "create_time DESC"）
	OrderBy string
	// Select 选择字段
	Select []string
	// Limit 最大返回条数，0 表示不限制
	Limit int
	// WithDeleted 包含已软删除记录
	WithDeleted bool

	err error
}

// Option 应用查询选项
type Option func(*QueryOption)

// WithPreloads 设置预加载
func WithPreloads(preloads ...string) Option {
	return func(o *QueryOption) {
		o.Preloads = preloads
	}
}

// WithOrderBy 设置排序（非法值会使查询返回 InvalidArgument）
func WithOrderBy(orderBy string) Option {
	return func(o *QueryOption) {
		if err := ValidateOrderBy(orderBy); err != nil {
			o.err = err
			return
		}
		o.OrderBy = orderBy
	}
}

// WithSelect 设置选择字段（非法值会使查询返回 InvalidArgument）
func WithSelect(selects ...string) Option {
	return func(o *QueryOption) {
		if err := ValidateSelect(selects); err != nil {
			o.err = err
			return
		}
		o.Select = selects
	}
}

// WithLimit 限制返回条数
func WithLimit(limit int) Option {
	return func(o *QueryOption) {
		o.Limit = limit
	}
}

// WithDeleted 包含已软删除记录
func WithDeleted() Option {
	return func(o *QueryOption) {
		o.WithDeleted = true
	}
}

// ApplyOptions 应用查询选项
func ApplyOptions(opts []Option) *QueryOption {
	o := &QueryOption{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Err 返回选项校验错误
func (o *QueryOption) Err() error {
	return o.err
}
