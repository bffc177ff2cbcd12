package repository

import (
	"context"
	"reflect"
	"time"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/metrics"
)

/* ========================================================================
 * Version Conflict Guard - 乐观并发控制
 * ========================================================================
 * 职责: 以客户端读取时的版本号作为写入前提
 * 流程:
 *   1. 无版本号        -> PreconditionRequired
 *   2. 租户内加载实体  -> NotFound
 *   3. 版本不一致      -> VersionConflict（附带双方版本）
 *   4. 应用修改，单条条件 UPDATE，0 行 -> 重新读取并返回 VersionConflict
 * 规则:
 *   - 版本号只增不减，成功写入恰好 +1
 *   - 不持有锁，不自动重试
 * ======================================================================== */

// VersionToken 客户端提交的版本前提
type VersionToken struct {
	ResourceID string
	Version    *int64
}

// NewVersionToken 创建带版本号的令牌
func NewVersionToken(resourceID string, version int64) VersionToken {
	return VersionToken{ResourceID: resourceID, Version: &version}
}

// HasVersion 是否携带版本号
func (t VersionToken) HasVersion() bool {
	return t.Version != nil
}

// CheckAndApply 基于版本号的读-改-写
func (r *RepositoryImpl[T]) CheckAndApply(ctx context.Context, token VersionToken, mutate func(*T) error) (*T, error) {
	if !token.HasVersion() {
		return nil, errors.ErrPreconditionRequired.WithDetail(errors.DetailResourceID, token.ResourceID)
	}
	if mutate == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "mutator is required")
	}
	client := *token.Version

	current, err := r.FindByID(ctx, token.ResourceID)
	if err != nil {
		return nil, err
	}
	entity, ok := any(current).(tenantEntity)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "versioned model must embed TenantModel: "+r.Table())
	}
	base := entity.tenantModel()
	if base.Version != client {
		return nil, r.conflict(token.ResourceID, client, base.Version)
	}

	origID, origTenant := base.ID, base.TenantID
	if err := mutate(current); err != nil {
		return nil, err
	}
	if base.ID != origID || base.TenantID != origTenant {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "id and tenant_id are immutable")
	}

	updates, err := r.columnValues(ctx, current)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	updates[ColumnVersion] = client + 1
	updates[ColumnUpdateTime] = now

	db, _, err := r.scoped(ctx, OpUpdate, Filter{
		ColumnID:        origID,
		ColumnTenantID:  origTenant,
		ColumnVersion:   client,
		ColumnIsDeleted: 0,
	})
	if err != nil {
		return nil, err
	}
	result := db.Updates(updates)
	if result.Error != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to update record", result.Error)
	}

	if result.RowsAffected == 0 {
		latest, err := r.FindByID(ctx, origID)
		if err != nil {
			return nil, err
		}
		return nil, r.conflict(origID, client, any(latest).(tenantEntity).tenantModel().Version)
	}

	base.Version = client + 1
	base.UpdateTime = now
	return current, nil
}

func (r *RepositoryImpl[T]) conflict(resourceID string, client, current int64) error {
	metrics.VersionConflictTotal.WithLabelValues(r.Table()).Inc()
	return errors.NewVersionConflict(resourceID, client, current)
}

// columnValues 收集可由业务修改的列值
func (r *RepositoryImpl[T]) columnValues(ctx context.Context, model *T) (map[string]any, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to parse model schema", err)
	}

	rv := reflect.Indirect(reflect.ValueOf(model))
	values := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		if field.DBName == "" || field.PrimaryKey || !field.Updatable {
			continue
		}
		if _, protected := protectedColumns[field.DBName]; protected {
			continue
		}
		v, _ := field.ValueOf(ctx, rv)
		values[field.DBName] = v
	}
	return values, nil
}
