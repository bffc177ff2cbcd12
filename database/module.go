package database

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/logger"
)

/* ========================================================================
 * Database Module
 * ========================================================================
 * 职责: 提供数据库依赖注入模块
 * ======================================================================== */

// Module 数据库模块
// 提供: *gorm.DB
var Module = fx.Module("database",
	fx.Provide(NewDB),
)

// Params 数据库依赖参数
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger
}

// NewDB 打开数据库并在应用停止时关闭连接池
func NewDB(p Params) (*gorm.DB, error) {
	db, err := Open(p.Config, p.Logger)
	if err != nil {
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}
