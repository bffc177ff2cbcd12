package outbox

import (
	"context"

	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/logger"
)

// Module 提供 Store 与 Reconciler
var Module = fx.Module("outbox",
	fx.Provide(
		NewStore,
		ProvideReconciler,
	),
)

// ReconcilerModule 在生命周期内运行补偿循环
var ReconcilerModule = fx.Module("outbox-reconciler",
	fx.Invoke(func(lc fx.Lifecycle, r *Reconciler) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				r.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				r.Stop()
				return nil
			},
		})
	}),
)

// ReconcilerParams 依赖参数
type ReconcilerParams struct {
	fx.In

	Store  *Store
	Tagger filestore.Tagger
	Config Config
	Logger *logger.Logger
}

// ProvideReconciler 创建补偿器并确保表存在
func ProvideReconciler(p ReconcilerParams) (*Reconciler, error) {
	if err := p.Store.AutoMigrate(); err != nil {
		return nil, err
	}
	return NewReconciler(p.Store, p.Tagger, p.Config, p.Logger), nil
}
