package model

import (
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/repository"
)

// Module 提供作用域注册表、拦截器与层级仓储
var Module = fx.Module("model",
	fx.Provide(
		NewRegistry,
		func(reg *repository.Registry, log *logger.Logger) *repository.Interceptor {
			return repository.NewInterceptor(reg, log)
		},
		NewHierarchy,
	),
)
