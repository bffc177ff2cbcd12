package http

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

// Module 提供 *fiber.App 并随生命周期启动 / 停止
var Module = fx.Module("http",
	fx.Provide(NewHTTPServer),
	fx.Invoke(func(*fiber.App) {}),
)
