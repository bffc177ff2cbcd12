package api

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

// Module 注册层级接口路由
var Module = fx.Module("api",
	fx.Provide(NewHandler),
	fx.Invoke(func(app *fiber.App, h *Handler) { h.Register(app) }),
)
