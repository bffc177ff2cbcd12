package middleware

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/response"
)

// NewErrorHandler 统一错误输出：5xx 记录 Error，4xx 记录 Debug
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		// Fiber 自身的错误（404 路由、405 等）
		if fe, ok := err.(*fiber.Error); ok {
			if _, isBiz := errors.AsBizError(err); !isBiz {
				return c.Status(fe.Code).JSON(response.Result{Code: fe.Code, Msg: fe.Message, Data: &struct{}{}})
			}
		}

		l := log.WithContext(c.Context()).With(
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("code", int(errors.Code(err))),
			zap.Error(err),
		)
		if status := errors.HTTPStatus(err); status >= fiber.StatusInternalServerError {
			l.Error("request failed")
		} else {
			l.Debug("request rejected")
		}
		return response.Error(c, err)
	}
}
