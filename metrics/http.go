package metrics

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
)

// 未匹配路由统一记为 unmatched，避免原始路径撑爆标签
const unmatchedRoute = "unmatched"

// HTTPMiddleware 记录请求数与耗时，标签: method / route / status
// skip 返回 true 的请求不计数（如探活）
func HTTPMiddleware(skip func(fiber.Ctx) bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		if skip != nil && skip(c) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := strconv.Itoa(statusOf(c, err))
		route := routeOf(c)
		HTTPRequestTotal.WithLabelValues(c.Method(), route, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), route, status).Observe(time.Since(start).Seconds())
		return err
	}
}

// statusOf 错误尚未经过 ErrorHandler，状态码按错误推算
func statusOf(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return errors.HTTPStatus(err)
}

func routeOf(c fiber.Ctx) string {
	r := c.Route()
	if r == nil || r.Path == "" || r.Path == "/" {
		return unmatchedRoute
	}
	return r.Path
}
