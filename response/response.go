package response

import (
	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Response - 统一响应处理
 * ========================================================================
 * 职责: 输出 {code, msg, data} 格式的 JSON
 * 规则:
 *   - 成功 code = 0
 *   - 业务错误使用 BizError 的错误码与 HTTP 状态，details 放入 data
 *   - 非业务错误统一 500，不暴露内部信息
 * ======================================================================== */

func emptyData(data any) any {
	if data == nil {
		return &struct{}{}
	}
	return data
}

// Ok 成功响应
func Ok(c fiber.Ctx) error {
	return OkWithData(c, nil)
}

// OkWithData 成功响应（带数据）
func OkWithData(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Result{Code: 0, Msg: "ok", Data: emptyData(data)})
}

// Created 创建成功
func Created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Result{Code: 0, Msg: "created", Data: emptyData(data)})
}

// PageData 分页响应
func PageData[T any](c fiber.Ctx, page *repository.PageResult[T]) error {
	return OkWithData(c, Page{
		List:     page.List,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Pages:    int(page.Pages),
	})
}

// Error 错误响应
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return Ok(c)
	}
	status, body := errors.ToHTTPResponse(err)
	code, _ := body["code"].(int)
	msg, _ := body["msg"].(string)
	return c.Status(status).JSON(Result{Code: code, Msg: msg, Data: emptyData(body["data"])})
}
