package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"

	"github.com/aisgo/ais-tenancy/cascade"
	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/id"
	"github.com/aisgo/ais-tenancy/middleware"
	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/repository"
	"github.com/aisgo/ais-tenancy/response"
	"github.com/aisgo/ais-tenancy/validator"
)

/* ========================================================================
 * Hierarchy API
 * ========================================================================
 * 职责: 层级实体的创建、查询、带版本的修改与级联删除
 * 说明: 租户由中间件绑定到请求 context，处理函数只使用 c.Context()
 * ======================================================================== */

// Handler 层级接口
type Handler struct {
	hier     *model.Hierarchy
	engine   *cascade.Engine
	validate *validator.Validator
}

// Params 依赖参数
type Params struct {
	fx.In

	Hierarchy *model.Hierarchy
	Engine    *cascade.Engine
}

// NewHandler 创建处理器
func NewHandler(p Params) *Handler {
	return &Handler{hier: p.Hierarchy, engine: p.Engine, validate: validator.New()}
}

// Register 注册路由
func (h *Handler) Register(app *fiber.App) {
	v1 := app.Group("/v1")

	v1.Post("/customers", h.createCustomer)
	v1.Post("/customers/:id/sites", h.addSite)
	v1.Post("/sites/:id/buildings", h.addBuilding)
	v1.Post("/buildings/:id/floors", h.addFloor)
	v1.Get("/buildings/:id/floors", h.listFloors)
	v1.Post("/floors/:id/assets", h.addFloorAsset)
	v1.Get("/floors/:id", h.getFloor)
	v1.Patch("/floors/:id", h.updateFloor)
	v1.Delete("/:collection/:id", h.delete)
}

type nameRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

type floorRequest struct {
	Level int    `json:"level"`
	Name  string `json:"name" validate:"max=128"`
}

type assetRequest struct {
	Name       string `json:"name" validate:"required,max=128"`
	FileBucket string `json:"file_bucket" validate:"required_with=FileKey"`
	FileKey    string `json:"file_key" validate:"required_with=FileBucket"`
}

type floorPatch struct {
	Name    *string `json:"name" validate:"omitempty,max=128"`
	Level   *int    `json:"level"`
	Version *int64  `json:"version"`
}

// bind 解析并校验请求体
func (h *Handler) bind(c fiber.Ctx, out any) error {
	if err := c.Bind().JSON(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	if err := h.validate.Validate(out); err != nil {
		if ve, ok := err.(*validator.ValidationError); ok {
			return ve.BizError()
		}
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

func (h *Handler) createCustomer(c fiber.Ctx) error {
	var req nameRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	customer, err := h.hier.CreateCustomer(c.Context(), req.Name)
	if err != nil {
		return err
	}
	middleware.SetVersion(c, customer.Version)
	return response.Created(c, customer)
}

func (h *Handler) addSite(c fiber.Ctx) error {
	var req nameRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	site, err := h.hier.AddSite(c.Context(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	middleware.SetVersion(c, site.Version)
	return response.Created(c, site)
}

func (h *Handler) addBuilding(c fiber.Ctx) error {
	var req nameRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	building, err := h.hier.AddBuilding(c.Context(), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	middleware.SetVersion(c, building.Version)
	return response.Created(c, building)
}

func (h *Handler) addFloor(c fiber.Ctx) error {
	var req floorRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	floor, err := h.hier.AddFloor(c.Context(), c.Params("id"), req.Level, req.Name)
	if err != nil {
		return err
	}
	middleware.SetVersion(c, floor.Version)
	return response.Created(c, floor)
}

func (h *Handler) addFloorAsset(c fiber.Ctx) error {
	var req assetRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	asset, err := h.hier.AddFloorAsset(c.Context(), c.Params("id"), req.Name, model.FileRef{FileBucket: req.FileBucket, FileKey: req.FileKey})
	if err != nil {
		return err
	}
	middleware.SetVersion(c, asset.Version)
	return response.Created(c, asset)
}

func (h *Handler) getFloor(c fiber.Ctx) error {
	floorID, err := pathID(c)
	if err != nil {
		return err
	}
	floor, err := h.hier.Floors.FindByID(c.Context(), floorID)
	if err != nil {
		return err
	}
	middleware.SetVersion(c, floor.Version)
	return response.OkWithData(c, floor)
}

func (h *Handler) listFloors(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.hier.Floors.FindPage(c.Context(), page, size,
		repository.Filter{"building_id": c.Params("id")},
		repository.WithOrderBy("level ASC"),
	)
	if err != nil {
		return err
	}
	return response.PageData(c, result)
}

// updateFloor 版本号来自 If-Match 或请求体，缺失返回 428，过期返回 409
func (h *Handler) updateFloor(c fiber.Ctx) error {
	var req floorPatch
	if err := h.bind(c, &req); err != nil {
		return err
	}
	token, err := middleware.VersionToken(c, c.Params("id"), req.Version)
	if err != nil {
		return err
	}

	floor, err := h.hier.Floors.CheckAndApply(c.Context(), token, func(f *model.Floor) error {
		if req.Name != nil {
			f.Name = *req.Name
		}
		if req.Level != nil {
			f.Level = *req.Level
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.SetVersion(c, floor.Version)
	return response.OkWithData(c, floor)
}

// pathID 非 ULID 的 :id 直接按不存在处理
func pathID(c fiber.Ctx) (string, error) {
	raw := c.Params("id")
	if !id.ValidEntityID(raw) {
		return "", errors.ErrNotFound.WithDetail(errors.DetailResourceID, raw)
	}
	return raw, nil
}

// delete 级联删除；失败时响应体仍带运行报告
func (h *Handler) delete(c fiber.Ctx) error {
	kind, ok := model.KindOfTable(c.Params("collection"))
	if !ok {
		return fiber.ErrNotFound
	}

	rootID, err := pathID(c)
	if err != nil {
		return err
	}
	report, err := h.engine.Delete(c.Context(), kind, rootID)
	if err != nil {
		if biz, ok := errors.AsBizError(err); ok && report != nil {
			return biz.WithDetail("report", report)
		}
		return err
	}
	return response.OkWithData(c, report)
}
