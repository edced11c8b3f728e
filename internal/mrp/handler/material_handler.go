package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// MaterialHandler 物料主数据处理器
type MaterialHandler struct {
	svc *service.MaterialService
}

func NewMaterialHandler(svc *service.MaterialService) *MaterialHandler {
	return &MaterialHandler{svc: svc}
}

// ListMaterials 物料列表
// GET /api/v1/materials?group_id=&supplier_id=&status=&keyword=&page=1&page_size=20
func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.MaterialListParams{
		GroupID:    c.Query("group_id"),
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
		Keyword:    c.Query("keyword"),
		Page:       page,
		Size:       pageSize,
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取物料列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetMaterial 物料详情
// GET /api/v1/materials/:id
func (h *MaterialHandler) GetMaterial(c *gin.Context) {
	material, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "物料不存在")
		return
	}
	Success(c, material)
}

// CreateMaterial 创建物料
// POST /api/v1/materials
func (h *MaterialHandler) CreateMaterial(c *gin.Context) {
	var req service.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	material, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, material)
}

// UpdateMaterial 更新物料
// PUT /api/v1/materials/:id
func (h *MaterialHandler) UpdateMaterial(c *gin.Context) {
	var req service.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	material, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, material)
}

// DeleteMaterial 删除物料
// DELETE /api/v1/materials/:id
func (h *MaterialHandler) DeleteMaterial(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListGroups 物料分组
// GET /api/v1/materials/groups
func (h *MaterialHandler) ListGroups(c *gin.Context) {
	groups, err := h.svc.ListGroups(c.Request.Context())
	if err != nil {
		InternalError(c, "获取物料分组失败: "+err.Error())
		return
	}
	Success(c, groups)
}

// ListUnits 计量单位
// GET /api/v1/materials/units
func (h *MaterialHandler) ListUnits(c *gin.Context) {
	units, err := h.svc.ListUnits(c.Request.Context())
	if err != nil {
		InternalError(c, "获取计量单位失败: "+err.Error())
		return
	}
	Success(c, units)
}

// ListContainerTypes 容器类型
// GET /api/v1/materials/containers
func (h *MaterialHandler) ListContainerTypes(c *gin.Context) {
	containers, err := h.svc.ListContainerTypes(c.Request.Context())
	if err != nil {
		InternalError(c, "获取容器类型失败: "+err.Error())
		return
	}
	Success(c, containers)
}
