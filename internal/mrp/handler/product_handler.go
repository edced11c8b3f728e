package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// ProductHandler 产品与BOM处理器
type ProductHandler struct {
	svc *service.BOMService
}

func NewProductHandler(svc *service.BOMService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// ListProducts 产品列表
// GET /api/v1/products?status=&keyword=&page=1&page_size=20
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListProducts(c.Request.Context(), c.Query("status"), c.Query("keyword"), page, pageSize)
	if err != nil {
		InternalError(c, "获取产品列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetProduct 产品详情
// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "产品不存在")
		return
	}
	Success(c, product)
}

// CreateProduct 创建产品
// POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, product)
}

// UpdateProduct 更新产品
// PUT /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.UpdateProduct(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, product)
}

// DeleteProduct 删除产品
// DELETE /api/v1/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.svc.DeleteProduct(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListBOMLines 产品激活BOM
// GET /api/v1/products/:id/bom
func (h *ProductHandler) ListBOMLines(c *gin.Context) {
	lines, err := h.svc.ListLines(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, lines)
}

// AddBOMLine 新增BOM行
// POST /api/v1/products/:id/bom
func (h *ProductHandler) AddBOMLine(c *gin.Context) {
	var req service.AddBOMLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	line, err := h.svc.AddLine(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, line)
}

// UpdateBOMLine 更新BOM行
// PUT /api/v1/bom-lines/:id
func (h *ProductHandler) UpdateBOMLine(c *gin.Context) {
	var req service.UpdateBOMLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	line, err := h.svc.UpdateLine(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, line)
}

// ComputeRequirements 按产量展开物料需求
// GET /api/v1/products/:id/requirements?input_qty=100
func (h *ProductHandler) ComputeRequirements(c *gin.Context) {
	inputQty, err := strconv.ParseFloat(c.Query("input_qty"), 64)
	if err != nil {
		BadRequest(c, "input_qty 参数错误")
		return
	}

	result, err := h.svc.ComputeRequirements(c.Request.Context(), c.Param("id"), inputQty)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, result)
}
