package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// PlanHandler 生产计划处理器
type PlanHandler struct {
	svc *service.PlanService
}

func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

// ListPlans 计划列表
// GET /api/v1/plans?product_id=&status=&priority=&page=1&page_size=20
func (h *PlanHandler) ListPlans(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.PlanListParams{
		ProductID: c.Query("product_id"),
		Status:    c.Query("status"),
		Page:      page,
		Size:      pageSize,
	}
	if p := c.Query("priority"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			params.Priority = &v
		}
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取计划列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetPlan 计划详情
// GET /api/v1/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "计划不存在")
		return
	}
	Success(c, plan)
}

// CreatePlan 创建计划
// POST /api/v1/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	plan, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, plan)
}

// UpdatePlan 更新草稿计划
// PUT /api/v1/plans/:id
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	var req service.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	plan, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, plan)
}

// ConfirmPlan 确认投产并预留物料，可在请求体指定分配明细
// POST /api/v1/plans/:id/confirm
func (h *PlanHandler) ConfirmPlan(c *gin.Context) {
	var req service.ConfirmPlanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}

	plan, err := h.svc.Confirm(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, plan)
}

// StartPlan 开工
// POST /api/v1/plans/:id/start
func (h *PlanHandler) StartPlan(c *gin.Context) {
	plan, err := h.svc.Start(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, plan)
}

// CompletePlan 完工
// POST /api/v1/plans/:id/complete
func (h *PlanHandler) CompletePlan(c *gin.Context) {
	var req service.CompletePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	plan, err := h.svc.Complete(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, plan)
}

// CancelPlan 取消计划
// POST /api/v1/plans/:id/cancel
func (h *PlanHandler) CancelPlan(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	plan, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, plan)
}

// DuplicatePlan 复制为新草稿
// POST /api/v1/plans/:id/duplicate
func (h *PlanHandler) DuplicatePlan(c *gin.Context) {
	plan, err := h.svc.Duplicate(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, plan)
}

// ListAllocations 计划分配明细
// GET /api/v1/plans/:id/allocations
func (h *PlanHandler) ListAllocations(c *gin.Context) {
	allocations, err := h.svc.ListAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, allocations)
}
