package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// ProcurementHandler 采购处理器
type ProcurementHandler struct {
	svc *service.ProcurementService
}

func NewProcurementHandler(svc *service.ProcurementService) *ProcurementHandler {
	return &ProcurementHandler{svc: svc}
}

// GetRecommendations 采购建议
// GET /api/v1/procurement/recommendations?warehouse_id=
func (h *ProcurementHandler) GetRecommendations(c *gin.Context) {
	recommendations, err := h.svc.GetRecommendations(c.Request.Context(), c.Query("warehouse_id"))
	if err != nil {
		InternalError(c, "获取采购建议失败: "+err.Error())
		return
	}
	Success(c, recommendations)
}

// ListPOs 采购订单列表
// GET /api/v1/procurement/orders?supplier_id=&status=&page=1&page_size=20
func (h *ProcurementHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.POListParams{
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
		Page:       page,
		Size:       pageSize,
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// GetPO 采购订单详情
// GET /api/v1/procurement/orders/:id
func (h *ProcurementHandler) GetPO(c *gin.Context) {
	po, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "采购订单不存在")
		return
	}
	Success(c, po)
}

// CreatePO 创建采购订单
// POST /api/v1/procurement/orders
func (h *ProcurementHandler) CreatePO(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.CreatePO(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, po)
}

// SubmitPO 提交审批
// POST /api/v1/procurement/orders/:id/submit
func (h *ProcurementHandler) SubmitPO(c *gin.Context) {
	po, err := h.svc.Submit(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// ApprovePO 审批通过
// POST /api/v1/procurement/orders/:id/approve
func (h *ProcurementHandler) ApprovePO(c *gin.Context) {
	po, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// SendPO 下发供应商
// POST /api/v1/procurement/orders/:id/send
func (h *ProcurementHandler) SendPO(c *gin.Context) {
	po, err := h.svc.Send(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// CancelPO 取消订单
// POST /api/v1/procurement/orders/:id/cancel
func (h *ProcurementHandler) CancelPO(c *gin.Context) {
	po, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// ReceivePO 采购收货
// POST /api/v1/procurement/orders/:id/receive
func (h *ProcurementHandler) ReceivePO(c *gin.Context) {
	var req service.ReceivePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.Receive(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}
