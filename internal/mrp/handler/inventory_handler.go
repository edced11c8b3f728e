package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// InventoryHandler 库存台账处理器
type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// ListLots 批次库存
// GET /api/v1/inventory/lots?material_id=&warehouse_id=&lot_no=&non_zero=true&page=1&page_size=20
func (h *InventoryHandler) ListLots(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.LotListParams{
		MaterialID:  c.Query("material_id"),
		WarehouseID: c.Query("warehouse_id"),
		LotNo:       c.Query("lot_no"),
		NonZeroOnly: c.Query("non_zero") == "true",
		Page:        page,
		Size:        pageSize,
	}

	lots, total, err := h.svc.ListLots(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取批次库存失败: "+err.Error())
		return
	}
	Success(c, listResponse(lots, page, pageSize, total))
}

// GetBalances 物料汇总余额
// GET /api/v1/inventory/balances?material_id=&warehouse_id=
func (h *InventoryHandler) GetBalances(c *gin.Context) {
	balances, err := h.svc.GetBalances(c.Request.Context(), c.Query("material_id"), c.Query("warehouse_id"))
	if err != nil {
		InternalError(c, "获取库存余额失败: "+err.Error())
		return
	}
	Success(c, balances)
}

// GetLowStockAlerts 低库存预警
// GET /api/v1/inventory/alerts?warehouse_id=
func (h *InventoryHandler) GetLowStockAlerts(c *gin.Context) {
	alerts, err := h.svc.GetLowStockAlerts(c.Request.Context(), c.Query("warehouse_id"))
	if err != nil {
		InternalError(c, "获取低库存预警失败: "+err.Error())
		return
	}
	Success(c, alerts)
}

// ListTransactions 交易流水
// GET /api/v1/inventory/transactions?material_id=&warehouse_id=&type=&reference_no=&page=1&page_size=20
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.TransactionListParams{
		MaterialID:  c.Query("material_id"),
		WarehouseID: c.Query("warehouse_id"),
		Type:        c.Query("type"),
		ReferenceNo: c.Query("reference_no"),
		Page:        page,
		Size:        pageSize,
	}

	txs, total, err := h.svc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取交易流水失败: "+err.Error())
		return
	}
	Success(c, listResponse(txs, page, pageSize, total))
}

// GoodsReceipt 入库
// POST /api/v1/inventory/receipt
func (h *InventoryHandler) GoodsReceipt(c *gin.Context) {
	var req service.GoodsReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.GoodsReceipt(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, record)
}

// GoodsIssue 出库
// POST /api/v1/inventory/issue
func (h *InventoryHandler) GoodsIssue(c *gin.Context) {
	var req service.GoodsIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	records, err := h.svc.GoodsIssue(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, records)
}

// Transfer 调拨
// POST /api/v1/inventory/transfer
func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	refNo, err := h.svc.Transfer(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, gin.H{"reference_no": refNo})
}

// Adjust 盘点调整
// POST /api/v1/inventory/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req service.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.Adjust(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, record)
}

// SuggestLots 出库批次建议
// GET /api/v1/inventory/suggest?material_id=&warehouse_id=&quantity=&strategy=
func (h *InventoryHandler) SuggestLots(c *gin.Context) {
	quantity, err := strconv.ParseFloat(c.Query("quantity"), 64)
	if err != nil {
		BadRequest(c, "quantity 参数错误")
		return
	}

	suggestions, err := h.svc.SuggestLots(c.Request.Context(),
		c.Query("material_id"), c.Query("warehouse_id"), quantity, c.Query("strategy"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, suggestions)
}
