package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// AuditLogHandler 审计日志处理器
type AuditLogHandler struct {
	svc *service.AuditService
}

func NewAuditLogHandler(svc *service.AuditService) *AuditLogHandler {
	return &AuditLogHandler{svc: svc}
}

// ListAuditLogs 审计日志查询
// GET /api/v1/audit-logs?user_id=&action=&entity_type=&entity_id=&page=1&page_size=20
func (h *AuditLogHandler) ListAuditLogs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.AuditLogListParams{
		UserID:     c.Query("user_id"),
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Page:       page,
		Size:       pageSize,
	}

	logs, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取审计日志失败: "+err.Error())
		return
	}
	Success(c, listResponse(logs, page, pageSize, total))
}
