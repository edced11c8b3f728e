package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
)

// Handlers MRP处理器集合
type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Material    *MaterialHandler
	Warehouse   *WarehouseHandler
	Supplier    *SupplierHandler
	Inventory   *InventoryHandler
	Product     *ProductHandler
	Plan        *PlanHandler
	Procurement *ProcurementHandler
	AuditLog    *AuditLogHandler
	Dashboard   *DashboardHandler
}

// NewHandlers 创建MRP处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:        NewAuthHandler(services.Auth, services.User),
		User:        NewUserHandler(services.User),
		Material:    NewMaterialHandler(services.Material),
		Warehouse:   NewWarehouseHandler(services.Warehouse),
		Supplier:    NewSupplierHandler(services.Supplier),
		Inventory:   NewInventoryHandler(services.Inventory),
		Product:     NewProductHandler(services.BOM),
		Plan:        NewPlanHandler(services.Plan),
		Procurement: NewProcurementHandler(services.Procurement),
		AuditLog:    NewAuditLogHandler(services.Audit),
		Dashboard:   NewDashboardHandler(services.Dashboard),
	}
}

// === 响应辅助函数 ===
// code/100 即HTTP状态码，code=0 表示成功

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError 领域错误到响应码的映射
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		Error(c, 40400, err.Error())
	case errors.Is(err, service.ErrInvalidTransfer):
		Error(c, 40001, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		Error(c, 40002, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		Error(c, 40101, err.Error())
	case errors.Is(err, service.ErrUserDisabled):
		Error(c, 40303, err.Error())
	case errors.Is(err, service.ErrConflict):
		Error(c, 40900, err.Error())
	case errors.Is(err, service.ErrMaterialReferenced):
		Error(c, 40901, err.Error())
	case errors.Is(err, service.ErrDuplicateCode):
		Error(c, 40902, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		Error(c, 42201, err.Error())
	case errors.Is(err, service.ErrAllocationMismatch):
		Error(c, 42202, err.Error())
	case errors.Is(err, service.ErrNoActiveBOM):
		Error(c, 42203, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}
