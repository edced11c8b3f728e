package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// MaterialService 物料主数据
type MaterialService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewMaterialService(repos *repository.Repositories, audit *AuditService) *MaterialService {
	return &MaterialService{repos: repos, audit: audit}
}

// CreateMaterialRequest 创建物料请求
type CreateMaterialRequest struct {
	Code         string   `json:"code" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	GroupID      *string  `json:"group_id"`
	UnitID       *string  `json:"unit_id"`
	ContainerID  *string  `json:"container_id"`
	SupplierID   *string  `json:"supplier_id"`
	CostPerUnit  float64  `json:"cost_per_unit"`
	MinStock     float64  `json:"min_stock"`
	MaxStock     float64  `json:"max_stock"`
	ReorderPoint float64  `json:"reorder_point"`
	LeadTimeDays int      `json:"lead_time_days"`
	LifetimeDays int      `json:"lifetime_days"`
	Notes        string   `json:"notes"`
}

// UpdateMaterialRequest 更新物料请求
type UpdateMaterialRequest struct {
	Name         *string  `json:"name"`
	GroupID      *string  `json:"group_id"`
	UnitID       *string  `json:"unit_id"`
	ContainerID  *string  `json:"container_id"`
	SupplierID   *string  `json:"supplier_id"`
	CostPerUnit  *float64 `json:"cost_per_unit"`
	MinStock     *float64 `json:"min_stock"`
	MaxStock     *float64 `json:"max_stock"`
	ReorderPoint *float64 `json:"reorder_point"`
	LeadTimeDays *int     `json:"lead_time_days"`
	LifetimeDays *int     `json:"lifetime_days"`
	Status       *string  `json:"status"`
	Notes        *string  `json:"notes"`
}

// List 物料列表
func (s *MaterialService) List(ctx context.Context, params repository.MaterialListParams) ([]entity.MaterialMaster, int64, error) {
	return s.repos.Material.List(ctx, params)
}

// Get 物料详情
func (s *MaterialService) Get(ctx context.Context, id string) (*entity.MaterialMaster, error) {
	return s.repos.Material.FindByID(ctx, id)
}

// Create 创建物料
func (s *MaterialService) Create(ctx context.Context, userID string, req *CreateMaterialRequest) (*entity.MaterialMaster, error) {
	if req.CostPerUnit < 0 || req.MinStock < 0 || req.ReorderPoint < 0 {
		return nil, ErrInvalidQuantity
	}

	mat := &entity.MaterialMaster{
		Code:         req.Code,
		Name:         req.Name,
		GroupID:      req.GroupID,
		UnitID:       req.UnitID,
		ContainerID:  req.ContainerID,
		SupplierID:   req.SupplierID,
		CostPerUnit:  req.CostPerUnit,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		ReorderPoint: req.ReorderPoint,
		LeadTimeDays: req.LeadTimeDays,
		LifetimeDays: req.LifetimeDays,
		Status:       entity.MaterialStatusActive,
		Notes:        req.Notes,
		CreatedBy:    userID,
	}
	if err := s.repos.Material.Create(ctx, mat); err != nil {
		return nil, fmt.Errorf("创建物料失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "material", mat.ID, nil, map[string]interface{}{
		"code": req.Code, "name": req.Name,
	})
	return mat, nil
}

// Update 更新物料
func (s *MaterialService) Update(ctx context.Context, id, userID string, req *UpdateMaterialRequest) (*entity.MaterialMaster, error) {
	mat, err := s.repos.Material.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"name": mat.Name, "cost_per_unit": mat.CostPerUnit, "reorder_point": mat.ReorderPoint}

	if req.Name != nil {
		mat.Name = *req.Name
	}
	if req.GroupID != nil {
		mat.GroupID = req.GroupID
	}
	if req.UnitID != nil {
		mat.UnitID = req.UnitID
	}
	if req.ContainerID != nil {
		mat.ContainerID = req.ContainerID
	}
	if req.SupplierID != nil {
		mat.SupplierID = req.SupplierID
	}
	if req.CostPerUnit != nil {
		if *req.CostPerUnit < 0 {
			return nil, ErrInvalidQuantity
		}
		mat.CostPerUnit = *req.CostPerUnit
	}
	if req.MinStock != nil {
		mat.MinStock = *req.MinStock
	}
	if req.MaxStock != nil {
		mat.MaxStock = *req.MaxStock
	}
	if req.ReorderPoint != nil {
		if *req.ReorderPoint < 0 {
			return nil, ErrInvalidQuantity
		}
		mat.ReorderPoint = *req.ReorderPoint
	}
	if req.LeadTimeDays != nil {
		mat.LeadTimeDays = *req.LeadTimeDays
	}
	if req.LifetimeDays != nil {
		mat.LifetimeDays = *req.LifetimeDays
	}
	if req.Status != nil {
		mat.Status = *req.Status
	}
	if req.Notes != nil {
		mat.Notes = *req.Notes
	}

	if err := s.repos.Material.Update(ctx, mat); err != nil {
		return nil, fmt.Errorf("更新物料失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "material", mat.ID, old, map[string]interface{}{
		"name": mat.Name, "cost_per_unit": mat.CostPerUnit, "reorder_point": mat.ReorderPoint,
	})
	return mat, nil
}

// Delete 软删除物料。仍有库存或激活BOM引用时拒绝。
func (s *MaterialService) Delete(ctx context.Context, id, userID string) error {
	mat, err := s.repos.Material.FindByID(ctx, id)
	if err != nil {
		return err
	}

	hasStock, err := s.repos.Inventory.HasStock(ctx, id)
	if err != nil {
		return err
	}
	if hasStock {
		return ErrMaterialReferenced
	}
	referenced, err := s.repos.Product.HasActiveBOMReference(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrMaterialReferenced
	}

	if err := s.repos.Material.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除物料失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionDelete, "material", id, map[string]interface{}{
		"code": mat.Code, "name": mat.Name,
	}, nil)
	return nil
}

// ListGroups 物料分组
func (s *MaterialService) ListGroups(ctx context.Context) ([]entity.MaterialGroup, error) {
	return s.repos.Material.ListGroups(ctx)
}

// ListUnits 计量单位
func (s *MaterialService) ListUnits(ctx context.Context) ([]entity.UnitOfMeasure, error) {
	return s.repos.Material.ListUnits(ctx)
}

// ListContainerTypes 容器类型
func (s *MaterialService) ListContainerTypes(ctx context.Context) ([]entity.ContainerType, error) {
	return s.repos.Material.ListContainerTypes(ctx)
}
