package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// WarehouseService 仓库档案
type WarehouseService struct {
	repo  *repository.WarehouseRepository
	audit *AuditService
}

func NewWarehouseService(repo *repository.WarehouseRepository, audit *AuditService) *WarehouseService {
	return &WarehouseService{repo: repo, audit: audit}
}

// CreateWarehouseRequest 创建仓库请求
type CreateWarehouseRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address"`
	Manager     string `json:"manager"`
	ContactInfo string `json:"contact_info"`
	Notes       string `json:"notes"`
}

// UpdateWarehouseRequest 更新仓库请求
type UpdateWarehouseRequest struct {
	Name        *string `json:"name"`
	Address     *string `json:"address"`
	Manager     *string `json:"manager"`
	ContactInfo *string `json:"contact_info"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (s *WarehouseService) List(ctx context.Context, status string, page, size int) ([]entity.Warehouse, int64, error) {
	return s.repo.List(ctx, status, page, size)
}

func (s *WarehouseService) Get(ctx context.Context, id string) (*entity.Warehouse, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *WarehouseService) Create(ctx context.Context, userID string, req *CreateWarehouseRequest) (*entity.Warehouse, error) {
	wh := &entity.Warehouse{
		Code:        req.Code,
		Name:        req.Name,
		Address:     req.Address,
		Manager:     req.Manager,
		ContactInfo: req.ContactInfo,
		Status:      entity.WarehouseStatusActive,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, wh); err != nil {
		return nil, fmt.Errorf("创建仓库失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "warehouse", wh.ID, nil, map[string]interface{}{
		"code": req.Code, "name": req.Name,
	})
	return wh, nil
}

func (s *WarehouseService) Update(ctx context.Context, id, userID string, req *UpdateWarehouseRequest) (*entity.Warehouse, error) {
	wh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"name": wh.Name, "status": wh.Status}

	if req.Name != nil {
		wh.Name = *req.Name
	}
	if req.Address != nil {
		wh.Address = *req.Address
	}
	if req.Manager != nil {
		wh.Manager = *req.Manager
	}
	if req.ContactInfo != nil {
		wh.ContactInfo = *req.ContactInfo
	}
	if req.Status != nil {
		wh.Status = *req.Status
	}
	if req.Notes != nil {
		wh.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, wh); err != nil {
		return nil, fmt.Errorf("更新仓库失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "warehouse", wh.ID, old, map[string]interface{}{
		"name": wh.Name, "status": wh.Status,
	})
	return wh, nil
}

func (s *WarehouseService) Delete(ctx context.Context, id, userID string) error {
	wh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除仓库失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionDelete, "warehouse", id, map[string]interface{}{
		"code": wh.Code, "name": wh.Name,
	}, nil)
	return nil
}
