package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// SupplierService 供应商档案与评分
type SupplierService struct {
	repo  *repository.SupplierRepository
	audit *AuditService
}

func NewSupplierService(repo *repository.SupplierRepository, audit *AuditService) *SupplierService {
	return &SupplierService{repo: repo, audit: audit}
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	SupplierCode string `json:"supplier_code" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Type         string `json:"type" binding:"required"`
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	PaymentTerms string `json:"payment_terms"`
	Notes        string `json:"notes"`
}

// UpdateSupplierRequest 更新供应商请求
type UpdateSupplierRequest struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	ContactName  *string `json:"contact_name"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Address      *string `json:"address"`
	PaymentTerms *string `json:"payment_terms"`
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
}

// ScoreSupplierRequest 供应商评分请求，各项0-100
type ScoreSupplierRequest struct {
	QualityScore  float64 `json:"quality_score" binding:"min=0,max=100"`
	DeliveryScore float64 `json:"delivery_score" binding:"min=0,max=100"`
	PriceScore    float64 `json:"price_score" binding:"min=0,max=100"`
	ServiceScore  float64 `json:"service_score" binding:"min=0,max=100"`
}

func (s *SupplierService) List(ctx context.Context, params repository.SupplierListParams) ([]entity.Supplier, int64, error) {
	return s.repo.List(ctx, params)
}

func (s *SupplierService) Get(ctx context.Context, id string) (*entity.Supplier, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *SupplierService) Create(ctx context.Context, userID string, req *CreateSupplierRequest) (*entity.Supplier, error) {
	supplier := &entity.Supplier{
		SupplierCode: req.SupplierCode,
		Name:         req.Name,
		Type:         req.Type,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		PaymentTerms: req.PaymentTerms,
		Status:       entity.SupplierStatusActive,
		Notes:        req.Notes,
		CreatedBy:    userID,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("创建供应商失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "supplier", supplier.ID, nil, map[string]interface{}{
		"supplier_code": req.SupplierCode, "name": req.Name,
	})
	return supplier, nil
}

func (s *SupplierService) Update(ctx context.Context, id, userID string, req *UpdateSupplierRequest) (*entity.Supplier, error) {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"name": supplier.Name, "status": supplier.Status}

	if req.Name != nil {
		supplier.Name = *req.Name
	}
	if req.Type != nil {
		supplier.Type = *req.Type
	}
	if req.ContactName != nil {
		supplier.ContactName = *req.ContactName
	}
	if req.Phone != nil {
		supplier.Phone = *req.Phone
	}
	if req.Email != nil {
		supplier.Email = *req.Email
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	if req.PaymentTerms != nil {
		supplier.PaymentTerms = *req.PaymentTerms
	}
	if req.Status != nil {
		supplier.Status = *req.Status
	}
	if req.Notes != nil {
		supplier.Notes = *req.Notes
	}
	supplier.UpdatedBy = userID

	if err := s.repo.Update(ctx, supplier); err != nil {
		return nil, fmt.Errorf("更新供应商失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "supplier", supplier.ID, old, map[string]interface{}{
		"name": supplier.Name, "status": supplier.Status,
	})
	return supplier, nil
}

// Score 更新评分并重算评级
func (s *SupplierService) Score(ctx context.Context, id, userID string, req *ScoreSupplierRequest) (*entity.Supplier, error) {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"overall_score": supplier.OverallScore, "rating": supplier.Rating}

	supplier.QualityScore = req.QualityScore
	supplier.DeliveryScore = req.DeliveryScore
	supplier.PriceScore = req.PriceScore
	supplier.ServiceScore = req.ServiceScore
	supplier.DetermineRating()
	supplier.UpdatedBy = userID

	if err := s.repo.Update(ctx, supplier); err != nil {
		return nil, fmt.Errorf("更新供应商评分失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "supplier", supplier.ID, old, map[string]interface{}{
		"overall_score": supplier.OverallScore, "rating": supplier.Rating,
	})
	return supplier, nil
}

func (s *SupplierService) Delete(ctx context.Context, id, userID string) error {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除供应商失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionDelete, "supplier", id, map[string]interface{}{
		"supplier_code": supplier.SupplierCode, "name": supplier.Name,
	}, nil)
	return nil
}
