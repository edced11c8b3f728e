package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// BOMService 产品与物料清单
type BOMService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewBOMService(repos *repository.Repositories, audit *AuditService) *BOMService {
	return &BOMService{repos: repos, audit: audit}
}

// CreateProductRequest 创建产品请求
type CreateProductRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type"`
	Notes string `json:"notes"`
}

// UpdateProductRequest 更新产品请求
type UpdateProductRequest struct {
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// ListProducts 产品列表
func (s *BOMService) ListProducts(ctx context.Context, status, keyword string, page, size int) ([]entity.Product, int64, error) {
	return s.repos.Product.List(ctx, status, keyword, page, size)
}

// GetProduct 产品详情
func (s *BOMService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	return s.repos.Product.FindByID(ctx, id)
}

// CreateProduct 创建产品
func (s *BOMService) CreateProduct(ctx context.Context, userID string, req *CreateProductRequest) (*entity.Product, error) {
	product := &entity.Product{
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		Status:    entity.ProductStatusActive,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if err := s.repos.Product.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建产品失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "product", product.ID, nil, map[string]interface{}{
		"code": req.Code, "name": req.Name,
	})
	return product, nil
}

// UpdateProduct 更新产品
func (s *BOMService) UpdateProduct(ctx context.Context, id, userID string, req *UpdateProductRequest) (*entity.Product, error) {
	product, err := s.repos.Product.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"name": product.Name, "status": product.Status}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Type != nil {
		product.Type = *req.Type
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.Notes != nil {
		product.Notes = *req.Notes
	}

	if err := s.repos.Product.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("更新产品失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "product", product.ID, old, map[string]interface{}{
		"name": product.Name, "status": product.Status,
	})
	return product, nil
}

// DeleteProduct 软删除产品
func (s *BOMService) DeleteProduct(ctx context.Context, id, userID string) error {
	product, err := s.repos.Product.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Product.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除产品失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionDelete, "product", id, map[string]interface{}{
		"code": product.Code, "name": product.Name,
	}, nil)
	return nil
}

// AddBOMLineRequest 新增BOM行请求
type AddBOMLineRequest struct {
	MaterialID    string  `json:"material_id" binding:"required"`
	UnitID        *string `json:"unit_id"`
	UsagePerPiece float64 `json:"usage_per_piece" binding:"required"`
	ScrapFactor   float64 `json:"scrap_factor"`
}

// UpdateBOMLineRequest 更新BOM行请求
type UpdateBOMLineRequest struct {
	UsagePerPiece *float64 `json:"usage_per_piece"`
	ScrapFactor   *float64 `json:"scrap_factor"`
	IsActive      *bool    `json:"is_active"`
}

// MaterialRequirement 单物料需求量
type MaterialRequirement struct {
	MaterialID    string  `json:"material_id"`
	MaterialCode  string  `json:"material_code"`
	MaterialName  string  `json:"material_name"`
	UsagePerPiece float64 `json:"usage_per_piece"`
	ScrapFactor   float64 `json:"scrap_factor"`
	RequiredQty   float64 `json:"required_qty"`
	UnitCost      float64 `json:"unit_cost"`
	TotalCost     float64 `json:"total_cost"`
	AvailableQty  float64 `json:"available_qty"`
	Shortage      float64 `json:"shortage"`
}

// RequirementResult 整单需求计算结果
type RequirementResult struct {
	ProductID     string                `json:"product_id"`
	InputQty      float64               `json:"input_qty"`
	EstimatedCost float64               `json:"estimated_cost"`
	Feasible      bool                  `json:"feasible"`
	Requirements  []MaterialRequirement `json:"requirements"`
}

// ListLines 产品的激活BOM行
func (s *BOMService) ListLines(ctx context.Context, productID string) ([]entity.BOMLine, error) {
	if _, err := s.repos.Product.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repos.Product.ListActiveBOMLines(ctx, productID)
}

// AddLine 新增激活BOM行。同 (产品, 物料) 已有激活行则拒绝。
func (s *BOMService) AddLine(ctx context.Context, productID, userID string, req *AddBOMLineRequest) (*entity.BOMLine, error) {
	if req.UsagePerPiece <= 0 || req.ScrapFactor < 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.repos.Product.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.repos.Material.FindByID(ctx, req.MaterialID); err != nil {
		return nil, fmt.Errorf("物料不存在: %w", err)
	}

	if _, err := s.repos.Product.FindActiveBOMLine(ctx, productID, req.MaterialID); err == nil {
		return nil, fmt.Errorf("%w: 该物料已有激活BOM行", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	line := &entity.BOMLine{
		ProductID:     productID,
		MaterialID:    req.MaterialID,
		UnitID:        req.UnitID,
		UsagePerPiece: req.UsagePerPiece,
		ScrapFactor:   req.ScrapFactor,
		Version:       1,
		IsActive:      true,
		CreatedBy:     userID,
	}
	if err := s.repos.Product.CreateBOMLine(ctx, line); err != nil {
		return nil, fmt.Errorf("创建BOM行失败: %w", err)
	}
	return line, nil
}

// UpdateLine 更新BOM行，用量/损耗变更时版本号递增
func (s *BOMService) UpdateLine(ctx context.Context, lineID string, req *UpdateBOMLineRequest) (*entity.BOMLine, error) {
	line, err := s.repos.Product.FindBOMLineByID(ctx, lineID)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.UsagePerPiece != nil {
		if *req.UsagePerPiece <= 0 {
			return nil, ErrInvalidQuantity
		}
		line.UsagePerPiece = *req.UsagePerPiece
		changed = true
	}
	if req.ScrapFactor != nil {
		if *req.ScrapFactor < 0 {
			return nil, ErrInvalidQuantity
		}
		line.ScrapFactor = *req.ScrapFactor
		changed = true
	}
	if req.IsActive != nil {
		if *req.IsActive && !line.IsActive {
			if _, err := s.repos.Product.FindActiveBOMLine(ctx, line.ProductID, line.MaterialID); err == nil {
				return nil, fmt.Errorf("%w: 该物料已有激活BOM行", ErrConflict)
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
		line.IsActive = *req.IsActive
	}
	if changed {
		line.Version++
	}

	if err := s.repos.Product.UpdateBOMLine(ctx, line); err != nil {
		return nil, fmt.Errorf("更新BOM行失败: %w", err)
	}
	return line, nil
}

// ComputeRequirements 按激活BOM展开需求。
// 需求量 = 产量 × 单件用量 × (1 + 损耗系数)，精确计算后按4位小数入账。
func (s *BOMService) ComputeRequirements(ctx context.Context, productID string, inputQty float64) (*RequirementResult, error) {
	if inputQty <= 0 {
		return nil, ErrInvalidQuantity
	}

	lines, err := s.repos.Product.ListActiveBOMLines(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoActiveBOM
	}

	result := &RequirementResult{
		ProductID: productID,
		InputQty:  inputQty,
		Feasible:  true,
	}

	qty := decimal.NewFromFloat(inputQty)
	totalCost := decimal.Zero
	for _, line := range lines {
		required := qty.
			Mul(decimal.NewFromFloat(line.UsagePerPiece)).
			Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(line.ScrapFactor))).
			Round(4)

		available, err := s.repos.Inventory.GetTotalAvailable(ctx, line.MaterialID)
		if err != nil {
			return nil, err
		}

		req := MaterialRequirement{
			MaterialID:    line.MaterialID,
			UsagePerPiece: line.UsagePerPiece,
			ScrapFactor:   line.ScrapFactor,
			RequiredQty:   required.InexactFloat64(),
			AvailableQty:  available,
		}
		if line.Material != nil {
			req.MaterialCode = line.Material.Code
			req.MaterialName = line.Material.Name
			req.UnitCost = line.Material.CostPerUnit
			cost := required.Mul(decimal.NewFromFloat(line.Material.CostPerUnit)).Round(2)
			req.TotalCost = cost.InexactFloat64()
			totalCost = totalCost.Add(cost)
		}
		shortage := required.Sub(decimal.NewFromFloat(available))
		if shortage.IsPositive() {
			req.Shortage = shortage.InexactFloat64()
			result.Feasible = false
		}
		result.Requirements = append(result.Requirements, req)
	}
	result.EstimatedCost = totalCost.Round(2).InexactFloat64()
	return result, nil
}
