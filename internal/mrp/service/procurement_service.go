package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-mrp/internal/config"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// ProcurementService 采购建议与采购订单
type ProcurementService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	cfg    *config.Config
	audit  *AuditService
	logger *zap.Logger
}

func NewProcurementService(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, audit *AuditService, logger *zap.Logger) *ProcurementService {
	return &ProcurementService{db: db, repos: repos, cfg: cfg, audit: audit, logger: logger}
}

// Recommendation 采购建议
type Recommendation struct {
	MaterialID    string  `json:"material_id"`
	MaterialCode  string  `json:"material_code"`
	MaterialName  string  `json:"material_name"`
	SupplierID    *string `json:"supplier_id"`
	SupplierName  string  `json:"supplier_name"`
	AvailableQty  float64 `json:"available_qty"`
	InTransitQty  float64 `json:"in_transit_qty"`
	ReorderPoint  float64 `json:"reorder_point"`
	SuggestedQty  float64 `json:"suggested_qty"`
	EstimatedCost float64 `json:"estimated_cost"`
	LeadTimeDays  int     `json:"lead_time_days"`
	IsCritical    bool    `json:"is_critical"`
}

// CreatePORequest 创建采购订单请求
type CreatePORequest struct {
	SupplierID   string          `json:"supplier_id" binding:"required"`
	ExpectedDate *time.Time      `json:"expected_date"`
	Source       string          `json:"source"`
	Notes        string          `json:"notes"`
	Items        []POItemRequest `json:"items" binding:"required"`
}

// POItemRequest 采购订单行请求
type POItemRequest struct {
	MaterialID string  `json:"material_id" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required"`
	UnitPrice  float64 `json:"unit_price"`
}

// ReceivePORequest 采购收货请求
type ReceivePORequest struct {
	WarehouseID string          `json:"warehouse_id" binding:"required"`
	Items       []POReceiveItem `json:"items" binding:"required"`
}

// POReceiveItem 收货行
type POReceiveItem struct {
	ItemID      string     `json:"item_id" binding:"required"`
	ReceivedQty float64    `json:"received_qty" binding:"required"`
	LotNo       string     `json:"lot_no"`
	MfgDate     *time.Time `json:"mfg_date"`
	ExpDate     *time.Time `json:"exp_date"`
}

// GetRecommendations 采购建议。
// 建议量 = max(订货点 × 安全系数 - 可用量 - 在途量, 0)，向上取整到4位小数。
func (s *ProcurementService) GetRecommendations(ctx context.Context, warehouseID string) ([]Recommendation, error) {
	alerts, err := s.repos.Inventory.GetLowStockAlerts(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	factor := 1.5
	if s.cfg != nil && s.cfg.MRP.SafetyFactor > 0 {
		factor = s.cfg.MRP.SafetyFactor
	}

	var recommendations []Recommendation
	for _, alert := range alerts {
		inTransit, err := s.repos.Purchase.GetInTransitQty(ctx, alert.MaterialID)
		if err != nil {
			return nil, err
		}

		suggested := decimal.NewFromFloat(alert.ReorderPoint).
			Mul(decimal.NewFromFloat(factor)).
			Sub(decimal.NewFromFloat(alert.AvailableQty)).
			Sub(decimal.NewFromFloat(inTransit)).
			Round(4)
		if !suggested.IsPositive() {
			continue
		}

		rec := Recommendation{
			MaterialID:   alert.MaterialID,
			MaterialCode: alert.MaterialCode,
			MaterialName: alert.MaterialName,
			SupplierID:   alert.SupplierID,
			AvailableQty: alert.AvailableQty,
			InTransitQty: inTransit,
			ReorderPoint: alert.ReorderPoint,
			SuggestedQty: suggested.InexactFloat64(),
			EstimatedCost: suggested.
				Mul(decimal.NewFromFloat(alert.CostPerUnit)).
				Round(2).InexactFloat64(),
			LeadTimeDays: alert.LeadTimeDays,
			IsCritical:   alert.IsCritical,
		}
		if alert.SupplierID != nil {
			if supplier, err := s.repos.Supplier.FindByID(ctx, *alert.SupplierID); err == nil {
				rec.SupplierName = supplier.Name
			}
		}
		recommendations = append(recommendations, rec)
	}
	return recommendations, nil
}

// CreatePO 创建采购订单
func (s *ProcurementService) CreatePO(ctx context.Context, userID string, req *CreatePORequest) (*entity.PurchaseOrder, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: 订单行不能为空", ErrInvalidQuantity)
	}
	if _, err := s.repos.Supplier.FindByID(ctx, req.SupplierID); err != nil {
		return nil, fmt.Errorf("供应商不存在: %w", err)
	}

	code, err := s.repos.Purchase.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成PO编码失败: %w", err)
	}

	source := req.Source
	if source == "" {
		source = "MANUAL"
	}
	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:           uuid.New().String(),
		POCode:       code,
		SupplierID:   req.SupplierID,
		Status:       entity.POStatusDraft,
		Currency:     "CNY",
		OrderDate:    &now,
		ExpectedDate: req.ExpectedDate,
		Source:       source,
		Notes:        req.Notes,
		CreatedBy:    userID,
	}

	total := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		material, err := s.repos.Material.FindByID(ctx, item.MaterialID)
		if err != nil {
			return nil, fmt.Errorf("物料不存在: %w", err)
		}
		unitPrice := item.UnitPrice
		if unitPrice == 0 {
			unitPrice = material.CostPerUnit
		}
		amount := decimal.NewFromFloat(item.Quantity).
			Mul(decimal.NewFromFloat(unitPrice)).Round(2)
		po.Items = append(po.Items, entity.POItem{
			ID:         uuid.New().String(),
			POID:       po.ID,
			MaterialID: item.MaterialID,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Amount:     amount.InexactFloat64(),
			Status:     entity.POItemStatusOpen,
		})
		total = total.Add(amount)
	}
	po.TotalAmount = total.Round(2).InexactFloat64()

	if err := s.repos.Purchase.Create(ctx, po); err != nil {
		return nil, fmt.Errorf("创建采购订单失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "purchase_order", po.ID, nil, map[string]interface{}{
		"po_code": code, "supplier_id": req.SupplierID, "total_amount": po.TotalAmount,
	})
	return po, nil
}

// Submit 提交审批 DRAFT -> PENDING
func (s *ProcurementService) Submit(ctx context.Context, id, userID string) (*entity.PurchaseOrder, error) {
	return s.transition(ctx, id, userID, entity.POStatusDraft, entity.POStatusPending, nil)
}

// Approve 审批通过 PENDING -> APPROVED
func (s *ProcurementService) Approve(ctx context.Context, id, userID string) (*entity.PurchaseOrder, error) {
	now := time.Now()
	return s.transition(ctx, id, userID, entity.POStatusPending, entity.POStatusApproved, map[string]interface{}{
		"approved_by": userID,
		"approved_at": now,
	})
}

// Send 下发供应商 APPROVED -> SENT
func (s *ProcurementService) Send(ctx context.Context, id, userID string) (*entity.PurchaseOrder, error) {
	return s.transition(ctx, id, userID, entity.POStatusApproved, entity.POStatusSent, nil)
}

// Cancel 取消订单，已收货的不可取消
func (s *ProcurementService) Cancel(ctx context.Context, id, userID string) (*entity.PurchaseOrder, error) {
	po, err := s.repos.Purchase.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch po.Status {
	case entity.POStatusDraft, entity.POStatusPending, entity.POStatusApproved, entity.POStatusSent:
	default:
		return nil, fmt.Errorf("%w: 订单状态为 %s", ErrConflict, po.Status)
	}
	return s.transition(ctx, id, userID, po.Status, entity.POStatusCancelled, nil)
}

// Receive 采购收货。更新订单行收货量并做入库，
// 全部收完转RECEIVED，否则转PARTIAL。
func (s *ProcurementService) Receive(ctx context.Context, id, userID string, req *ReceivePORequest) (*entity.PurchaseOrder, error) {
	po, err := s.repos.Purchase.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch po.Status {
	case entity.POStatusSent, entity.POStatusPartial:
	default:
		return nil, fmt.Errorf("%w: 订单状态为 %s", ErrConflict, po.Status)
	}
	if _, err := s.repos.Warehouse.FindByID(ctx, req.WarehouseID); err != nil {
		return nil, fmt.Errorf("仓库不存在: %w", err)
	}

	itemByID := make(map[string]*entity.POItem, len(po.Items))
	for i := range po.Items {
		itemByID[po.Items[i].ID] = &po.Items[i]
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range req.Items {
			if r.ReceivedQty <= 0 {
				return ErrInvalidQuantity
			}
			item, ok := itemByID[r.ItemID]
			if !ok {
				return fmt.Errorf("%w: 订单行 %s 不存在", repository.ErrNotFound, r.ItemID)
			}
			if item.ReceivedQty+r.ReceivedQty > item.Quantity {
				return fmt.Errorf("订单行 %s %w", item.ID, ErrAllocationMismatch)
			}

			lotNo := r.LotNo
			if lotNo == "" {
				lotNo = generateLotNo()
			}

			var lot entity.InventoryLot
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", item.MaterialID, req.WarehouseID, lotNo).
				First(&lot).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				lot = entity.InventoryLot{
					ID:          uuid.New().String(),
					MaterialID:  item.MaterialID,
					WarehouseID: req.WarehouseID,
					LotNo:       lotNo,
					Quantity:    r.ReceivedQty,
					UnitCost:    item.UnitPrice,
					MfgDate:     r.MfgDate,
					ExpDate:     r.ExpDate,
					LastMovedAt: &now,
				}
				if err := tx.Create(&lot).Error; err != nil {
					return fmt.Errorf("创建批次失败: %w", err)
				}
			case err != nil:
				return err
			default:
				if err := applyLotDelta(tx, &lot, r.ReceivedQty, now); err != nil {
					return err
				}
			}

			record := entity.InventoryTransaction{
				ID:              uuid.New().String(),
				InventoryID:     lot.ID,
				MaterialID:      item.MaterialID,
				WarehouseID:     req.WarehouseID,
				TransactionType: entity.TxTypeIn,
				QuantityChange:  r.ReceivedQty,
				LotNo:           lotNo,
				UnitCost:        item.UnitPrice,
				ReferenceNo:     po.POCode,
				Reason:          "采购收货",
				TransactionDate: now,
				CreatedBy:       userID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("写入流水失败: %w", err)
			}

			item.ReceivedQty += r.ReceivedQty
			status := entity.POItemStatusPartial
			if item.ReceivedQty >= item.Quantity {
				status = entity.POItemStatusReceived
			}
			item.Status = status
			if err := tx.Model(&entity.POItem{}).Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"received_qty": item.ReceivedQty,
					"status":       status,
				}).Error; err != nil {
				return fmt.Errorf("更新订单行失败: %w", err)
			}
		}

		allReceived := true
		for i := range po.Items {
			if po.Items[i].ReceivedQty < po.Items[i].Quantity {
				allReceived = false
				break
			}
		}
		updates := map[string]interface{}{"status": entity.POStatusPartial}
		if allReceived {
			updates["status"] = entity.POStatusReceived
			updates["received_date"] = now
		}
		return tx.Model(&entity.PurchaseOrder{}).Where("id = ?", po.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "purchase_order", po.ID, nil, map[string]interface{}{
		"action": "receive", "warehouse_id": req.WarehouseID, "items": len(req.Items),
	})
	return s.repos.Purchase.FindByID(ctx, po.ID)
}

// Get 订单详情
func (s *ProcurementService) Get(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return s.repos.Purchase.FindByID(ctx, id)
}

// List 订单列表
func (s *ProcurementService) List(ctx context.Context, params repository.POListParams) ([]entity.PurchaseOrder, int64, error) {
	return s.repos.Purchase.List(ctx, params)
}

func (s *ProcurementService) transition(ctx context.Context, id, userID, from, to string, extra map[string]interface{}) (*entity.PurchaseOrder, error) {
	po, err := s.repos.Purchase.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != from {
		return nil, fmt.Errorf("%w: 订单状态为 %s", ErrConflict, po.Status)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrConflict
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "purchase_order", id,
		map[string]interface{}{"status": from}, map[string]interface{}{"status": to})
	return s.repos.Purchase.FindByID(ctx, id)
}
