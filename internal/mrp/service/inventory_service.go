package service

import (
	"context"
	"fmt"
	"sort"
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

// InventoryService 库存台账服务。
// 所有库存变动走事务：锁批次行、更新余额、追加流水。
type InventoryService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	cfg    *config.Config
	audit  *AuditService
	logger *zap.Logger
}

func NewInventoryService(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, audit *AuditService, logger *zap.Logger) *InventoryService {
	return &InventoryService{db: db, repos: repos, cfg: cfg, audit: audit, logger: logger}
}

// GoodsReceiptRequest 入库请求
type GoodsReceiptRequest struct {
	MaterialID  string     `json:"material_id" binding:"required"`
	WarehouseID string     `json:"warehouse_id" binding:"required"`
	LotNo       string     `json:"lot_no"`
	Quantity    float64    `json:"quantity" binding:"required"`
	UnitCost    *float64   `json:"unit_cost"`
	MfgDate     *time.Time `json:"mfg_date"`
	ExpDate     *time.Time `json:"exp_date"`
	ReferenceNo string     `json:"reference_no"`
	Reason      string     `json:"reason"`
}

// GoodsIssueRequest 出库请求。Lots为空时按策略自动选批。
type GoodsIssueRequest struct {
	MaterialID  string           `json:"material_id" binding:"required"`
	WarehouseID string           `json:"warehouse_id" binding:"required"`
	Quantity    float64          `json:"quantity" binding:"required"`
	Strategy    string           `json:"strategy"`
	Lots        []LotConsumption `json:"lots"`
	ReferenceNo string           `json:"reference_no"`
	Reason      string           `json:"reason"`
}

// LotConsumption 指定批次出库明细
type LotConsumption struct {
	LotNo    string  `json:"lot_no" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
}

// TransferRequest 调拨请求
type TransferRequest struct {
	MaterialID      string  `json:"material_id" binding:"required"`
	FromWarehouseID string  `json:"from_warehouse_id" binding:"required"`
	ToWarehouseID   string  `json:"to_warehouse_id" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required"`
	Strategy        string  `json:"strategy"`
	ReferenceNo     string  `json:"reference_no"`
	Reason          string  `json:"reason"`
}

// AdjustRequest 盘点调整请求。QuantityChange为带符号的差异数量，不得为零。
type AdjustRequest struct {
	MaterialID     string  `json:"material_id" binding:"required"`
	WarehouseID    string  `json:"warehouse_id" binding:"required"`
	LotNo          string  `json:"lot_no" binding:"required"`
	QuantityChange float64 `json:"quantity_change" binding:"required"`
	ReferenceNo    string  `json:"reference_no"`
	Reason         string  `json:"reason" binding:"required"`
}

// GoodsReceipt 入库。同 (物料,仓库,批次) 存在则累加，否则建新批次。
func (s *InventoryService) GoodsReceipt(ctx context.Context, userID string, req *GoodsReceiptRequest) (*entity.InventoryTransaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	material, err := s.repos.Material.FindByID(ctx, req.MaterialID)
	if err != nil {
		return nil, fmt.Errorf("物料不存在: %w", err)
	}
	if _, err := s.repos.Warehouse.FindByID(ctx, req.WarehouseID); err != nil {
		return nil, fmt.Errorf("仓库不存在: %w", err)
	}

	lotNo := req.LotNo
	if lotNo == "" {
		lotNo = generateLotNo()
	}
	unitCost := material.CostPerUnit
	if req.UnitCost != nil {
		unitCost = *req.UnitCost
	}
	expDate := req.ExpDate
	if expDate == nil && req.MfgDate != nil && material.LifetimeDays > 0 {
		d := req.MfgDate.AddDate(0, 0, material.LifetimeDays)
		expDate = &d
	}

	var txRecord *entity.InventoryTransaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var lot entity.InventoryLot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", req.MaterialID, req.WarehouseID, lotNo).
			First(&lot).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			lot = entity.InventoryLot{
				ID:          uuid.New().String(),
				MaterialID:  req.MaterialID,
				WarehouseID: req.WarehouseID,
				LotNo:       lotNo,
				Quantity:    req.Quantity,
				UnitCost:    unitCost,
				MfgDate:     req.MfgDate,
				ExpDate:     expDate,
				LastMovedAt: &now,
			}
			if err := tx.Create(&lot).Error; err != nil {
				return fmt.Errorf("创建批次失败: %w", err)
			}
		case err != nil:
			return err
		default:
			updates := map[string]interface{}{
				"quantity":      gorm.Expr("quantity + ?", req.Quantity),
				"last_moved_at": now,
			}
			if req.UnitCost != nil {
				updates["unit_cost"] = *req.UnitCost
			}
			if err := tx.Model(&lot).Updates(updates).Error; err != nil {
				return fmt.Errorf("更新批次失败: %w", err)
			}
		}

		txRecord = &entity.InventoryTransaction{
			ID:              uuid.New().String(),
			InventoryID:     lot.ID,
			MaterialID:      req.MaterialID,
			WarehouseID:     req.WarehouseID,
			TransactionType: entity.TxTypeIn,
			QuantityChange:  req.Quantity,
			LotNo:           lotNo,
			UnitCost:        unitCost,
			ReferenceNo:     referenceOr(req.ReferenceNo, "GR"),
			Reason:          req.Reason,
			TransactionDate: now,
			CreatedBy:       userID,
		}
		if err := tx.Create(txRecord).Error; err != nil {
			return fmt.Errorf("写入流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "inventory_transaction", txRecord.ID, nil, map[string]interface{}{
		"type": entity.TxTypeIn, "material_id": req.MaterialID, "quantity": req.Quantity, "lot_no": lotNo,
	})
	return txRecord, nil
}

// GoodsIssue 出库。返回写入的流水（可能多条，对应多个批次）。
func (s *InventoryService) GoodsIssue(ctx context.Context, userID string, req *GoodsIssueRequest) ([]entity.InventoryTransaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	refNo := referenceOr(req.ReferenceNo, "GI")
	var records []entity.InventoryTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumptions, err := s.resolveConsumptions(tx, req)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range consumptions {
			if err := applyLotDelta(tx, c.lot, -c.qty, now); err != nil {
				return err
			}
			record := entity.InventoryTransaction{
				ID:              uuid.New().String(),
				InventoryID:     c.lot.ID,
				MaterialID:      req.MaterialID,
				WarehouseID:     req.WarehouseID,
				TransactionType: entity.TxTypeOut,
				QuantityChange:  -c.qty,
				LotNo:           c.lot.LotNo,
				UnitCost:        c.lot.UnitCost,
				ReferenceNo:     refNo,
				Reason:          req.Reason,
				TransactionDate: now,
				CreatedBy:       userID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("写入流水失败: %w", err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "inventory_transaction", refNo, nil, map[string]interface{}{
		"type": entity.TxTypeOut, "material_id": req.MaterialID, "quantity": req.Quantity,
	})
	return records, nil
}

// Transfer 仓库间调拨。出入流水共享同一单号，源仓批次属性原样带到目标仓。
func (s *InventoryService) Transfer(ctx context.Context, userID string, req *TransferRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return "", ErrInvalidTransfer
	}
	if _, err := s.repos.Warehouse.FindByID(ctx, req.ToWarehouseID); err != nil {
		return "", fmt.Errorf("目标仓库不存在: %w", err)
	}

	refNo := referenceOr(req.ReferenceNo, "TF")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumptions, err := s.resolveConsumptions(tx, &GoodsIssueRequest{
			MaterialID:  req.MaterialID,
			WarehouseID: req.FromWarehouseID,
			Quantity:    req.Quantity,
			Strategy:    req.Strategy,
		})
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range consumptions {
			if err := applyLotDelta(tx, c.lot, -c.qty, now); err != nil {
				return err
			}
			out := entity.InventoryTransaction{
				ID:              uuid.New().String(),
				InventoryID:     c.lot.ID,
				MaterialID:      req.MaterialID,
				WarehouseID:     req.FromWarehouseID,
				TransactionType: entity.TxTypeTransferOut,
				QuantityChange:  -c.qty,
				LotNo:           c.lot.LotNo,
				UnitCost:        c.lot.UnitCost,
				ReferenceNo:     refNo,
				Reason:          req.Reason,
				TransactionDate: now,
				CreatedBy:       userID,
			}
			if err := tx.Create(&out).Error; err != nil {
				return fmt.Errorf("写入调出流水失败: %w", err)
			}

			// 目标仓同批次号累加，保留生产/效期
			var dest entity.InventoryLot
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", req.MaterialID, req.ToWarehouseID, c.lot.LotNo).
				First(&dest).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				dest = entity.InventoryLot{
					ID:          uuid.New().String(),
					MaterialID:  req.MaterialID,
					WarehouseID: req.ToWarehouseID,
					LotNo:       c.lot.LotNo,
					Quantity:    c.qty,
					UnitCost:    c.lot.UnitCost,
					MfgDate:     c.lot.MfgDate,
					ExpDate:     c.lot.ExpDate,
					LastMovedAt: &now,
				}
				if err := tx.Create(&dest).Error; err != nil {
					return fmt.Errorf("创建目标批次失败: %w", err)
				}
			case err != nil:
				return err
			default:
				if err := applyLotDelta(tx, &dest, c.qty, now); err != nil {
					return err
				}
			}

			in := entity.InventoryTransaction{
				ID:              uuid.New().String(),
				InventoryID:     dest.ID,
				MaterialID:      req.MaterialID,
				WarehouseID:     req.ToWarehouseID,
				TransactionType: entity.TxTypeTransferIn,
				QuantityChange:  c.qty,
				LotNo:           c.lot.LotNo,
				UnitCost:        c.lot.UnitCost,
				ReferenceNo:     refNo,
				Reason:          req.Reason,
				TransactionDate: now,
				CreatedBy:       userID,
			}
			if err := tx.Create(&in).Error; err != nil {
				return fmt.Errorf("写入调入流水失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "inventory_transfer", refNo, nil, map[string]interface{}{
		"material_id": req.MaterialID, "from": req.FromWarehouseID, "to": req.ToWarehouseID, "quantity": req.Quantity,
	})
	return refNo, nil
}

// Adjust 盘点调整：按带符号差异修正指定批次，写盘盈/盘亏流水。
func (s *InventoryService) Adjust(ctx context.Context, userID string, req *AdjustRequest) (*entity.InventoryTransaction, error) {
	if req.QuantityChange == 0 {
		return nil, ErrInvalidQuantity
	}

	var record *entity.InventoryTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lot entity.InventoryLot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", req.MaterialID, req.WarehouseID, req.LotNo).
			First(&lot).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return repository.ErrNotFound
			}
			return err
		}

		newQty := lot.Quantity + req.QuantityChange
		if newQty < 0 {
			return fmt.Errorf("%w: 调整后数量为负", ErrInsufficientStock)
		}
		if newQty < lot.ReservedQty {
			return fmt.Errorf("%w: 调整后数量低于已预留量", ErrInsufficientStock)
		}

		now := time.Now()
		if err := tx.Model(&lot).Updates(map[string]interface{}{
			"quantity":      gorm.Expr("quantity + ?", req.QuantityChange),
			"last_moved_at": now,
		}).Error; err != nil {
			return fmt.Errorf("更新批次失败: %w", err)
		}

		txType := entity.TxTypeAdjustmentIn
		if req.QuantityChange < 0 {
			txType = entity.TxTypeAdjustmentOut
		}
		record = &entity.InventoryTransaction{
			ID:              uuid.New().String(),
			InventoryID:     lot.ID,
			MaterialID:      req.MaterialID,
			WarehouseID:     req.WarehouseID,
			TransactionType: txType,
			QuantityChange:  req.QuantityChange,
			LotNo:           req.LotNo,
			UnitCost:        lot.UnitCost,
			ReferenceNo:     referenceOr(req.ReferenceNo, "ADJ"),
			Reason:          req.Reason,
			TransactionDate: now,
			CreatedBy:       userID,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("写入流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "inventory_lot", req.LotNo, nil, map[string]interface{}{
		"material_id": req.MaterialID, "quantity_change": req.QuantityChange, "reason": req.Reason,
	})
	return record, nil
}

// LotSuggestion 批次选择建议
type LotSuggestion struct {
	InventoryID string     `json:"inventory_id"`
	WarehouseID string     `json:"warehouse_id"`
	LotNo       string     `json:"lot_no"`
	Quantity    float64    `json:"quantity"`
	Available   float64    `json:"available"`
	TakeQty     float64    `json:"take_qty"`
	UnitCost    float64    `json:"unit_cost"`
	MfgDate     *time.Time `json:"mfg_date"`
	ExpDate     *time.Time `json:"exp_date"`
}

// SuggestLots 按策略给出出库批次建议，不落库。仓库为空时跨仓选批。
func (s *InventoryService) SuggestLots(ctx context.Context, materialID, warehouseID string, quantity float64, strategy string) ([]LotSuggestion, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	query := s.db.WithContext(ctx).
		Where("material_id = ? AND quantity - reserved_qty > 0", materialID)
	if warehouseID != "" {
		query = query.Where("warehouse_id = ?", warehouseID)
	}
	var lots []entity.InventoryLot
	if err := query.Find(&lots).Error; err != nil {
		return nil, err
	}

	sortLotsByStrategy(lots, s.effectiveStrategy(strategy))

	var suggestions []LotSuggestion
	remaining := quantity
	for i := range lots {
		if remaining <= 0 {
			break
		}
		take := lots[i].AvailableQty()
		if take > remaining {
			take = remaining
		}
		suggestions = append(suggestions, LotSuggestion{
			InventoryID: lots[i].ID,
			WarehouseID: lots[i].WarehouseID,
			LotNo:       lots[i].LotNo,
			Quantity:    lots[i].Quantity,
			Available:   lots[i].AvailableQty(),
			TakeQty:     take,
			UnitCost:    lots[i].UnitCost,
			MfgDate:     lots[i].MfgDate,
			ExpDate:     lots[i].ExpDate,
		})
		remaining -= take
	}
	if remaining > 0 {
		return nil, ErrInsufficientStock
	}
	return suggestions, nil
}

type lotConsumption struct {
	lot *entity.InventoryLot
	qty float64
}

// resolveConsumptions 锁定并返回出库批次。指定批次按给定明细校验，
// 未指定则按策略自动选批。批次按ID升序加锁避免死锁。
func (s *InventoryService) resolveConsumptions(tx *gorm.DB, req *GoodsIssueRequest) ([]lotConsumption, error) {
	if len(req.Lots) > 0 {
		// 十进制累加，避免浮点误差误判
		total := decimal.Zero
		for _, l := range req.Lots {
			if l.Quantity <= 0 {
				return nil, ErrInvalidQuantity
			}
			total = total.Add(decimal.NewFromFloat(l.Quantity))
		}
		if !total.Equal(decimal.NewFromFloat(req.Quantity)) {
			return nil, ErrAllocationMismatch
		}

		sorted := make([]LotConsumption, len(req.Lots))
		copy(sorted, req.Lots)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].LotNo < sorted[j].LotNo })

		var result []lotConsumption
		for _, l := range sorted {
			var lot entity.InventoryLot
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", req.MaterialID, req.WarehouseID, l.LotNo).
				First(&lot).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return nil, repository.ErrNotFound
				}
				return nil, err
			}
			if lot.AvailableQty() < l.Quantity {
				return nil, fmt.Errorf("批次 %s %w", lot.LotNo, ErrInsufficientStock)
			}
			lotCopy := lot
			result = append(result, lotConsumption{lot: &lotCopy, qty: l.Quantity})
		}
		return result, nil
	}

	var lots []entity.InventoryLot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("material_id = ? AND warehouse_id = ? AND quantity - reserved_qty > 0", req.MaterialID, req.WarehouseID).
		Order("id").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}

	sortLotsByStrategy(lots, s.effectiveStrategy(req.Strategy))

	var result []lotConsumption
	remaining := req.Quantity
	for i := range lots {
		if remaining <= 0 {
			break
		}
		take := lots[i].AvailableQty()
		if take > remaining {
			take = remaining
		}
		result = append(result, lotConsumption{lot: &lots[i], qty: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, ErrInsufficientStock
	}
	return result, nil
}

func (s *InventoryService) effectiveStrategy(strategy string) string {
	if strategy != "" {
		return strategy
	}
	if s.cfg != nil && s.cfg.MRP.LotStrategy != "" {
		return s.cfg.MRP.LotStrategy
	}
	return entity.LotStrategyFEFO
}

// sortLotsByStrategy 批次排序。FEFO按效期升序（无效期排最后），
// FIFO按生产日期升序，LIFO按生产日期降序。同序按批次号稳定。
func sortLotsByStrategy(lots []entity.InventoryLot, strategy string) {
	less := func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch strategy {
		case entity.LotStrategyFEFO:
			switch {
			case a.ExpDate == nil && b.ExpDate == nil:
			case a.ExpDate == nil:
				return false
			case b.ExpDate == nil:
				return true
			case !a.ExpDate.Equal(*b.ExpDate):
				return a.ExpDate.Before(*b.ExpDate)
			}
		case entity.LotStrategyLIFO:
			switch {
			case a.MfgDate == nil && b.MfgDate == nil:
			case a.MfgDate == nil:
				return false
			case b.MfgDate == nil:
				return true
			case !a.MfgDate.Equal(*b.MfgDate):
				return a.MfgDate.After(*b.MfgDate)
			}
		default: // FIFO
			switch {
			case a.MfgDate == nil && b.MfgDate == nil:
			case a.MfgDate == nil:
				return false
			case b.MfgDate == nil:
				return true
			case !a.MfgDate.Equal(*b.MfgDate):
				return a.MfgDate.Before(*b.MfgDate)
			}
		}
		return a.LotNo < b.LotNo
	}
	sort.SliceStable(lots, less)
}

// applyLotDelta 在锁内更新批次余额，出库时校验可用量。
func applyLotDelta(tx *gorm.DB, lot *entity.InventoryLot, delta float64, now time.Time) error {
	if delta < 0 && lot.AvailableQty() < -delta {
		return fmt.Errorf("批次 %s %w", lot.LotNo, ErrInsufficientStock)
	}
	if err := tx.Model(lot).Updates(map[string]interface{}{
		"quantity":      gorm.Expr("quantity + ?", delta),
		"last_moved_at": now,
	}).Error; err != nil {
		return fmt.Errorf("更新批次失败: %w", err)
	}
	lot.Quantity += delta
	return nil
}

// ListLots 批次库存
func (s *InventoryService) ListLots(ctx context.Context, params repository.LotListParams) ([]entity.InventoryLot, int64, error) {
	if s.cfg != nil && !s.cfg.MRP.RetainEmptyLots {
		params.NonZeroOnly = true
	}
	return s.repos.Inventory.ListLots(ctx, params)
}

// GetBalances 物料汇总余额
func (s *InventoryService) GetBalances(ctx context.Context, materialID, warehouseID string) ([]repository.MaterialBalance, error) {
	return s.repos.Inventory.GetTotalBalance(ctx, materialID, warehouseID)
}

// GetLowStockAlerts 低库存预警
func (s *InventoryService) GetLowStockAlerts(ctx context.Context, warehouseID string) ([]repository.LowStockAlert, error) {
	return s.repos.Inventory.GetLowStockAlerts(ctx, warehouseID)
}

// ListTransactions 交易流水
func (s *InventoryService) ListTransactions(ctx context.Context, params repository.TransactionListParams) ([]entity.InventoryTransaction, int64, error) {
	return s.repos.Inventory.ListTransactions(ctx, params)
}

func generateLotNo() string {
	return fmt.Sprintf("LOT-%s-%s", time.Now().Format("20060102"), uuid.New().String()[:8])
}

func referenceOr(refNo, prefix string) string {
	if refNo != "" {
		return refNo
	}
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), uuid.New().String()[:8])
}
