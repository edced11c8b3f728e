package service

import (
	"context"
	"errors"
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

// PlanService 生产计划。
// 状态机: DRAFT -> PENDING -> PRODUCTION -> COMPLETED
// DRAFT/PENDING/PRODUCTION 可取消。确认时按批次预留物料并转待产，
// 开工仅做状态迁移，不动库存。
type PlanService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	cfg       *config.Config
	bom       *BOMService
	inventory *InventoryService
	audit     *AuditService
	logger    *zap.Logger
}

func NewPlanService(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, bom *BOMService, inventory *InventoryService, audit *AuditService, logger *zap.Logger) *PlanService {
	return &PlanService{db: db, repos: repos, cfg: cfg, bom: bom, inventory: inventory, audit: audit, logger: logger}
}

// CreatePlanRequest 创建计划请求
type CreatePlanRequest struct {
	ProductID    string     `json:"product_id" binding:"required"`
	InputQty     float64    `json:"input_qty" binding:"required"`
	Priority     int        `json:"priority"`
	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
	Notes        string     `json:"notes"`
}

// UpdatePlanRequest 更新计划请求，仅草稿可改
type UpdatePlanRequest struct {
	InputQty     *float64   `json:"input_qty"`
	Priority     *int       `json:"priority"`
	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
	Notes        *string    `json:"notes"`
}

// ConfirmPlanRequest 确认投产请求。Allocations为空时按默认策略跨仓自动选批。
type ConfirmPlanRequest struct {
	Allocations []PlanAllocationRequest `json:"allocations"`
}

// PlanAllocationRequest 指定物料在某仓的预留数量
type PlanAllocationRequest struct {
	MaterialID  string  `json:"material_id" binding:"required"`
	WarehouseID string  `json:"warehouse_id" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required"`
}

// CompletePlanRequest 完工请求
type CompletePlanRequest struct {
	ActualQty float64           `json:"actual_qty" binding:"required"`
	Usages    []AllocationUsage `json:"usages"`
}

// AllocationUsage 完工时的分配消耗明细，缺省整单耗用
type AllocationUsage struct {
	AllocationID string  `json:"allocation_id" binding:"required"`
	UsedQty      float64 `json:"used_qty"`
}

// Create 创建草稿计划，按激活BOM预估成本
func (s *PlanService) Create(ctx context.Context, userID string, req *CreatePlanRequest) (*entity.ProductionPlan, error) {
	if req.InputQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.repos.Product.FindByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("产品不存在: %w", err)
	}

	requirements, err := s.bom.ComputeRequirements(ctx, req.ProductID, req.InputQty)
	if err != nil {
		return nil, err
	}

	code, err := s.repos.Plan.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成计划编码失败: %w", err)
	}

	plan := &entity.ProductionPlan{
		ID:            uuid.New().String(),
		PlanCode:      code,
		ProductID:     req.ProductID,
		InputQty:      req.InputQty,
		Status:        entity.PlanStatusDraft,
		Priority:      req.Priority,
		EstimatedCost: requirements.EstimatedCost,
		PlannedStart:  req.PlannedStart,
		PlannedEnd:    req.PlannedEnd,
		Notes:         req.Notes,
		CreatedBy:     userID,
	}
	if err := s.repos.Plan.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("创建计划失败: %w", err)
	}

	s.audit.Record(ctx, userID, entity.AuditActionCreate, "production_plan", plan.ID, nil, map[string]interface{}{
		"plan_code": code, "product_id": req.ProductID, "input_qty": req.InputQty,
	})
	return plan, nil
}

// Update 更新草稿，产量变更时重算预估成本
func (s *PlanService) Update(ctx context.Context, id, userID string, req *UpdatePlanRequest) (*entity.ProductionPlan, error) {
	plan, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != entity.PlanStatusDraft {
		return nil, fmt.Errorf("%w: 仅草稿计划可修改", ErrConflict)
	}

	if req.InputQty != nil {
		if *req.InputQty <= 0 {
			return nil, ErrInvalidQuantity
		}
		plan.InputQty = *req.InputQty
		requirements, err := s.bom.ComputeRequirements(ctx, plan.ProductID, plan.InputQty)
		if err != nil {
			return nil, err
		}
		plan.EstimatedCost = requirements.EstimatedCost
	}
	if req.Priority != nil {
		plan.Priority = *req.Priority
	}
	if req.PlannedStart != nil {
		plan.PlannedStart = req.PlannedStart
	}
	if req.PlannedEnd != nil {
		plan.PlannedEnd = req.PlannedEnd
	}
	if req.Notes != nil {
		plan.Notes = *req.Notes
	}

	if err := s.repos.Plan.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("更新计划失败: %w", err)
	}
	return plan, nil
}

// Confirm 确认投产并预留物料。调用方可逐物料指定仓库与数量，
// 各物料分配合计必须等于BOM需求；未指定时按默认策略跨仓自动选批。
// 任一物料不足则整单回滚，计划留在草稿。
func (s *PlanService) Confirm(ctx context.Context, id, userID string, req *ConfirmPlanRequest) (*entity.ProductionPlan, error) {
	plan, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != entity.PlanStatusDraft {
		return nil, fmt.Errorf("%w: 计划状态为 %s", ErrConflict, plan.Status)
	}

	requirements, err := s.bom.ComputeRequirements(ctx, plan.ProductID, plan.InputQty)
	if err != nil {
		return nil, err
	}

	var explicit []PlanAllocationRequest
	if req != nil {
		explicit = req.Allocations
	}
	if len(explicit) > 0 {
		if err := validateAllocations(explicit, requirements.Requirements); err != nil {
			return nil, err
		}
	}

	strategy := entity.LotStrategyFEFO
	if s.cfg != nil && s.cfg.MRP.LotStrategy != "" {
		strategy = s.cfg.MRP.LotStrategy
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(explicit) > 0 {
			// 固定顺序加锁
			entries := make([]PlanAllocationRequest, len(explicit))
			copy(entries, explicit)
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].MaterialID != entries[j].MaterialID {
					return entries[i].MaterialID < entries[j].MaterialID
				}
				return entries[i].WarehouseID < entries[j].WarehouseID
			})
			for _, e := range entries {
				if err := s.reserveLots(tx, plan.ID, e.MaterialID, e.WarehouseID, e.Quantity, strategy, now); err != nil {
					return err
				}
			}
		} else {
			for _, r := range requirements.Requirements {
				if err := s.reserveLots(tx, plan.ID, r.MaterialID, "", r.RequiredQty, strategy, now); err != nil {
					if errors.Is(err, ErrInsufficientStock) {
						return fmt.Errorf("物料 %s %w", r.MaterialCode, ErrInsufficientStock)
					}
					return err
				}
			}
		}

		result := tx.Model(&entity.ProductionPlan{}).
			Where("id = ? AND status = ?", plan.ID, entity.PlanStatusDraft).
			Update("status", entity.PlanStatusPending)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "production_plan", plan.ID, map[string]interface{}{
		"status": entity.PlanStatusDraft,
	}, map[string]interface{}{
		"status": entity.PlanStatusPending,
	})
	return s.repos.Plan.FindByID(ctx, plan.ID)
}

// Start 开工，不动库存
func (s *PlanService) Start(ctx context.Context, id, userID string) (*entity.ProductionPlan, error) {
	return s.transition(ctx, id, userID, entity.PlanStatusPending, entity.PlanStatusProduction,
		map[string]interface{}{"started_at": time.Now()})
}

// reserveLots 为计划锁定并预留某物料的批次。warehouseID为空时跨仓选批。
func (s *PlanService) reserveLots(tx *gorm.DB, planID, materialID, warehouseID string, qty float64, strategy string, now time.Time) error {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("material_id = ? AND quantity - reserved_qty > 0", materialID)
	if warehouseID != "" {
		query = query.Where("warehouse_id = ?", warehouseID)
	}
	var lots []entity.InventoryLot
	if err := query.Order("id").Find(&lots).Error; err != nil {
		return err
	}
	sortLotsByStrategy(lots, strategy)

	remaining := decimal.NewFromFloat(qty)
	for i := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.NewFromFloat(lots[i].AvailableQty())
		if take.GreaterThan(remaining) {
			take = remaining
		}
		takeF := take.InexactFloat64()

		if err := tx.Model(&lots[i]).Updates(map[string]interface{}{
			"reserved_qty":  gorm.Expr("reserved_qty + ?", takeF),
			"last_moved_at": now,
		}).Error; err != nil {
			return fmt.Errorf("预留批次失败: %w", err)
		}

		allocation := entity.PlanMaterialAllocation{
			ID:           uuid.New().String(),
			PlanID:       planID,
			MaterialID:   materialID,
			WarehouseID:  lots[i].WarehouseID,
			InventoryID:  lots[i].ID,
			AllocatedQty: takeF,
			UnitCost:     lots[i].UnitCost,
		}
		if err := tx.Create(&allocation).Error; err != nil {
			return fmt.Errorf("写入分配记录失败: %w", err)
		}
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return ErrInsufficientStock
	}
	return nil
}

// validateAllocations 校验各物料分配合计与BOM需求一致
func validateAllocations(allocs []PlanAllocationRequest, requirements []MaterialRequirement) error {
	sums := make(map[string]decimal.Decimal, len(requirements))
	for _, a := range allocs {
		if a.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		sums[a.MaterialID] = sums[a.MaterialID].Add(decimal.NewFromFloat(a.Quantity))
	}
	for _, r := range requirements {
		sum, ok := sums[r.MaterialID]
		if !ok || !sum.Equal(decimal.NewFromFloat(r.RequiredQty)) {
			return fmt.Errorf("物料 %s %w", r.MaterialCode, ErrAllocationMismatch)
		}
		delete(sums, r.MaterialID)
	}
	if len(sums) > 0 {
		return fmt.Errorf("%w: 分配了BOM之外的物料", ErrAllocationMismatch)
	}
	return nil
}

// Complete 完工。按分配记录消耗物料（支持少用退回），
// 写出库流水，余量释放预留，核算实际成本。
func (s *PlanService) Complete(ctx context.Context, id, userID string, req *CompletePlanRequest) (*entity.ProductionPlan, error) {
	if req.ActualQty < 0 {
		return nil, ErrInvalidQuantity
	}

	plan, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != entity.PlanStatusProduction {
		return nil, fmt.Errorf("%w: 计划状态为 %s", ErrConflict, plan.Status)
	}

	usageByID := make(map[string]float64, len(req.Usages))
	for _, u := range req.Usages {
		if u.UsedQty < 0 {
			return nil, ErrInvalidQuantity
		}
		usageByID[u.AllocationID] = u.UsedQty
	}

	now := time.Now()
	actualCost := decimal.Zero
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var allocations []entity.PlanMaterialAllocation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plan_id = ?", plan.ID).
			Order("inventory_id").
			Find(&allocations).Error; err != nil {
			return err
		}

		for i := range allocations {
			a := &allocations[i]
			used := a.AllocatedQty
			if v, ok := usageByID[a.ID]; ok {
				used = v
			}
			if used > a.AllocatedQty {
				return fmt.Errorf("分配 %s %w", a.ID, ErrAllocationMismatch)
			}
			returned := a.AllocatedQty - used

			var lot entity.InventoryLot
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", a.InventoryID).
				First(&lot).Error; err != nil {
				return err
			}

			if err := tx.Model(&lot).Updates(map[string]interface{}{
				"quantity":      gorm.Expr("quantity - ?", used),
				"reserved_qty":  gorm.Expr("reserved_qty - ?", a.AllocatedQty),
				"last_moved_at": now,
			}).Error; err != nil {
				return fmt.Errorf("扣减批次失败: %w", err)
			}

			if used > 0 {
				record := entity.InventoryTransaction{
					ID:              uuid.New().String(),
					InventoryID:     lot.ID,
					MaterialID:      a.MaterialID,
					WarehouseID:     a.WarehouseID,
					TransactionType: entity.TxTypeOut,
					QuantityChange:  -used,
					LotNo:           lot.LotNo,
					UnitCost:        a.UnitCost,
					ReferenceNo:     plan.PlanCode,
					Reason:          "生产消耗",
					TransactionDate: now,
					CreatedBy:       userID,
				}
				if err := tx.Create(&record).Error; err != nil {
					return fmt.Errorf("写入流水失败: %w", err)
				}
			}

			if err := tx.Model(a).Updates(map[string]interface{}{
				"used_qty":     used,
				"returned_qty": returned,
			}).Error; err != nil {
				return fmt.Errorf("更新分配记录失败: %w", err)
			}

			actualCost = actualCost.Add(
				decimal.NewFromFloat(used).Mul(decimal.NewFromFloat(a.UnitCost)))
		}

		return tx.Model(&entity.ProductionPlan{}).Where("id = ? AND status = ?", plan.ID, entity.PlanStatusProduction).
			Updates(map[string]interface{}{
				"status":       entity.PlanStatusCompleted,
				"actual_qty":   req.ActualQty,
				"actual_cost":  actualCost.Round(2).InexactFloat64(),
				"completed_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "production_plan", plan.ID, map[string]interface{}{
		"status": entity.PlanStatusProduction,
	}, map[string]interface{}{
		"status": entity.PlanStatusCompleted, "actual_qty": req.ActualQty,
	})
	return s.repos.Plan.FindByID(ctx, plan.ID)
}

// Cancel 取消计划。已确认的计划释放未消耗的预留，已消耗部分不回冲。
func (s *PlanService) Cancel(ctx context.Context, id, userID, reason string) (*entity.ProductionPlan, error) {
	plan, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch plan.Status {
	case entity.PlanStatusDraft, entity.PlanStatusPending, entity.PlanStatusProduction:
	default:
		return nil, fmt.Errorf("%w: 计划状态为 %s", ErrConflict, plan.Status)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if plan.Status != entity.PlanStatusDraft {
			var allocations []entity.PlanMaterialAllocation
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("plan_id = ?", plan.ID).
				Order("inventory_id").
				Find(&allocations).Error; err != nil {
				return err
			}
			for i := range allocations {
				a := &allocations[i]
				outstanding := a.AllocatedQty - a.UsedQty - a.ReturnedQty
				if outstanding <= 0 {
					continue
				}
				if err := tx.Model(&entity.InventoryLot{}).Where("id = ?", a.InventoryID).
					Updates(map[string]interface{}{
						"reserved_qty":  gorm.Expr("reserved_qty - ?", outstanding),
						"last_moved_at": now,
					}).Error; err != nil {
					return fmt.Errorf("释放预留失败: %w", err)
				}
				if err := tx.Model(a).Update("returned_qty", gorm.Expr("returned_qty + ?", outstanding)).Error; err != nil {
					return fmt.Errorf("更新分配记录失败: %w", err)
				}
			}
		}

		return tx.Model(&entity.ProductionPlan{}).Where("id = ? AND status = ?", plan.ID, plan.Status).
			Updates(map[string]interface{}{
				"status":        entity.PlanStatusCancelled,
				"cancelled_at":  now,
				"cancel_reason": reason,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "production_plan", plan.ID, map[string]interface{}{
		"status": plan.Status,
	}, map[string]interface{}{
		"status": entity.PlanStatusCancelled, "reason": reason,
	})
	return s.repos.Plan.FindByID(ctx, plan.ID)
}

// Duplicate 复制为新草稿，不带分配与实绩
func (s *PlanService) Duplicate(ctx context.Context, id, userID string) (*entity.ProductionPlan, error) {
	src, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, userID, &CreatePlanRequest{
		ProductID:    src.ProductID,
		InputQty:     src.InputQty,
		Priority:     src.Priority,
		PlannedStart: src.PlannedStart,
		PlannedEnd:   src.PlannedEnd,
		Notes:        src.Notes,
	})
}

// Get 计划详情
func (s *PlanService) Get(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	return s.repos.Plan.FindByID(ctx, id)
}

// List 计划列表
func (s *PlanService) List(ctx context.Context, params repository.PlanListParams) ([]entity.ProductionPlan, int64, error) {
	return s.repos.Plan.List(ctx, params)
}

// ListAllocations 计划分配明细
func (s *PlanService) ListAllocations(ctx context.Context, planID string) ([]entity.PlanMaterialAllocation, error) {
	if _, err := s.repos.Plan.FindByID(ctx, planID); err != nil {
		return nil, err
	}
	return s.repos.Plan.ListAllocations(ctx, planID)
}

// transition 简单状态迁移
func (s *PlanService) transition(ctx context.Context, id, userID, from, to string, extra map[string]interface{}) (*entity.ProductionPlan, error) {
	plan, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != from {
		return nil, fmt.Errorf("%w: 计划状态为 %s", ErrConflict, plan.Status)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.WithContext(ctx).Model(&entity.ProductionPlan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrConflict
	}

	s.audit.Record(ctx, userID, entity.AuditActionUpdate, "production_plan", id,
		map[string]interface{}{"status": from}, map[string]interface{}{"status": to})
	return s.repos.Plan.FindByID(ctx, id)
}
