package entity

import (
	"time"
)

// PlanStatus 生产计划状态
const (
	PlanStatusDraft      = "DRAFT"
	PlanStatusPending    = "PENDING"
	PlanStatusProduction = "PRODUCTION"
	PlanStatusCompleted  = "COMPLETED"
	PlanStatusCancelled  = "CANCELLED"
)

// ProductionPlan 生产计划
type ProductionPlan struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PlanCode      string     `json:"plan_code" gorm:"size:50;not null;uniqueIndex"`
	ProductID     string     `json:"product_id" gorm:"type:uuid;not null;index"`
	InputQty      float64    `json:"input_qty" gorm:"type:decimal(12,4);not null"` // 目标产量
	ActualQty     float64    `json:"actual_qty" gorm:"type:decimal(12,4);default:0"`
	Status        string     `json:"status" gorm:"size:20;not null;default:DRAFT"`
	Priority      int        `json:"priority" gorm:"default:0"` // 0=普通, 1=紧急, 2=特急
	EstimatedCost float64    `json:"estimated_cost" gorm:"type:decimal(12,2);default:0"`
	ActualCost    float64    `json:"actual_cost" gorm:"type:decimal(12,2);default:0"`
	PlannedStart  *time.Time `json:"planned_start"`
	PlannedEnd    *time.Time `json:"planned_end"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CancelReason  string     `json:"cancel_reason" gorm:"type:text"`
	Notes         string     `json:"notes" gorm:"type:text"`
	CreatedBy     string     `json:"created_by" gorm:"size:64;not null"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at" gorm:"index"`

	Product     *Product                 `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Allocations []PlanMaterialAllocation `json:"allocations,omitempty" gorm:"foreignKey:PlanID"`
}

func (ProductionPlan) TableName() string {
	return "mrp_production_plans"
}

// PlanMaterialAllocation 计划物料分配。
// 确认计划时按批次写入，生产消耗/退回时更新，永不删除。
// 不变量: used_qty + returned_qty <= allocated_qty
type PlanMaterialAllocation struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PlanID       string    `json:"plan_id" gorm:"type:uuid;not null;index"`
	MaterialID   string    `json:"material_id" gorm:"type:uuid;not null;index"`
	WarehouseID  string    `json:"warehouse_id" gorm:"type:uuid;not null"`
	InventoryID  string    `json:"inventory_id" gorm:"type:uuid;not null"` // 预留的具体批次
	AllocatedQty float64   `json:"allocated_qty" gorm:"type:decimal(12,4);not null"`
	UsedQty      float64   `json:"used_qty" gorm:"type:decimal(12,4);default:0"`
	ReturnedQty  float64   `json:"returned_qty" gorm:"type:decimal(12,4);default:0"`
	UnitCost     float64   `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Material *MaterialMaster `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
	Lot      *InventoryLot   `json:"lot,omitempty" gorm:"foreignKey:InventoryID"`
}

func (PlanMaterialAllocation) TableName() string {
	return "mrp_plan_material_allocations"
}
