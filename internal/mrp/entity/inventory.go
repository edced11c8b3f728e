package entity

import (
	"time"
)

// TransactionType 库存交易类型
const (
	TxTypeIn            = "IN"             // 入库
	TxTypeOut           = "OUT"            // 出库
	TxTypeAdjustmentIn  = "ADJUSTMENT_IN"  // 盘盈调整
	TxTypeAdjustmentOut = "ADJUSTMENT_OUT" // 盘亏调整
	TxTypeTransferIn    = "TRANSFER_IN"    // 调拨入库
	TxTypeTransferOut   = "TRANSFER_OUT"   // 调拨出库
)

// LotStrategy 批次选择策略
const (
	LotStrategyFIFO = "FIFO" // 先产先出
	LotStrategyFEFO = "FEFO" // 先到效期先出
	LotStrategyLIFO = "LIFO" // 后产先出
)

// InventoryLot 库存批次，按 (物料, 仓库, 批次号) 唯一。
// 耗尽批次保留为零库存行，批次号/效期作为历史追溯依据。
type InventoryLot struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	MaterialID  string     `json:"material_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_lot,priority:1"`
	WarehouseID string     `json:"warehouse_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_lot,priority:2"`
	LotNo       string     `json:"lot_no" gorm:"size:64;not null;uniqueIndex:uniq_lot,priority:3"`
	Quantity    float64    `json:"quantity" gorm:"type:decimal(12,4);not null;default:0"`
	ReservedQty float64    `json:"reserved_qty" gorm:"type:decimal(12,4);not null;default:0"`
	UnitCost    float64    `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`
	MfgDate     *time.Time `json:"mfg_date"`
	ExpDate     *time.Time `json:"exp_date"`
	LastMovedAt *time.Time `json:"last_moved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Material  *MaterialMaster `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
	Warehouse *Warehouse      `json:"warehouse,omitempty" gorm:"foreignKey:WarehouseID"`
}

func (InventoryLot) TableName() string {
	return "mrp_material_inventory"
}

// AvailableQty 可用量 = 在库量 - 预留量
func (l *InventoryLot) AvailableQty() float64 {
	return l.Quantity - l.ReservedQty
}

// InventoryTransaction 库存交易流水，只增不改
type InventoryTransaction struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	InventoryID     string    `json:"inventory_id" gorm:"type:uuid;not null;index"`
	MaterialID      string    `json:"material_id" gorm:"type:uuid;not null;index"`
	WarehouseID     string    `json:"warehouse_id" gorm:"type:uuid;not null;index"`
	TransactionType string    `json:"transaction_type" gorm:"size:20;not null"`
	QuantityChange  float64   `json:"quantity_change" gorm:"type:decimal(12,4);not null"` // 正=入，负=出
	LotNo           string    `json:"lot_no" gorm:"size:64"`
	UnitCost        float64   `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`
	ReferenceNo     string    `json:"reference_no" gorm:"size:64;not null;index"` // 调拨出入对共享同一单号
	Reason          string    `json:"reason" gorm:"type:text"`
	TransactionDate time.Time `json:"transaction_date" gorm:"not null"`
	CreatedBy       string    `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time `json:"created_at"`

	Warehouse *Warehouse `json:"warehouse,omitempty" gorm:"foreignKey:WarehouseID"`
}

func (InventoryTransaction) TableName() string {
	return "mrp_inventory_transactions"
}
