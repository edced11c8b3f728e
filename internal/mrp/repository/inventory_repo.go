package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// FindLotByKey 按 (物料, 仓库, 批次号) 查找批次
func (r *InventoryRepository) FindLotByKey(ctx context.Context, materialID, warehouseID, lotNo string) (*entity.InventoryLot, error) {
	var lot entity.InventoryLot
	err := r.db.WithContext(ctx).
		Where("material_id = ? AND warehouse_id = ? AND lot_no = ?", materialID, warehouseID, lotNo).
		First(&lot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindLotByID 按ID查找批次
func (r *InventoryRepository) FindLotByID(ctx context.Context, id string) (*entity.InventoryLot, error) {
	var lot entity.InventoryLot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

type LotListParams struct {
	MaterialID  string
	WarehouseID string
	LotNo       string
	NonZeroOnly bool
	Page        int
	Size        int
}

// ListLots 批次维度库存查询（余额表）
func (r *InventoryRepository) ListLots(ctx context.Context, params LotListParams) ([]entity.InventoryLot, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryLot{})
	if params.MaterialID != "" {
		query = query.Where("material_id = ?", params.MaterialID)
	}
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.LotNo != "" {
		query = query.Where("lot_no = ?", params.LotNo)
	}
	if params.NonZeroOnly {
		query = query.Where("quantity > 0")
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var lots []entity.InventoryLot
	err := query.Preload("Material").Preload("Warehouse").
		Order("updated_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&lots).Error
	return lots, total, err
}

// WarehouseBalance 单仓余额
type WarehouseBalance struct {
	WarehouseID   string  `json:"warehouse_id"`
	WarehouseName string  `json:"warehouse_name"`
	Quantity      float64 `json:"quantity"`
	ReservedQty   float64 `json:"reserved_qty"`
	AvailableQty  float64 `json:"available_qty"`
}

// MaterialBalance 物料汇总余额（含分仓明细）
type MaterialBalance struct {
	MaterialID   string             `json:"material_id"`
	MaterialCode string             `json:"material_code"`
	MaterialName string             `json:"material_name"`
	Quantity     float64            `json:"quantity"`
	ReservedQty  float64            `json:"reserved_qty"`
	AvailableQty float64            `json:"available_qty"`
	Warehouses   []WarehouseBalance `json:"warehouses"`
}

// GetTotalBalance 物料汇总余额，跨仓合计并附每仓明细
func (r *InventoryRepository) GetTotalBalance(ctx context.Context, materialID, warehouseID string) ([]MaterialBalance, error) {
	type row struct {
		MaterialID    string
		MaterialCode  string
		MaterialName  string
		WarehouseID   string
		WarehouseName string
		Quantity      float64
		ReservedQty   float64
	}

	query := r.db.WithContext(ctx).Table("mrp_material_inventory i").
		Select(`i.material_id, m.code AS material_code, m.name AS material_name,
			i.warehouse_id, w.name AS warehouse_name,
			SUM(i.quantity) AS quantity, SUM(i.reserved_qty) AS reserved_qty`).
		Joins("JOIN mrp_material_masters m ON m.id = i.material_id").
		Joins("JOIN mrp_warehouses w ON w.id = i.warehouse_id").
		Group("i.material_id, m.code, m.name, i.warehouse_id, w.name").
		Order("m.code, w.name")
	if materialID != "" {
		query = query.Where("i.material_id = ?", materialID)
	}
	if warehouseID != "" {
		query = query.Where("i.warehouse_id = ?", warehouseID)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	// 按物料聚合
	var balances []MaterialBalance
	index := make(map[string]int)
	for _, rw := range rows {
		pos, ok := index[rw.MaterialID]
		if !ok {
			balances = append(balances, MaterialBalance{
				MaterialID:   rw.MaterialID,
				MaterialCode: rw.MaterialCode,
				MaterialName: rw.MaterialName,
			})
			pos = len(balances) - 1
			index[rw.MaterialID] = pos
		}
		balances[pos].Quantity += rw.Quantity
		balances[pos].ReservedQty += rw.ReservedQty
		balances[pos].AvailableQty = balances[pos].Quantity - balances[pos].ReservedQty
		balances[pos].Warehouses = append(balances[pos].Warehouses, WarehouseBalance{
			WarehouseID:   rw.WarehouseID,
			WarehouseName: rw.WarehouseName,
			Quantity:      rw.Quantity,
			ReservedQty:   rw.ReservedQty,
			AvailableQty:  rw.Quantity - rw.ReservedQty,
		})
	}
	return balances, nil
}

// GetTotalAvailable 物料跨仓可用量
func (r *InventoryRepository) GetTotalAvailable(ctx context.Context, materialID string) (float64, error) {
	var result struct{ Total float64 }
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(quantity - reserved_qty), 0) AS total
		FROM mrp_material_inventory
		WHERE material_id = ?
	`, materialID).Scan(&result).Error
	return result.Total, err
}

// LowStockAlert 低库存预警
type LowStockAlert struct {
	MaterialID   string  `json:"material_id"`
	MaterialCode string  `json:"material_code"`
	MaterialName string  `json:"material_name"`
	SupplierID   *string `json:"supplier_id"`
	ReorderPoint float64 `json:"reorder_point"`
	LeadTimeDays int     `json:"lead_time_days"`
	CostPerUnit  float64 `json:"cost_per_unit"`
	Quantity     float64 `json:"quantity"`
	ReservedQty  float64 `json:"reserved_qty"`
	AvailableQty float64 `json:"available_qty"`
	IsCritical   bool    `json:"is_critical"`
}

// GetLowStockAlerts 可用量低于订货点的物料；可用量<=0标记critical
func (r *InventoryRepository) GetLowStockAlerts(ctx context.Context, warehouseID string) ([]LowStockAlert, error) {
	query := r.db.WithContext(ctx).Table("mrp_material_masters m").
		Select(`m.id AS material_id, m.code AS material_code, m.name AS material_name,
			m.supplier_id, m.reorder_point, m.lead_time_days, m.cost_per_unit,
			COALESCE(SUM(i.quantity), 0) AS quantity,
			COALESCE(SUM(i.reserved_qty), 0) AS reserved_qty,
			COALESCE(SUM(i.quantity - i.reserved_qty), 0) AS available_qty`).
		Joins("LEFT JOIN mrp_material_inventory i ON i.material_id = m.id"+warehouseFilter(warehouseID), warehouseArgs(warehouseID)...).
		Where("m.deleted_at IS NULL AND m.status = ? AND m.reorder_point > 0", entity.MaterialStatusActive).
		Group("m.id, m.code, m.name, m.supplier_id, m.reorder_point, m.lead_time_days, m.cost_per_unit").
		Having("COALESCE(SUM(i.quantity - i.reserved_qty), 0) <= m.reorder_point").
		Order("m.code")

	var alerts []LowStockAlert
	if err := query.Scan(&alerts).Error; err != nil {
		return nil, err
	}
	for i := range alerts {
		alerts[i].IsCritical = alerts[i].AvailableQty <= 0
	}
	return alerts, nil
}

func warehouseFilter(warehouseID string) string {
	if warehouseID == "" {
		return ""
	}
	return " AND i.warehouse_id = ?"
}

func warehouseArgs(warehouseID string) []interface{} {
	if warehouseID == "" {
		return nil
	}
	return []interface{}{warehouseID}
}

type TransactionListParams struct {
	MaterialID  string
	WarehouseID string
	Type        string
	ReferenceNo string
	Page        int
	Size        int
}

// ListTransactions 交易流水查询
func (r *InventoryRepository) ListTransactions(ctx context.Context, params TransactionListParams) ([]entity.InventoryTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryTransaction{})
	if params.MaterialID != "" {
		query = query.Where("material_id = ?", params.MaterialID)
	}
	if params.WarehouseID != "" {
		query = query.Where("warehouse_id = ?", params.WarehouseID)
	}
	if params.Type != "" {
		query = query.Where("transaction_type = ?", params.Type)
	}
	if params.ReferenceNo != "" {
		query = query.Where("reference_no = ?", params.ReferenceNo)
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var txs []entity.InventoryTransaction
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&txs).Error
	return txs, total, err
}

// HasStock 物料是否存在非零库存（软删除校验用）
func (r *InventoryRepository) HasStock(ctx context.Context, materialID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.InventoryLot{}).
		Where("material_id = ? AND quantity > 0", materialID).
		Count(&count).Error
	return count > 0, err
}

// DB 返回底层db用于事务
func (r *InventoryRepository) DB() *gorm.DB {
	return r.db
}
