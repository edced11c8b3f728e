package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories MRP仓库集合
type Repositories struct {
	Material  *MaterialRepository
	Warehouse *WarehouseRepository
	Supplier  *SupplierRepository
	Inventory *InventoryRepository
	Product   *ProductRepository
	Plan      *PlanRepository
	Purchase  *PurchaseRepository
	AuditLog  *AuditLogRepository
	User      *UserRepository
}

// NewRepositories 创建MRP仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Material:  NewMaterialRepository(db),
		Warehouse: NewWarehouseRepository(db),
		Supplier:  NewSupplierRepository(db),
		Inventory: NewInventoryRepository(db),
		Product:   NewProductRepository(db),
		Plan:      NewPlanRepository(db),
		Purchase:  NewPurchaseRepository(db),
		AuditLog:  NewAuditLogRepository(db),
		User:      NewUserRepository(db),
	}
}
