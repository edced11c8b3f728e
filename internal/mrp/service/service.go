package service

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-mrp/internal/config"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// Services MRP服务集合
type Services struct {
	Material    *MaterialService
	Warehouse   *WarehouseService
	Supplier    *SupplierService
	Inventory   *InventoryService
	BOM         *BOMService
	Plan        *PlanService
	Procurement *ProcurementService
	Audit       *AuditService
	User        *UserService
	Auth        *AuthService
	Dashboard   *DashboardService
}

// NewServices 创建MRP服务集合
func NewServices(db *gorm.DB, rdb *redis.Client, repos *repository.Repositories, cfg *config.Config, logger *zap.Logger) *Services {
	audit := NewAuditService(repos.AuditLog, repos.User, logger)
	inventory := NewInventoryService(db, repos, cfg, audit, logger)
	bom := NewBOMService(repos, audit)
	return &Services{
		Material:    NewMaterialService(repos, audit),
		Warehouse:   NewWarehouseService(repos.Warehouse, audit),
		Supplier:    NewSupplierService(repos.Supplier, audit),
		Inventory:   inventory,
		BOM:         bom,
		Plan:        NewPlanService(db, repos, cfg, bom, inventory, audit, logger),
		Procurement: NewProcurementService(db, repos, cfg, audit, logger),
		Audit:       audit,
		User:        NewUserService(repos.User, audit),
		Auth:        NewAuthService(rdb, repos.User, cfg, audit, logger),
		Dashboard:   NewDashboardService(repos),
	}
}
