package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有MRP表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&MaterialGroup{},
		&UnitOfMeasure{},
		&ContainerType{},
		&MaterialMaster{},
		&Warehouse{},
		&Supplier{},

		// 库存
		&InventoryLot{},
		&InventoryTransaction{},

		// 产品/BOM
		&Product{},
		&BOMLine{},

		// 生产计划
		&ProductionPlan{},
		&PlanMaterialAllocation{},

		// 采购
		&PurchaseOrder{},
		&POItem{},

		// 用户与审计
		&User{},
		&AuditLog{},
	)
}
