package entity

import (
	"time"
)

// ProductStatus 产品状态
const (
	ProductStatusActive   = "ACTIVE"
	ProductStatusInactive = "INACTIVE"
)

// Product 产品
type Product struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code         string     `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:128;not null"`
	Type         string     `json:"type" gorm:"size:50"`
	Status       string     `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	SourcePlanID *string    `json:"source_plan_id" gorm:"type:uuid"` // 由哪个生产计划产出
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedBy    string     `json:"created_by" gorm:"size:64"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`

	BOMLines []BOMLine `json:"bom_lines,omitempty" gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "mrp_products"
}

// BOMLine 物料清单行。同一 (产品, 物料) 只允许一条激活行。
type BOMLine struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProductID     string     `json:"product_id" gorm:"type:uuid;not null;index"`
	MaterialID    string     `json:"material_id" gorm:"type:uuid;not null;index"`
	UnitID        *string    `json:"unit_id" gorm:"type:uuid"`
	UsagePerPiece float64    `json:"usage_per_piece" gorm:"type:decimal(12,4);not null"`
	ScrapFactor   float64    `json:"scrap_factor" gorm:"type:decimal(6,4);not null;default:0"` // 损耗系数，>=0
	Version       int        `json:"version" gorm:"default:1"`
	IsActive      bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedBy     string     `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at" gorm:"index"`

	Material *MaterialMaster `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
	Unit     *UnitOfMeasure  `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
}

func (BOMLine) TableName() string {
	return "mrp_bom_lines"
}
