package entity

import (
	"time"
)

// MaterialStatus 物料状态
const (
	MaterialStatusActive   = "ACTIVE"
	MaterialStatusInactive = "INACTIVE"
)

// MaterialMaster 物料主数据
type MaterialMaster struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code          string     `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name          string     `json:"name" gorm:"size:128;not null"`
	GroupID       *string    `json:"group_id" gorm:"type:uuid;index"`
	UnitID        *string    `json:"unit_id" gorm:"type:uuid"`
	ContainerID   *string    `json:"container_id" gorm:"type:uuid"`
	SupplierID    *string    `json:"supplier_id" gorm:"type:uuid;index"` // 首选供应商
	CostPerUnit   float64    `json:"cost_per_unit" gorm:"type:decimal(12,4);default:0"`
	MinStock      float64    `json:"min_stock" gorm:"type:decimal(12,4);default:0"`
	MaxStock      float64    `json:"max_stock" gorm:"type:decimal(12,4);default:0"`
	ReorderPoint  float64    `json:"reorder_point" gorm:"type:decimal(12,4);default:0"`
	LeadTimeDays  int        `json:"lead_time_days" gorm:"default:0"`
	LifetimeDays  int        `json:"lifetime_days" gorm:"default:0"` // 保质期（天），0=不限
	Status        string     `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	Notes         string     `json:"notes" gorm:"type:text"`
	CreatedBy     string     `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at" gorm:"index"`

	Group     *MaterialGroup `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	Unit      *UnitOfMeasure `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Container *ContainerType `json:"container,omitempty" gorm:"foreignKey:ContainerID"`
	Supplier  *Supplier      `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (MaterialMaster) TableName() string {
	return "mrp_material_masters"
}

// MaterialGroup 物料分组
type MaterialGroup struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code      string     `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"size:100;not null"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (MaterialGroup) TableName() string {
	return "mrp_material_groups"
}

// UnitOfMeasure 计量单位
type UnitOfMeasure struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code      string     `json:"code" gorm:"size:20;not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"size:50;not null"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (UnitOfMeasure) TableName() string {
	return "mrp_units"
}

// ContainerType 容器类型（箱/桶/托盘）
type ContainerType struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code      string     `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"size:100;not null"`
	Capacity  float64    `json:"capacity" gorm:"type:decimal(12,4);default:0"` // 单容器容量
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (ContainerType) TableName() string {
	return "mrp_container_types"
}
