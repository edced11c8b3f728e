package entity

import (
	"time"
)

// PurchaseOrderStatus 采购订单状态
const (
	POStatusDraft     = "DRAFT"
	POStatusPending   = "PENDING"
	POStatusApproved  = "APPROVED"
	POStatusSent      = "SENT"
	POStatusPartial   = "PARTIAL"
	POStatusReceived  = "RECEIVED"
	POStatusCancelled = "CANCELLED"
)

// POItemStatus 采购订单行状态
const (
	POItemStatusOpen     = "OPEN"
	POItemStatusPartial  = "PARTIAL"
	POItemStatusReceived = "RECEIVED"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	POCode       string     `json:"po_code" gorm:"size:50;not null;uniqueIndex"`
	SupplierID   string     `json:"supplier_id" gorm:"type:uuid;not null;index"`
	Status       string     `json:"status" gorm:"size:20;not null;default:DRAFT"`
	TotalAmount  float64    `json:"total_amount" gorm:"type:decimal(12,2);default:0"`
	Currency     string     `json:"currency" gorm:"size:10;not null;default:CNY"`
	OrderDate    *time.Time `json:"order_date"`
	ExpectedDate *time.Time `json:"expected_date"`
	ReceivedDate *time.Time `json:"received_date"`
	Source       string     `json:"source" gorm:"size:20"` // RECOMMENDATION, MANUAL
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedBy    string     `json:"created_by" gorm:"size:64;not null"`
	ApprovedBy   string     `json:"approved_by" gorm:"size:64"`
	ApprovedAt   *time.Time `json:"approved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`

	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Items    []POItem  `json:"items,omitempty" gorm:"foreignKey:POID"`
}

func (PurchaseOrder) TableName() string {
	return "mrp_purchase_orders"
}

// POItem 采购订单行
type POItem struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	POID        string    `json:"po_id" gorm:"type:uuid;not null;index"`
	MaterialID  string    `json:"material_id" gorm:"type:uuid;not null;index"`
	Quantity    float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	ReceivedQty float64   `json:"received_qty" gorm:"type:decimal(12,4);default:0"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(12,4);not null"`
	Amount      float64   `json:"amount" gorm:"type:decimal(12,2);default:0"`
	Status      string    `json:"status" gorm:"size:20;not null;default:OPEN"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Material *MaterialMaster `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (POItem) TableName() string {
	return "mrp_po_items"
}
