package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").Preload("Items").Preload("Items.Material").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

type POListParams struct {
	SupplierID string
	Status     string
	Page       int
	Size       int
}

func (r *PurchaseRepository) List(ctx context.Context, params POListParams) ([]entity.PurchaseOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).Where("deleted_at IS NULL")
	if params.SupplierID != "" {
		query = query.Where("supplier_id = ?", params.SupplierID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var items []entity.PurchaseOrder
	err := query.Preload("Supplier").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&items).Error
	return items, total, err
}

func (r *PurchaseRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *PurchaseRepository) Update(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(po).Error
}

func (r *PurchaseRepository) UpdateItem(ctx context.Context, item *entity.POItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// GenerateCode 生成PO编码 PO-{yyyymmdd}{4位序号}
func (r *PurchaseRepository) GenerateCode(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("PO-%s", time.Now().Format("20060102"))
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("po_code LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// GetInTransitQty 在途量：已发出未收货完成的PO行合计
func (r *PurchaseRepository) GetInTransitQty(ctx context.Context, materialID string) (float64, error) {
	var result struct{ Total float64 }
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(i.quantity - i.received_qty), 0) AS total
		FROM mrp_po_items i
		JOIN mrp_purchase_orders p ON p.id = i.po_id
		WHERE i.material_id = ?
		  AND p.status IN (?, ?, ?)
		  AND p.deleted_at IS NULL
	`, materialID, entity.POStatusApproved, entity.POStatusSent, entity.POStatusPartial).
		Scan(&result).Error
	return result.Total, err
}
