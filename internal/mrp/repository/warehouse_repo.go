package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type WarehouseRepository struct {
	db *gorm.DB
}

func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

func (r *WarehouseRepository) FindByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	var wh entity.Warehouse
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&wh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wh, nil
}

func (r *WarehouseRepository) List(ctx context.Context, status string, page, size int) ([]entity.Warehouse, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Warehouse{}).Where("deleted_at IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	var items []entity.Warehouse
	err := query.Order("code").Offset((page - 1) * size).Limit(size).Find(&items).Error
	return items, total, err
}

func (r *WarehouseRepository) Create(ctx context.Context, wh *entity.Warehouse) error {
	return r.db.WithContext(ctx).Create(wh).Error
}

func (r *WarehouseRepository) Update(ctx context.Context, wh *entity.Warehouse) error {
	return r.db.WithContext(ctx).Save(wh).Error
}

func (r *WarehouseRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.Warehouse{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", gorm.Expr("NOW()")).Error
}
