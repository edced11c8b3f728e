package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context, status, keyword string, page, size int) ([]entity.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Product{}).Where("deleted_at IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		kw := "%" + keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", kw, kw)
	}

	var total int64
	query.Count(&total)

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	var items []entity.Product
	err := query.Order("code").Offset((page - 1) * size).Limit(size).Find(&items).Error
	return items, total, err
}

func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.Product{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", gorm.Expr("NOW()")).Error
}

// ListActiveBOMLines 产品的激活BOM行
func (r *ProductRepository) ListActiveBOMLines(ctx context.Context, productID string) ([]entity.BOMLine, error) {
	var lines []entity.BOMLine
	err := r.db.WithContext(ctx).
		Preload("Material").Preload("Unit").
		Where("product_id = ? AND is_active = true AND deleted_at IS NULL", productID).
		Order("created_at").
		Find(&lines).Error
	return lines, err
}

// FindActiveBOMLine 按 (产品, 物料) 查激活BOM行，唯一性校验用
func (r *ProductRepository) FindActiveBOMLine(ctx context.Context, productID, materialID string) (*entity.BOMLine, error) {
	var line entity.BOMLine
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND material_id = ? AND is_active = true AND deleted_at IS NULL", productID, materialID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (r *ProductRepository) FindBOMLineByID(ctx context.Context, id string) (*entity.BOMLine, error) {
	var line entity.BOMLine
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (r *ProductRepository) CreateBOMLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *ProductRepository) UpdateBOMLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// HasActiveBOMReference 物料是否被激活BOM行引用（软删除校验用）
func (r *ProductRepository) HasActiveBOMReference(ctx context.Context, materialID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BOMLine{}).
		Where("material_id = ? AND is_active = true AND deleted_at IS NULL", materialID).
		Count(&count).Error
	return count > 0, err
}
