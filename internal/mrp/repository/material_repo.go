package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*entity.MaterialMaster, error) {
	var mat entity.MaterialMaster
	err := r.db.WithContext(ctx).
		Preload("Group").Preload("Unit").Preload("Container").Preload("Supplier").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&mat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mat, nil
}

type MaterialListParams struct {
	GroupID    string
	SupplierID string
	Status     string
	Keyword    string
	Page       int
	Size       int
}

func (r *MaterialRepository) List(ctx context.Context, params MaterialListParams) ([]entity.MaterialMaster, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.MaterialMaster{}).Where("deleted_at IS NULL")
	if params.GroupID != "" {
		query = query.Where("group_id = ?", params.GroupID)
	}
	if params.SupplierID != "" {
		query = query.Where("supplier_id = ?", params.SupplierID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", kw, kw)
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var items []entity.MaterialMaster
	err := query.Preload("Group").Preload("Unit").Preload("Supplier").
		Order("code").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&items).Error
	return items, total, err
}

func (r *MaterialRepository) Create(ctx context.Context, mat *entity.MaterialMaster) error {
	return r.db.WithContext(ctx).Create(mat).Error
}

func (r *MaterialRepository) Update(ctx context.Context, mat *entity.MaterialMaster) error {
	return r.db.WithContext(ctx).Save(mat).Error
}

// SoftDelete 软删除物料
func (r *MaterialRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.MaterialMaster{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", gorm.Expr("NOW()")).Error
}

func (r *MaterialRepository) ListGroups(ctx context.Context) ([]entity.MaterialGroup, error) {
	var groups []entity.MaterialGroup
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("code").Find(&groups).Error
	return groups, err
}

func (r *MaterialRepository) ListUnits(ctx context.Context) ([]entity.UnitOfMeasure, error) {
	var units []entity.UnitOfMeasure
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("code").Find(&units).Error
	return units, err
}

func (r *MaterialRepository) ListContainerTypes(ctx context.Context) ([]entity.ContainerType, error) {
	var containers []entity.ContainerType
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("code").Find(&containers).Error
	return containers, err
}
