package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"gorm.io/gorm"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) FindByID(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	var plan entity.ProductionPlan
	err := r.db.WithContext(ctx).
		Preload("Product").Preload("Allocations").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

type PlanListParams struct {
	ProductID string
	Status    string
	Priority  *int
	Page      int
	Size      int
}

func (r *PlanRepository) List(ctx context.Context, params PlanListParams) ([]entity.ProductionPlan, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ProductionPlan{}).Where("deleted_at IS NULL")
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Priority != nil {
		query = query.Where("priority = ?", *params.Priority)
	}

	var total int64
	query.Count(&total)

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	var items []entity.ProductionPlan
	err := query.Preload("Product").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&items).Error
	return items, total, err
}

func (r *PlanRepository) Create(ctx context.Context, plan *entity.ProductionPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *PlanRepository) Update(ctx context.Context, plan *entity.ProductionPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// GenerateCode 生成计划编码 PP-{yyyymmdd}{4位序号}
func (r *PlanRepository) GenerateCode(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("PP-%s", time.Now().Format("20060102"))
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.ProductionPlan{}).
		Where("plan_code LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// ListAllocations 计划的物料分配记录
func (r *PlanRepository) ListAllocations(ctx context.Context, planID string) ([]entity.PlanMaterialAllocation, error) {
	var allocations []entity.PlanMaterialAllocation
	err := r.db.WithContext(ctx).
		Preload("Material").
		Where("plan_id = ?", planID).
		Order("created_at").
		Find(&allocations).Error
	return allocations, err
}

// CountByStatus 按状态统计计划数（看板用）
func (r *PlanRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.ProductionPlan{}).
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
