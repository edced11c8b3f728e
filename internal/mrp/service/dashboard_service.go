package service

import (
	"context"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// DashboardService 看板汇总
type DashboardService struct {
	repos *repository.Repositories
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{repos: repos}
}

// Overview 看板总览
type Overview struct {
	PlanCounts     map[string]int64             `json:"plan_counts"`
	LowStockCount  int                          `json:"low_stock_count"`
	CriticalCount  int                          `json:"critical_count"`
	LowStockAlerts []repository.LowStockAlert   `json:"low_stock_alerts"`
	OpenPOCount    int64                        `json:"open_po_count"`
	RecentActivity []entity.InventoryTransaction `json:"recent_activity"`
}

// GetOverview 计划状态分布、低库存预警与最近库存动态
func (s *DashboardService) GetOverview(ctx context.Context) (*Overview, error) {
	planCounts, err := s.repos.Plan.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	alerts, err := s.repos.Inventory.GetLowStockAlerts(ctx, "")
	if err != nil {
		return nil, err
	}
	critical := 0
	for _, a := range alerts {
		if a.IsCritical {
			critical++
		}
	}

	openPOs := int64(0)
	for _, status := range []string{entity.POStatusPending, entity.POStatusApproved, entity.POStatusSent, entity.POStatusPartial} {
		_, count, err := s.repos.Purchase.List(ctx, repository.POListParams{Status: status, Page: 1, Size: 1})
		if err != nil {
			return nil, err
		}
		openPOs += count
	}

	recent, _, err := s.repos.Inventory.ListTransactions(ctx, repository.TransactionListParams{Page: 1, Size: 10})
	if err != nil {
		return nil, err
	}

	return &Overview{
		PlanCounts:     planCounts,
		LowStockCount:  len(alerts),
		CriticalCount:  critical,
		LowStockAlerts: alerts,
		OpenPOCount:    openPOs,
		RecentActivity: recent,
	}, nil
}
