package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

func seedProductWithBOM(t *testing.T, db *gorm.DB, svcs *Services) (*entity.Product, *entity.MaterialMaster) {
	t.Helper()
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	m := testutil.SeedTestMaterial(t, db, "22222222-0000-4000-8000-000000000002", "RM-FLOUR", "面粉", 3.5)

	product, err := svcs.BOM.CreateProduct(context.Background(), "00000000-0000-4000-8000-000000000001", &CreateProductRequest{
		Code: "FG-BREAD", Name: "面包", Type: "FINISHED",
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	if _, err := svcs.BOM.AddLine(context.Background(), product.ID, "00000000-0000-4000-8000-000000000001", &AddBOMLineRequest{
		MaterialID: m.ID, UsagePerPiece: 2, ScrapFactor: 0.1,
	}); err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	return product, m
}

func TestComputeRequirementsAppliesScrapFactor(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m := seedProductWithBOM(t, db, svcs)
	wh := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000005", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-F", Quantity: 300,
	})

	// 100 件 × 2/件 × (1+0.1) = 220
	result, err := svcs.BOM.ComputeRequirements(context.Background(), product.ID, 100)
	if err != nil {
		t.Fatalf("ComputeRequirements failed: %v", err)
	}
	if len(result.Requirements) != 1 {
		t.Fatalf("Expected 1 requirement, got %d", len(result.Requirements))
	}
	r := result.Requirements[0]
	if r.RequiredQty != 220 {
		t.Errorf("Expected required qty 220, got %v", r.RequiredQty)
	}
	if r.TotalCost != 770 {
		t.Errorf("Expected total cost 220*3.5=770, got %v", r.TotalCost)
	}
	if r.Shortage != 0 {
		t.Errorf("Expected no shortage with 300 available, got %v", r.Shortage)
	}
	if !result.Feasible {
		t.Error("Expected feasible result")
	}
	if result.EstimatedCost != 770 {
		t.Errorf("Expected estimated cost 770, got %v", result.EstimatedCost)
	}
}

func TestComputeRequirementsReportsShortage(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m := seedProductWithBOM(t, db, svcs)
	wh := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000005", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-F", Quantity: 100, ReservedQty: 20,
	})

	result, err := svcs.BOM.ComputeRequirements(context.Background(), product.ID, 100)
	if err != nil {
		t.Fatalf("ComputeRequirements failed: %v", err)
	}
	r := result.Requirements[0]
	// 可用 80，需求 220
	if r.AvailableQty != 80 {
		t.Errorf("Expected available 80, got %v", r.AvailableQty)
	}
	if r.Shortage != 140 {
		t.Errorf("Expected shortage 140, got %v", r.Shortage)
	}
	if result.Feasible {
		t.Error("Expected infeasible result")
	}
}

func TestComputeRequirementsNoActiveBOM(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	product, err := svcs.BOM.CreateProduct(context.Background(), "00000000-0000-4000-8000-000000000001", &CreateProductRequest{
		Code: "FG-EMPTY", Name: "空BOM产品",
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	_, err = svcs.BOM.ComputeRequirements(context.Background(), product.ID, 10)
	if !errors.Is(err, ErrNoActiveBOM) {
		t.Errorf("Expected ErrNoActiveBOM, got %v", err)
	}
}

func TestAddLineRejectsDuplicateActiveMaterial(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m := seedProductWithBOM(t, db, svcs)

	_, err := svcs.BOM.AddLine(context.Background(), product.ID, "00000000-0000-4000-8000-000000000001", &AddBOMLineRequest{
		MaterialID: m.ID, UsagePerPiece: 1,
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate active line, got %v", err)
	}
}

func TestUpdateLineBumpsVersionOnUsageChange(t *testing.T) {
	db, svcs := newTestServices(t)
	product, _ := seedProductWithBOM(t, db, svcs)

	lines, err := svcs.BOM.ListLines(context.Background(), product.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("ListLines failed: %v (%d lines)", err, len(lines))
	}

	usage := 2.5
	line, err := svcs.BOM.UpdateLine(context.Background(), lines[0].ID, &UpdateBOMLineRequest{
		UsagePerPiece: &usage,
	})
	if err != nil {
		t.Fatalf("UpdateLine failed: %v", err)
	}
	if line.Version != 2 {
		t.Errorf("Expected version 2 after usage change, got %d", line.Version)
	}

	// 仅停用不递增版本
	inactive := false
	line, err = svcs.BOM.UpdateLine(context.Background(), line.ID, &UpdateBOMLineRequest{IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateLine failed: %v", err)
	}
	if line.Version != 2 {
		t.Errorf("Expected version unchanged on deactivate, got %d", line.Version)
	}
}
