package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

// seedPlanFixture 产品(单件用量2, 损耗0.1) + 300 库存
func seedPlanFixture(t *testing.T, db *gorm.DB, svcs *Services) (*entity.Product, *entity.MaterialMaster, *entity.Warehouse) {
	t.Helper()
	product, m := seedProductWithBOM(t, db, svcs)
	wh := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000002", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-P", Quantity: 300, UnitCost: 3.5,
	})
	return product, m, wh
}

func TestPlanCreateGeneratesCodeAndEstimate(t *testing.T) {
	db, svcs := newTestServices(t)
	product, _, _ := seedPlanFixture(t, db, svcs)

	plan, err := svcs.Plan.Create(context.Background(), "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{
		ProductID: product.ID, InputQty: 100,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if plan.Status != entity.PlanStatusDraft {
		t.Errorf("Expected DRAFT, got %s", plan.Status)
	}
	if !strings.HasPrefix(plan.PlanCode, "PP-") {
		t.Errorf("Expected PP- code, got %s", plan.PlanCode)
	}
	if plan.EstimatedCost != 770 {
		t.Errorf("Expected estimated cost 770, got %v", plan.EstimatedCost)
	}
}

func TestPlanLifecycleReservesAndConsumes(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m, wh := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	plan, err := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 确认: 草稿转待产并预留需求 220
	if plan, err = svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if plan.Status != entity.PlanStatusPending {
		t.Errorf("Expected PENDING after confirm, got %s", plan.Status)
	}

	var lot entity.InventoryLot
	db.Where("material_id = ? AND warehouse_id = ?", m.ID, wh.ID).First(&lot)
	if lot.ReservedQty != 220 {
		t.Errorf("Expected reserved 220 after confirm, got %v", lot.ReservedQty)
	}

	allocations, err := svcs.Plan.ListAllocations(ctx, plan.ID)
	if err != nil || len(allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d (%v)", len(allocations), err)
	}
	if allocations[0].AllocatedQty != 220 {
		t.Errorf("Expected allocated 220, got %v", allocations[0].AllocatedQty)
	}

	// 开工: 仅状态迁移，不动库存
	if plan, err = svcs.Plan.Start(ctx, plan.ID, "00000000-0000-4000-8000-000000000001"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if plan.Status != entity.PlanStatusProduction {
		t.Errorf("Expected PRODUCTION after start, got %s", plan.Status)
	}
	if plan.StartedAt == nil {
		t.Error("Expected started_at set")
	}
	db.Where("id = ?", lot.ID).First(&lot)
	if lot.Quantity != 300 || lot.ReservedQty != 220 {
		t.Errorf("Start must not move stock, got %v/%v", lot.Quantity, lot.ReservedQty)
	}

	// 实际耗用 200，退回 20
	plan, err = svcs.Plan.Complete(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &CompletePlanRequest{
		ActualQty: 98,
		Usages:    []AllocationUsage{{AllocationID: allocations[0].ID, UsedQty: 200}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if plan.Status != entity.PlanStatusCompleted {
		t.Errorf("Expected COMPLETED, got %s", plan.Status)
	}
	if plan.ActualQty != 98 {
		t.Errorf("Expected actual_qty 98, got %v", plan.ActualQty)
	}
	if plan.ActualCost != 700 {
		t.Errorf("Expected actual cost 200*3.5=700, got %v", plan.ActualCost)
	}

	db.Where("id = ?", lot.ID).First(&lot)
	if lot.Quantity != 100 || lot.ReservedQty != 0 {
		t.Errorf("Expected quantity 100 / reserved 0 after complete, got %v/%v", lot.Quantity, lot.ReservedQty)
	}

	allocations, _ = svcs.Plan.ListAllocations(ctx, plan.ID)
	if allocations[0].UsedQty != 200 || allocations[0].ReturnedQty != 20 {
		t.Errorf("Expected used 200 / returned 20, got %v/%v", allocations[0].UsedQty, allocations[0].ReturnedQty)
	}

	// 完工写出库流水，单号为计划编码
	var txs []entity.InventoryTransaction
	db.Where("reference_no = ?", plan.PlanCode).Find(&txs)
	if len(txs) != 1 || txs[0].QuantityChange != -200 {
		t.Errorf("Expected one -200 OUT transaction for plan, got %+v", txs)
	}
}

func TestPlanConfirmWithExplicitAllocations(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m, wh := seedPlanFixture(t, db, svcs)
	wh2 := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000002", "WH-SUB", "分仓")
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000003", MaterialID: m.ID, WarehouseID: wh2.ID, LotNo: "LOT-P2", Quantity: 250, UnitCost: 3.5,
	})
	ctx := context.Background()

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})

	// 分配合计 200 != 需求 220
	_, err := svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &ConfirmPlanRequest{
		Allocations: []PlanAllocationRequest{{MaterialID: m.ID, WarehouseID: wh2.ID, Quantity: 200}},
	})
	if !errors.Is(err, ErrAllocationMismatch) {
		t.Fatalf("Expected ErrAllocationMismatch, got %v", err)
	}
	var count int64
	db.Model(&entity.PlanMaterialAllocation{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no allocations after mismatch, got %d", count)
	}

	// 指定从分仓预留全部 220
	plan, err = svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &ConfirmPlanRequest{
		Allocations: []PlanAllocationRequest{{MaterialID: m.ID, WarehouseID: wh2.ID, Quantity: 220}},
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if plan.Status != entity.PlanStatusPending {
		t.Errorf("Expected PENDING, got %s", plan.Status)
	}

	var mainLot, subLot entity.InventoryLot
	db.Where("warehouse_id = ?", wh.ID).First(&mainLot)
	db.Where("warehouse_id = ?", wh2.ID).First(&subLot)
	if mainLot.ReservedQty != 0 {
		t.Errorf("Expected main warehouse untouched, got reserved %v", mainLot.ReservedQty)
	}
	if subLot.ReservedQty != 220 {
		t.Errorf("Expected 220 reserved in chosen warehouse, got %v", subLot.ReservedQty)
	}

	allocations, _ := svcs.Plan.ListAllocations(ctx, plan.ID)
	if len(allocations) != 1 || allocations[0].WarehouseID != wh2.ID {
		t.Errorf("Expected one allocation in chosen warehouse, got %+v", allocations)
	}
}

func TestPlanConfirmRejectsChosenWarehouseShortage(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m, _ := seedPlanFixture(t, db, svcs)
	wh2 := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000002", "WH-SUB", "分仓")
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-00000000000b", MaterialID: m.ID, WarehouseID: wh2.ID, LotNo: "LOT-SH", Quantity: 100, UnitCost: 3.5,
	})
	ctx := context.Background()

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})

	// 指定仓只有 100，即使主仓有 300 也必须失败
	_, err := svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &ConfirmPlanRequest{
		Allocations: []PlanAllocationRequest{{MaterialID: m.ID, WarehouseID: wh2.ID, Quantity: 220}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	var reserved float64
	db.Model(&entity.InventoryLot{}).Select("COALESCE(SUM(reserved_qty), 0)").Scan(&reserved)
	if reserved != 0 {
		t.Errorf("Expected no reservations after failed confirm, got %v", reserved)
	}
	plan, _ = svcs.Plan.Get(ctx, plan.ID)
	if plan.Status != entity.PlanStatusDraft {
		t.Errorf("Expected plan still DRAFT, got %s", plan.Status)
	}
}

func TestPlanConfirmFailsOnShortage(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m, wh := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	// 压缩库存到 100，需求 220
	db.Model(&entity.InventoryLot{}).Where("material_id = ? AND warehouse_id = ?", m.ID, wh.ID).Update("quantity", 100)

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})

	_, err := svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	// 失败后不得留下预留或分配
	var lot entity.InventoryLot
	db.Where("material_id = ?", m.ID).First(&lot)
	if lot.ReservedQty != 0 {
		t.Errorf("Expected no reservation after failed confirm, got %v", lot.ReservedQty)
	}
	var count int64
	db.Model(&entity.PlanMaterialAllocation{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no allocations after failed confirm, got %d", count)
	}

	// 计划仍为草稿
	plan, _ = svcs.Plan.Get(ctx, plan.ID)
	if plan.Status != entity.PlanStatusDraft {
		t.Errorf("Expected plan still DRAFT, got %s", plan.Status)
	}
}

func TestPlanCancelReleasesReservation(t *testing.T) {
	db, svcs := newTestServices(t)
	product, m, _ := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})
	plan, err := svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// 待产即取消也要释放预留
	plan, err = svcs.Plan.Cancel(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", "客户取消订单")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if plan.Status != entity.PlanStatusCancelled {
		t.Errorf("Expected CANCELLED, got %s", plan.Status)
	}
	if plan.CancelReason != "客户取消订单" {
		t.Errorf("Expected cancel reason recorded, got %q", plan.CancelReason)
	}

	var lot entity.InventoryLot
	db.Where("material_id = ?", m.ID).First(&lot)
	if lot.ReservedQty != 0 {
		t.Errorf("Expected reservation released, got %v", lot.ReservedQty)
	}
	if lot.Quantity != 300 {
		t.Errorf("Expected stock untouched on cancel, got %v", lot.Quantity)
	}

	allocations, _ := svcs.Plan.ListAllocations(ctx, plan.ID)
	if len(allocations) != 1 || allocations[0].ReturnedQty != 220 {
		t.Errorf("Expected allocation fully returned, got %+v", allocations)
	}
}

func TestPlanInvalidTransitions(t *testing.T) {
	db, svcs := newTestServices(t)
	product, _, _ := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})

	// 草稿不可直接开工
	if _, err := svcs.Plan.Start(ctx, plan.ID, "00000000-0000-4000-8000-000000000001"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict starting draft, got %v", err)
	}
	// 草稿不可完工
	if _, err := svcs.Plan.Complete(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &CompletePlanRequest{ActualQty: 1}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict completing draft, got %v", err)
	}

	// 已确认不可重复确认
	plan, _ = svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil)
	if _, err := svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict confirming pending plan, got %v", err)
	}

	// 已完成不可取消
	plan, _ = svcs.Plan.Start(ctx, plan.ID, "00000000-0000-4000-8000-000000000001")
	plan, err := svcs.Plan.Complete(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &CompletePlanRequest{ActualQty: 100})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := svcs.Plan.Cancel(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", "x"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict cancelling completed plan, got %v", err)
	}
}

func TestPlanUpdateOnlyDraft(t *testing.T) {
	db, svcs := newTestServices(t)
	product, _, _ := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	plan, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})

	qty := 50.0
	plan, err := svcs.Plan.Update(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &UpdatePlanRequest{InputQty: &qty})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if plan.InputQty != 50 {
		t.Errorf("Expected input_qty 50, got %v", plan.InputQty)
	}
	// 预估成本重算: 50×2×1.1×3.5 = 385
	if plan.EstimatedCost != 385 {
		t.Errorf("Expected recomputed estimate 385, got %v", plan.EstimatedCost)
	}

	plan, _ = svcs.Plan.Confirm(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", nil)
	if _, err := svcs.Plan.Update(ctx, plan.ID, "00000000-0000-4000-8000-000000000001", &UpdatePlanRequest{InputQty: &qty}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict updating pending plan, got %v", err)
	}
}

func TestPlanDuplicateCreatesFreshDraft(t *testing.T) {
	db, svcs := newTestServices(t)
	product, _, _ := seedPlanFixture(t, db, svcs)
	ctx := context.Background()

	src, _ := svcs.Plan.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreatePlanRequest{ProductID: product.ID, InputQty: 100})
	src, _ = svcs.Plan.Confirm(ctx, src.ID, "00000000-0000-4000-8000-000000000001", nil)

	dup, err := svcs.Plan.Duplicate(ctx, src.ID, "00000000-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if dup.ID == src.ID || dup.PlanCode == src.PlanCode {
		t.Error("Expected fresh ID and code for duplicate")
	}
	if dup.Status != entity.PlanStatusDraft {
		t.Errorf("Expected duplicate as DRAFT, got %s", dup.Status)
	}
	if dup.InputQty != src.InputQty {
		t.Errorf("Expected input_qty carried over, got %v", dup.InputQty)
	}
}
