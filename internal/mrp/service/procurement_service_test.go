package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

func seedSupplier(t *testing.T, db *gorm.DB, id, code, name string) *entity.Supplier {
	t.Helper()
	s := &entity.Supplier{
		ID: id, SupplierCode: code, Name: name,
		Type: entity.SupplierTypeRawMaterial, Status: entity.SupplierStatusActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("Failed to seed supplier: %v", err)
	}
	return s
}

func seedProcurementFixture(t *testing.T, db *gorm.DB) (*entity.MaterialMaster, *entity.Supplier, *entity.Warehouse) {
	t.Helper()
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	supplier := seedSupplier(t, db, "33333333-0000-4000-8000-000000000001", "SUP-001", "华东原料")
	m := testutil.SeedTestMaterial(t, db, "22222222-0000-4000-8000-000000000001", "RM-001", "面粉", 3.5)
	db.Model(&entity.MaterialMaster{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"reorder_point": 100, "supplier_id": supplier.ID, "lead_time_days": 7,
	})
	wh := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	return m, supplier, wh
}

func TestGetRecommendationsAppliesSafetyFactor(t *testing.T) {
	db, svcs := newTestServices(t)
	m, supplier, wh := seedProcurementFixture(t, db)

	// 可用 40，订货点 100，安全系数 1.5 => 建议 100*1.5 - 40 = 110
	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000004", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-R", Quantity: 60, ReservedQty: 20,
	})

	recs, err := svcs.Procurement.GetRecommendations(context.Background(), "")
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.SuggestedQty != 110 {
		t.Errorf("Expected suggested 110, got %v", rec.SuggestedQty)
	}
	if rec.EstimatedCost != 385 {
		t.Errorf("Expected estimated cost 110*3.5=385, got %v", rec.EstimatedCost)
	}
	if rec.SupplierName != supplier.Name {
		t.Errorf("Expected supplier name resolved, got %q", rec.SupplierName)
	}
	if rec.IsCritical {
		t.Error("Expected non-critical with positive availability")
	}
	if rec.LeadTimeDays != 7 {
		t.Errorf("Expected lead time 7, got %d", rec.LeadTimeDays)
	}
}

func TestGetRecommendationsDeductsInTransit(t *testing.T) {
	db, svcs := newTestServices(t)
	m, supplier, wh := seedProcurementFixture(t, db)
	ctx := context.Background()

	testutil.SeedTestLot(t, db, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000004", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-R", Quantity: 40,
	})

	// 已发出未收货的订单算作在途
	po, err := svcs.Procurement.CreatePO(ctx, "00000000-0000-4000-8000-000000000001", &CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []POItemRequest{{MaterialID: m.ID, Quantity: 50}},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	po, _ = svcs.Procurement.Submit(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	po, _ = svcs.Procurement.Approve(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	if _, err := svcs.Procurement.Send(ctx, po.ID, "00000000-0000-4000-8000-000000000001"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	recs, err := svcs.Procurement.GetRecommendations(ctx, "")
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	// 150 - 40 - 50 = 60
	if recs[0].InTransitQty != 50 {
		t.Errorf("Expected in-transit 50, got %v", recs[0].InTransitQty)
	}
	if recs[0].SuggestedQty != 60 {
		t.Errorf("Expected suggested 60, got %v", recs[0].SuggestedQty)
	}
}

func TestCreatePODefaultsPriceFromMaterial(t *testing.T) {
	db, svcs := newTestServices(t)
	m, supplier, _ := seedProcurementFixture(t, db)

	po, err := svcs.Procurement.CreatePO(context.Background(), "00000000-0000-4000-8000-000000000001", &CreatePORequest{
		SupplierID: supplier.ID,
		Items: []POItemRequest{
			{MaterialID: m.ID, Quantity: 100},
			{MaterialID: m.ID, Quantity: 10, UnitPrice: 4},
		},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if po.Status != entity.POStatusDraft {
		t.Errorf("Expected DRAFT, got %s", po.Status)
	}
	if !strings.HasPrefix(po.POCode, "PO-") {
		t.Errorf("Expected PO- code, got %s", po.POCode)
	}
	if po.Items[0].UnitPrice != 3.5 {
		t.Errorf("Expected default price from material master, got %v", po.Items[0].UnitPrice)
	}
	// 100*3.5 + 10*4 = 390
	if po.TotalAmount != 390 {
		t.Errorf("Expected total 390, got %v", po.TotalAmount)
	}
	if po.Source != "MANUAL" {
		t.Errorf("Expected default MANUAL source, got %s", po.Source)
	}
}

func TestPOReceiveLifecycle(t *testing.T) {
	db, svcs := newTestServices(t)
	m, supplier, wh := seedProcurementFixture(t, db)
	ctx := context.Background()

	po, err := svcs.Procurement.CreatePO(ctx, "00000000-0000-4000-8000-000000000001", &CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []POItemRequest{{MaterialID: m.ID, Quantity: 100, UnitPrice: 3.2}},
	})
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	// 收货前必须已下发
	if _, err := svcs.Procurement.Receive(ctx, po.ID, "00000000-0000-4000-8000-000000000001", &ReceivePORequest{
		WarehouseID: wh.ID,
		Items:       []POReceiveItem{{ItemID: po.Items[0].ID, ReceivedQty: 10}},
	}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict receiving draft PO, got %v", err)
	}

	po, _ = svcs.Procurement.Submit(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	po, _ = svcs.Procurement.Approve(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	po, err = svcs.Procurement.Send(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// 部分收货
	po, err = svcs.Procurement.Receive(ctx, po.ID, "00000000-0000-4000-8000-000000000001", &ReceivePORequest{
		WarehouseID: wh.ID,
		Items:       []POReceiveItem{{ItemID: po.Items[0].ID, ReceivedQty: 60, LotNo: "LOT-PO"}},
	})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if po.Status != entity.POStatusPartial {
		t.Errorf("Expected PARTIAL, got %s", po.Status)
	}
	if po.Items[0].ReceivedQty != 60 || po.Items[0].Status != entity.POItemStatusPartial {
		t.Errorf("Unexpected item state: %+v", po.Items[0])
	}

	// 入库流水以PO编码为单号
	var txs []entity.InventoryTransaction
	db.Where("reference_no = ?", po.POCode).Find(&txs)
	if len(txs) != 1 || txs[0].QuantityChange != 60 || txs[0].UnitCost != 3.2 {
		t.Errorf("Unexpected receipt transaction: %+v", txs)
	}

	// 超收拒绝
	if _, err := svcs.Procurement.Receive(ctx, po.ID, "00000000-0000-4000-8000-000000000001", &ReceivePORequest{
		WarehouseID: wh.ID,
		Items:       []POReceiveItem{{ItemID: po.Items[0].ID, ReceivedQty: 50}},
	}); !errors.Is(err, ErrAllocationMismatch) {
		t.Errorf("Expected ErrAllocationMismatch on over-receipt, got %v", err)
	}

	// 收完转RECEIVED
	po, err = svcs.Procurement.Receive(ctx, po.ID, "00000000-0000-4000-8000-000000000001", &ReceivePORequest{
		WarehouseID: wh.ID,
		Items:       []POReceiveItem{{ItemID: po.Items[0].ID, ReceivedQty: 40, LotNo: "LOT-PO"}},
	})
	if err != nil {
		t.Fatalf("Final receive failed: %v", err)
	}
	if po.Status != entity.POStatusReceived {
		t.Errorf("Expected RECEIVED, got %s", po.Status)
	}
	if po.ReceivedDate == nil {
		t.Error("Expected received_date set")
	}

	var lot entity.InventoryLot
	if err := db.Where("lot_no = ? AND warehouse_id = ?", "LOT-PO", wh.ID).First(&lot).Error; err != nil {
		t.Fatalf("Receipt lot not found: %v", err)
	}
	if lot.Quantity != 100 {
		t.Errorf("Expected lot quantity 100, got %v", lot.Quantity)
	}

	// 已收货不可取消
	if _, err := svcs.Procurement.Cancel(ctx, po.ID, "00000000-0000-4000-8000-000000000001"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict cancelling received PO, got %v", err)
	}
}

func TestPOCancelBeforeReceipt(t *testing.T) {
	db, svcs := newTestServices(t)
	m, supplier, _ := seedProcurementFixture(t, db)
	ctx := context.Background()

	po, _ := svcs.Procurement.CreatePO(ctx, "00000000-0000-4000-8000-000000000001", &CreatePORequest{
		SupplierID: supplier.ID,
		Items:      []POItemRequest{{MaterialID: m.ID, Quantity: 10}},
	})

	po, err := svcs.Procurement.Cancel(ctx, po.ID, "00000000-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if po.Status != entity.POStatusCancelled {
		t.Errorf("Expected CANCELLED, got %s", po.Status)
	}
}
