package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/nimo-mrp/internal/middleware"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

func setupInventoryTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, nil, repos, testutil.TestConfig(), zap.NewNop())
	h := NewInventoryHandler(services.Inventory)

	api := testutil.AuthGroup(router, "/api/v1")
	inv := api.Group("/inventory")
	{
		inv.GET("/lots", h.ListLots)
		inv.GET("/balances", h.GetBalances)
		inv.GET("/alerts", h.GetLowStockAlerts)
		inv.GET("/transactions", h.ListTransactions)
		inv.GET("/suggest", h.SuggestLots)
		inv.POST("/receipt", middleware.RequireRole(entity.RolePlanner), h.GoodsReceipt)
		inv.POST("/issue", middleware.RequireRole(entity.RolePlanner), h.GoodsIssue)
		inv.POST("/transfer", middleware.RequireRole(entity.RolePlanner), h.Transfer)
		inv.POST("/adjust", middleware.RequireRole(entity.RolePlanner), h.Adjust)
	}

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func seedInventoryHandlerFixture(t *testing.T, db *gorm.DB) (*entity.MaterialMaster, *entity.Warehouse) {
	t.Helper()
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	m := testutil.SeedTestMaterial(t, db, "22222222-0000-4000-8000-000000000001", "RM-001", "面粉", 3.5)
	wh := testutil.SeedTestWarehouse(t, db, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	return m, wh
}

func TestInventoryReceiptAndLotListing(t *testing.T) {
	env := setupInventoryTest(t)
	m, wh := seedInventoryHandlerFixture(t, env.DB)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/inventory/receipt", map[string]interface{}{
		"material_id":  m.ID,
		"warehouse_id": wh.ID,
		"lot_no":       "LOT-H1",
		"quantity":     100,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["transaction_type"] != entity.TxTypeIn {
		t.Errorf("Expected IN transaction, got %v", data["transaction_type"])
	}

	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/inventory/lots?material_id="+m.ID, nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	resp2 := testutil.ParseResponse(w2)
	items := resp2["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 lot, got %d", len(items))
	}
	lot := items[0].(map[string]interface{})
	if lot["lot_no"] != "LOT-H1" || lot["quantity"].(float64) != 100 {
		t.Errorf("Unexpected lot: %v", lot)
	}
}

func TestInventoryIssueInsufficientStockCode(t *testing.T) {
	env := setupInventoryTest(t)
	m, wh := seedInventoryHandlerFixture(t, env.DB)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/inventory/issue", map[string]interface{}{
		"material_id":  m.ID,
		"warehouse_id": wh.ID,
		"quantity":     10,
	}, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 42201 {
		t.Errorf("Expected code 42201, got %v", resp["code"])
	}
}

func TestInventoryTransferSameWarehouseRejected(t *testing.T) {
	env := setupInventoryTest(t)
	m, wh := seedInventoryHandlerFixture(t, env.DB)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/inventory/transfer", map[string]interface{}{
		"material_id":       m.ID,
		"from_warehouse_id": wh.ID,
		"to_warehouse_id":   wh.ID,
		"quantity":          10,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40001 {
		t.Errorf("Expected code 40001, got %v", resp["code"])
	}
}

func TestInventoryMutationsRequirePlannerRole(t *testing.T) {
	env := setupInventoryTest(t)
	m, wh := seedInventoryHandlerFixture(t, env.DB)
	viewerToken := testutil.GenerateTestToken("00000000-0000-4000-8000-000000000003", "viewer", "查看员",
		[]string{entity.RoleViewer}, []string{"mrp:read"})

	// 只读角色可查询
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/inventory/lots", nil, viewerToken)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for viewer listing, got %d", w.Code)
	}

	// 只读角色不可入库
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/inventory/receipt", map[string]interface{}{
		"material_id": m.ID, "warehouse_id": wh.ID, "quantity": 10,
	}, viewerToken)
	if w2.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for viewer receipt, got %d", w2.Code)
	}

	// 未认证
	w3 := testutil.DoRequest(env.Router, "GET", "/api/v1/inventory/lots", nil, "")
	if w3.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w3.Code)
	}
}

func TestInventorySuggestEndpoint(t *testing.T) {
	env := setupInventoryTest(t)
	m, wh := seedInventoryHandlerFixture(t, env.DB)
	token := testutil.DefaultTestToken()

	exp := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	testutil.SeedTestLot(t, env.DB, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-00000000000d", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-SG", Quantity: 50, ExpDate: &exp,
	})

	path := fmt.Sprintf("/api/v1/inventory/suggest?material_id=%s&warehouse_id=%s&quantity=30", m.ID, wh.ID)
	w := testutil.DoRequest(env.Router, "GET", path, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	suggestions := resp["data"].([]interface{})
	if len(suggestions) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d", len(suggestions))
	}
	s := suggestions[0].(map[string]interface{})
	if s["take_qty"].(float64) != 30 {
		t.Errorf("Expected take_qty 30, got %v", s["take_qty"])
	}

	// quantity 缺失
	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/inventory/suggest?material_id="+m.ID, nil, token)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing quantity, got %d", w2.Code)
	}
}
