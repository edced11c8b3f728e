package handler

import (
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/service"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

func setupPlanTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, nil, repos, testutil.TestConfig(), zap.NewNop())
	h := NewPlanHandler(services.Plan)
	ph := NewProductHandler(services.BOM)

	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/products", ph.CreateProduct)
	api.POST("/products/:id/bom", ph.AddBOMLine)
	api.GET("/products/:id/requirements", ph.ComputeRequirements)

	plans := api.Group("/plans")
	{
		plans.GET("", h.ListPlans)
		plans.GET("/:id", h.GetPlan)
		plans.GET("/:id/allocations", h.ListAllocations)
		plans.POST("", h.CreatePlan)
		plans.PUT("/:id", h.UpdatePlan)
		plans.POST("/:id/confirm", h.ConfirmPlan)
		plans.POST("/:id/start", h.StartPlan)
		plans.POST("/:id/complete", h.CompletePlan)
		plans.POST("/:id/cancel", h.CancelPlan)
		plans.POST("/:id/duplicate", h.DuplicatePlan)
	}

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

// seedPlanAPIFixture 通过API建产品和BOM，直接种库存
func seedPlanAPIFixture(t *testing.T, env *testutil.TestEnv, token string) (productID string) {
	t.Helper()
	testutil.SeedTestUser(t, env.DB, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	m := testutil.SeedTestMaterial(t, env.DB, "22222222-0000-4000-8000-000000000001", "RM-001", "面粉", 3.5)
	wh := testutil.SeedTestWarehouse(t, env.DB, "11111111-0000-4000-8000-000000000001", "WH-MAIN", "主仓")
	testutil.SeedTestLot(t, env.DB, &entity.InventoryLot{
		ID: "44444444-0000-4000-8000-000000000001", MaterialID: m.ID, WarehouseID: wh.ID, LotNo: "LOT-1", Quantity: 300, UnitCost: 3.5,
	})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/products", map[string]interface{}{
		"code": "FG-BREAD", "name": "面包",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("CreateProduct expected 201, got %d: %s", w.Code, w.Body.String())
	}
	productID = testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/products/"+productID+"/bom", map[string]interface{}{
		"material_id": m.ID, "usage_per_piece": 2, "scrap_factor": 0.1,
	}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("AddBOMLine expected 201, got %d: %s", w2.Code, w2.Body.String())
	}
	return productID
}

func TestPlanAPILifecycle(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	productID := seedPlanAPIFixture(t, env, token)

	// 创建草稿
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/plans", map[string]interface{}{
		"product_id": productID, "input_qty": 100,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("CreatePlan expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	planID := data["id"].(string)
	if data["status"] != entity.PlanStatusDraft {
		t.Errorf("Expected DRAFT, got %v", data["status"])
	}
	if data["estimated_cost"].(float64) != 770 {
		t.Errorf("Expected estimated cost 770, got %v", data["estimated_cost"])
	}

	// 确认预留 + 开工
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/plans/"+planID+"/confirm", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Confirm expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.PlanStatusPending {
		t.Errorf("Expected PENDING after confirm, got %v", data["status"])
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/plans/"+planID+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Start expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.PlanStatusProduction {
		t.Errorf("Expected PRODUCTION, got %v", data["status"])
	}

	// 分配明细
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/plans/"+planID+"/allocations", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("ListAllocations expected 200, got %d: %s", w.Code, w.Body.String())
	}
	allocations := testutil.ParseResponse(w)["data"].([]interface{})
	if len(allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(allocations))
	}
	allocation := allocations[0].(map[string]interface{})
	if allocation["allocated_qty"].(float64) != 220 {
		t.Errorf("Expected allocated 220, got %v", allocation["allocated_qty"])
	}

	// 完工
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/plans/"+planID+"/complete", map[string]interface{}{
		"actual_qty": 100,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Complete expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.PlanStatusCompleted {
		t.Errorf("Expected COMPLETED, got %v", data["status"])
	}
	if data["actual_cost"].(float64) != 770 {
		t.Errorf("Expected actual cost 770 on full usage, got %v", data["actual_cost"])
	}
}

func TestPlanAPIConflictCode(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	productID := seedPlanAPIFixture(t, env, token)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/plans", map[string]interface{}{
		"product_id": productID, "input_qty": 100,
	}, token)
	planID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 草稿直接开工 -> 409
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/plans/"+planID+"/start", nil, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	if resp["code"].(float64) != 40900 {
		t.Errorf("Expected code 40900, got %v", resp["code"])
	}
}

func TestPlanAPIConfirmAllocationMismatchCode(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	productID := seedPlanAPIFixture(t, env, token)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/plans", map[string]interface{}{
		"product_id": productID, "input_qty": 100,
	}, token)
	planID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 分配合计 100 != 需求 220 -> 422/42202
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/plans/"+planID+"/confirm", map[string]interface{}{
		"allocations": []map[string]interface{}{
			{"material_id": "22222222-0000-4000-8000-000000000001", "warehouse_id": "11111111-0000-4000-8000-000000000001", "quantity": 100},
		},
	}, token)
	if w2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	if resp["code"].(float64) != 42202 {
		t.Errorf("Expected code 42202, got %v", resp["code"])
	}
}

func TestPlanAPINoActiveBOM(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedTestUser(t, env.DB, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/products", map[string]interface{}{
		"code": "FG-EMPTY", "name": "空BOM产品",
	}, token)
	productID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/plans", map[string]interface{}{
		"product_id": productID, "input_qty": 10,
	}, token)
	if w2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	if resp["code"].(float64) != 42203 {
		t.Errorf("Expected code 42203, got %v", resp["code"])
	}
}

func TestRequirementsAPIEndpoint(t *testing.T) {
	env := setupPlanTest(t)
	token := testutil.DefaultTestToken()
	productID := seedPlanAPIFixture(t, env, token)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/products/"+productID+"/requirements?input_qty=100", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	reqs := data["requirements"].([]interface{})
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 requirement, got %d", len(reqs))
	}
	r := reqs[0].(map[string]interface{})
	if r["required_qty"].(float64) != 220 {
		t.Errorf("Expected required 220, got %v", r["required_qty"])
	}
	if data["feasible"] != true {
		t.Errorf("Expected feasible, got %v", data["feasible"])
	}
}
