// Package integration 进程内集成测试
// 用完整路由（含认证、校验、指标中间件）验证跨模块流程。
package integration

import (
	"fmt"
	"net/http"
	"os"
	"testing"

	"petmarket/tests/testutil"
)

var env *testutil.InProcEnv

func TestMain(m *testing.M) {
	var err error
	env, err = testutil.SetupInProcEnv()
	if err != nil {
		fmt.Printf("test environment unavailable, skipping integration tests: %v\n", err)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func registerPet(t *testing.T, email, petName string) string {
	t.Helper()
	status, resp := env.DoJSON(t, "POST", "/api/v1/pets/register", "", map[string]interface{}{
		"name":     "Owner of " + petName,
		"email":    email,
		"password": "owner-password-1",
		"phone":    "13800001111",
		"pet": map[string]interface{}{
			"name":        petName,
			"breed":       "Corgi",
			"age":         "2 years",
			"location":    "Hangzhou",
			"description": "Playful and good with kids",
			"license":     "PET-2026-100",
			"photos":      []string{"https://cdn.example.com/p1.jpg"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("register pet returned %d: %v", status, resp["message"])
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("register response missing token")
	}
	return token
}

func registrationID(t *testing.T, ownerToken string) string {
	t.Helper()
	status, resp := env.DoJSON(t, "GET", "/api/v1/pets/my-profile", ownerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("my-profile returned %d", status)
	}
	data, _ := resp["data"].(map[string]interface{})
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatal("my-profile response missing registration id")
	}
	return id
}

func TestAdoptionLifecycle(t *testing.T) {
	adminToken := env.SeedAdmin(t, "lifecycle-admin@example.com")
	ownerToken := registerPet(t, "lifecycle-owner@example.com", "Milo")
	regID := registrationID(t, ownerToken)

	// 未过审：不出现在公开列表
	status, resp := env.DoJSON(t, "GET", "/api/v1/pets/approved-pets", "", nil)
	if status != http.StatusOK {
		t.Fatalf("approved-pets returned %d", status)
	}
	before, _ := resp["data"].([]interface{})

	// 管理员审核通过
	status, resp = env.DoJSON(t, "PATCH", "/api/v1/admin/status/"+regID, adminToken,
		map[string]string{"status": "approved"})
	if status != http.StatusOK {
		t.Fatalf("approve registration returned %d: %v", status, resp["message"])
	}

	status, resp = env.DoJSON(t, "GET", "/api/v1/pets/approved-pets", "", nil)
	if status != http.StatusOK {
		t.Fatalf("approved-pets returned %d", status)
	}
	after, _ := resp["data"].([]interface{})
	if len(after) != len(before)+1 {
		t.Fatalf("approved listing size = %d, want %d", len(after), len(before)+1)
	}

	// 公开提交领养申请
	status, resp = env.DoJSON(t, "POST", "/api/v1/pets/adopt/"+regID, "", map[string]string{
		"name":    "Adopter",
		"email":   "lifecycle-adopter@example.com",
		"phone":   "13900002222",
		"message": "We have a big yard.",
	})
	if status != http.StatusCreated {
		t.Fatalf("adopt returned %d: %v", status, resp["message"])
	}

	// 主人看到申请并批准
	status, resp = env.DoJSON(t, "GET", "/api/v1/pets/my-adoption-requests", ownerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("my-adoption-requests returned %d", status)
	}
	reqs, _ := resp["data"].([]interface{})
	if len(reqs) != 1 {
		t.Fatalf("adoption requests = %d, want 1", len(reqs))
	}
	first, _ := reqs[0].(map[string]interface{})
	adoptionID, _ := first["id"].(string)
	if adoptionID == "" {
		t.Fatal("adoption request missing id")
	}

	status, resp = env.DoJSON(t, "PATCH", "/api/v1/pets/adoption-request/"+adoptionID, ownerToken,
		map[string]string{"action": "approve"})
	if status != http.StatusOK {
		t.Fatalf("approve adoption returned %d: %v", status, resp["message"])
	}

	// 批准后宠物进入终态，退出公开列表
	status, resp = env.DoJSON(t, "GET", "/api/v1/pets/approved-pets", "", nil)
	if status != http.StatusOK {
		t.Fatalf("approved-pets returned %d", status)
	}
	final, _ := resp["data"].([]interface{})
	if len(final) != len(before) {
		t.Fatalf("listing after adoption = %d, want %d", len(final), len(before))
	}

	// 终态宠物不再接受申请
	status, _ = env.DoJSON(t, "POST", "/api/v1/pets/adopt/"+regID, "", map[string]string{
		"name":  "Second Adopter",
		"email": "second-adopter@example.com",
		"phone": "13700003333",
	})
	if status != http.StatusConflict {
		t.Fatalf("adopt after adoption returned %d, want 409", status)
	}
}

func TestProductCatalogFlow(t *testing.T) {
	adminToken := env.SeedAdmin(t, "catalog-admin@example.com")

	// 管理员建品，价格以字符串提交也能解析
	status, resp := env.DoJSON(t, "POST", "/api/v1/products", adminToken, map[string]interface{}{
		"name":     "Salmon Treats",
		"category": "Food & Treats",
		"price":    "19.9",
		"stock":    5,
		"brand":    "Acme",
	})
	if status != http.StatusCreated {
		t.Fatalf("create product returned %d: %v", status, resp["message"])
	}
	data, _ := resp["data"].(map[string]interface{})
	prodID, _ := data["id"].(string)
	if prodID == "" {
		t.Fatal("create product response missing id")
	}
	if inStock, _ := data["in_stock"].(bool); !inStock {
		t.Fatal("product with stock should be in_stock")
	}

	// 未登录可以浏览
	status, _ = env.DoJSON(t, "GET", "/api/v1/products/"+prodID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("get product returned %d", status)
	}

	// 未登录不能写
	status, _ = env.DoJSON(t, "PATCH", "/api/v1/products/"+prodID+"/stock", "", map[string]int{"stock": 0})
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous stock update returned %d, want 401", status)
	}

	// 库存归零后派生字段重算
	status, resp = env.DoJSON(t, "PATCH", "/api/v1/products/"+prodID+"/stock", adminToken, map[string]int{"stock": 0})
	if status != http.StatusOK {
		t.Fatalf("stock update returned %d: %v", status, resp["message"])
	}
	data, _ = resp["data"].(map[string]interface{})
	if inStock, _ := data["in_stock"].(bool); inStock {
		t.Fatal("product with zero stock should not be in_stock")
	}
}
