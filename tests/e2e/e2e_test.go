// Package e2e 端到端测试
// 测试完整的用户流程：登记宠物 → 审核 → 公开浏览 → 领养申请 → 决定
// 需要一个运行中的 API Server（API_BASE_URL，默认 http://localhost:8080）。
package e2e

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"petmarket/tests/testutil"
)

var client *testutil.E2EClient

func TestMain(m *testing.M) {
	var err error
	client, err = testutil.SetupE2EClient()
	if err != nil {
		fmt.Printf("API Server not ready, skipping E2E tests: %v\n", err)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestE2E_AdoptionLifecycle(t *testing.T) {
	stamp := time.Now().UnixNano()
	ownerEmail := fmt.Sprintf("e2e-owner-%d@example.com", stamp)
	ownerPassword := "e2e-owner-password"
	adopterEmail := fmt.Sprintf("e2e-adopter-%d@example.com", stamp)

	// Step 1: 登记宠物，注册即签发会话 Cookie
	t.Log("Step 1: Registering pet...")
	status, resp, err := client.DoJSON("POST", "/api/v1/pets/register", map[string]interface{}{
		"name":     "E2E Owner",
		"email":    ownerEmail,
		"password": ownerPassword,
		"phone":    "13500006666",
		"pet": map[string]interface{}{
			"name":        fmt.Sprintf("E2E Pet %d", stamp),
			"breed":       "Beagle",
			"age":         "1 year",
			"location":    "Beijing",
			"description": "Curious beagle",
			"license":     fmt.Sprintf("PET-E2E-%d", stamp),
			"photos": []string{
				"https://cdn.example.com/e2e-1.jpg",
				"https://cdn.example.com/e2e-2.jpg",
				"https://cdn.example.com/e2e-3.jpg",
			},
		},
	})
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("register returned %d: %v", status, resp["message"])
	}
	data, _ := resp["data"].(map[string]interface{})
	regID, _ := data["id"].(string)
	if regID == "" {
		t.Fatal("register response missing registration id")
	}
	t.Logf("Registered: %s", regID)

	// Step 2: 会话 Cookie 生效，能读到自己的资料
	t.Log("Step 2: Verifying session...")
	status, _, err = client.DoJSON("GET", "/api/v1/pets/my-profile", nil)
	if err != nil {
		t.Fatalf("my-profile request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("my-profile returned %d", status)
	}

	// Step 3: 登出后受保护接口拒绝访问
	t.Log("Step 3: Logout...")
	if err := client.Logout(); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	status, _, err = client.DoJSON("GET", "/api/v1/pets/my-profile", nil)
	if err != nil {
		t.Fatalf("my-profile request failed: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("my-profile after logout returned %d, want 401", status)
	}

	// Step 4: 管理员审核（需要环境提供管理员凭据）
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		t.Log("ADMIN_EMAIL/ADMIN_PASSWORD not set, stopping before admin steps")
		return
	}
	t.Log("Step 4: Admin approval...")
	if err := client.LoginAdmin(adminEmail, adminPassword); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	status, resp, err = client.DoJSON("PATCH", "/api/v1/admin/status/"+regID, map[string]string{
		"status": "approved",
	})
	if err != nil {
		t.Fatalf("approve request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("approve returned %d: %v", status, resp["message"])
	}
	if err := client.Logout(); err != nil {
		t.Fatalf("admin logout failed: %v", err)
	}

	// Step 5: 公开列表里能看到这只宠物
	t.Log("Step 5: Browsing approved pets...")
	status, resp, err = client.DoJSON("GET", "/api/v1/pets/approved-pets", nil)
	if err != nil {
		t.Fatalf("approved-pets request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("approved-pets returned %d", status)
	}
	if !listingContains(resp, regID) {
		t.Fatalf("registration %s not in public listing", regID)
	}

	// Step 6: 匿名提交领养申请
	t.Log("Step 6: Submitting adoption request...")
	status, resp, err = client.DoJSON("POST", "/api/v1/pets/adopt/"+regID, map[string]string{
		"name":    "E2E Adopter",
		"email":   adopterEmail,
		"phone":   "13600007777",
		"message": "E2E adoption request",
	})
	if err != nil {
		t.Fatalf("adopt request failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("adopt returned %d: %v", status, resp["message"])
	}
	adoption, _ := resp["data"].(map[string]interface{})
	adoptionID, _ := adoption["id"].(string)
	if adoptionID == "" {
		t.Fatal("adopt response missing request id")
	}

	// Step 7: 主人批准申请，宠物进入终态并退出公开列表
	t.Log("Step 7: Owner approving request...")
	if err := client.LoginOwner(ownerEmail, ownerPassword); err != nil {
		t.Fatalf("owner login failed: %v", err)
	}
	status, resp, err = client.DoJSON("PATCH", "/api/v1/pets/adoption-request/"+adoptionID, map[string]string{
		"action": "approve",
	})
	if err != nil {
		t.Fatalf("decide request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("decide returned %d: %v", status, resp["message"])
	}

	status, resp, err = client.DoJSON("GET", "/api/v1/pets/approved-pets", nil)
	if err != nil {
		t.Fatalf("approved-pets request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("approved-pets returned %d", status)
	}
	if listingContains(resp, regID) {
		t.Fatalf("adopted registration %s still in public listing", regID)
	}

	// Step 8: 申请人能按邮箱查到已批准的申请
	t.Log("Step 8: Adopter checking request status...")
	status, resp, err = client.DoJSON("GET", "/api/v1/pets/user-adoption-requests?email="+adopterEmail, nil)
	if err != nil {
		t.Fatalf("user-adoption-requests failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("user-adoption-requests returned %d", status)
	}
	entries, _ := resp["data"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("adopter requests = %d, want 1", len(entries))
	}
	entry, _ := entries[0].(map[string]interface{})
	request, _ := entry["request"].(map[string]interface{})
	if got, _ := request["status"].(string); got != "approved" {
		t.Fatalf("request status = %q, want approved", got)
	}
}

// listingContains 在公开列表响应里查找指定登记
func listingContains(resp map[string]interface{}, regID string) bool {
	items, _ := resp["data"].([]interface{})
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok && m["id"] == regID {
			return true
		}
	}
	return false
}
