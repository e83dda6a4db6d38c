package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage/memstore"
)

type testEnv struct {
	store   *memstore.Store
	handler http.Handler
	authCfg auth.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.NewStore()
	authCfg := auth.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}

	mux := http.NewServeMux()
	NewHandler(store, authCfg).RegisterRoutes(mux)

	return &testEnv{
		store:   store,
		handler: auth.Middleware(authCfg, store)(mux),
		authCfg: authCfg,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]interface{}) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	envelope := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, envelope
}

func (e *testEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	hash, _ := auth.HashPassword("admin-pass-123")
	acct := &model.Account{
		ID:           model.NewID("acct"),
		Email:        "admin@example.com",
		PasswordHash: hash,
		Username:     "admin",
		Role:         model.AccountRoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateAccount(t.Context(), acct); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, err := auth.GenerateAccessToken(e.authCfg, acct.ID, acct.Email, "admin")
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return token
}

func TestUserRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("注册", func(t *testing.T) {
		code, resp := env.do(t, "POST", "/api/v1/users/register", "",
			`{"username":"li si","email":"User@Example.com","password":"password123"}`)
		if code != http.StatusCreated {
			t.Fatalf("status = %d, resp = %v", code, resp)
		}
		data := resp["data"].(map[string]interface{})
		if data["email"] != "user@example.com" || data["role"] != "user" {
			t.Errorf("data = %v", data)
		}
		if _, leaked := data["password_hash"]; leaked {
			t.Error("password hash leaked in response")
		}
		if resp["token"] == nil {
			t.Error("no token issued")
		}
	})

	t.Run("重复邮箱 409", func(t *testing.T) {
		code, _ := env.do(t, "POST", "/api/v1/users/register", "",
			`{"username":"other","email":"user@example.com","password":"password123"}`)
		if code != http.StatusConflict {
			t.Errorf("status = %d", code)
		}
	})

	t.Run("登录", func(t *testing.T) {
		code, resp := env.do(t, "POST", "/api/v1/users/login", "",
			`{"email":"user@example.com","password":"password123"}`)
		if code != http.StatusOK || resp["token"] == nil {
			t.Fatalf("status = %d, resp = %v", code, resp)
		}
	})

	t.Run("错误密码 401", func(t *testing.T) {
		code, _ := env.do(t, "POST", "/api/v1/users/login", "",
			`{"email":"user@example.com","password":"nope-nope"}`)
		if code != http.StatusUnauthorized {
			t.Errorf("status = %d", code)
		}
	})

	t.Run("连续失败触发锁定", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			env.do(t, "POST", "/api/v1/users/login", "",
				`{"email":"user@example.com","password":"nope-nope"}`)
		}
		code, _ := env.do(t, "POST", "/api/v1/users/login", "",
			`{"email":"user@example.com","password":"password123"}`)
		if code != http.StatusLocked {
			t.Errorf("status = %d, want 423", code)
		}
	})
}

func TestGoogleSignIn(t *testing.T) {
	env := newTestEnv(t)

	t.Run("首次登录建号", func(t *testing.T) {
		code, resp := env.do(t, "POST", "/api/v1/users/google/sign-in", "",
			`{"email":"social@example.com","name":"Social User","picture":"https://lh3.example.com/p.jpg"}`)
		if code != http.StatusOK {
			t.Fatalf("status = %d, resp = %v", code, resp)
		}
		data := resp["data"].(map[string]interface{})
		if data["role"] != "user" || data["picture"] != "https://lh3.example.com/p.jpg" {
			t.Errorf("data = %v", data)
		}
	})

	t.Run("再次登录不重复建号", func(t *testing.T) {
		code, _ := env.do(t, "POST", "/api/v1/users/google/sign-in", "",
			`{"email":"social@example.com","name":"Social User"}`)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		accts, _ := env.store.ListAccounts(t.Context())
		if len(accts) != 1 {
			t.Errorf("accounts = %d, want 1", len(accts))
		}
	})

	t.Run("社交账号不能走密码登录", func(t *testing.T) {
		code, _ := env.do(t, "POST", "/api/v1/users/login", "",
			`{"email":"social@example.com","password":"anything-goes"}`)
		if code != http.StatusUnauthorized {
			t.Errorf("status = %d", code)
		}
	})
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.seedAdmin(t)

	t.Run("管理员登录", func(t *testing.T) {
		code, resp := env.do(t, "POST", "/api/v1/users/admin/login", "",
			`{"email":"admin@example.com","password":"admin-pass-123"}`)
		if code != http.StatusOK || resp["token"] == nil {
			t.Fatalf("status = %d, resp = %v", code, resp)
		}
	})

	t.Run("普通用户走管理员登录被拒", func(t *testing.T) {
		env.do(t, "POST", "/api/v1/users/register", "",
			`{"username":"pleb","email":"pleb@example.com","password":"password123"}`)
		code, _ := env.do(t, "POST", "/api/v1/users/admin/login", "",
			`{"email":"pleb@example.com","password":"password123"}`)
		if code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", code)
		}
	})

	t.Run("创建管理员需要管理员令牌", func(t *testing.T) {
		code, _ := env.do(t, "POST", "/api/v1/users/admin/create", "",
			`{"username":"adm2","email":"adm2@example.com","password":"password123"}`)
		if code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", code)
		}

		code, resp := env.do(t, "POST", "/api/v1/users/admin/create", adminToken,
			`{"username":"adm2","email":"adm2@example.com","password":"password123"}`)
		if code != http.StatusCreated {
			t.Fatalf("status = %d, resp = %v", code, resp)
		}
		if resp["data"].(map[string]interface{})["role"] != "admin" {
			t.Errorf("role = %v", resp["data"])
		}
	})

	t.Run("用户列表", func(t *testing.T) {
		code, resp := env.do(t, "GET", "/api/v1/users", adminToken, "")
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp["results"].(float64) < 3 {
			t.Errorf("results = %v", resp["results"])
		}
	})
}
