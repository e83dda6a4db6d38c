// Package testutil 提供测试共享基础设施
//
// 包含两类工具：
//   - InProcEnv: 进程内测试环境（用于 integration / regression 测试）
//   - E2EClient: 外部 HTTP 客户端（用于 E2E 验收测试，见 e2e.go）
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/apiserver/server"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
	"petmarket/internal/shared/storage/driver/sqlite"
	"petmarket/internal/shared/storage/memstore"
	"petmarket/internal/shared/storage/mongostore"
	"petmarket/internal/shared/storage/repository"
)

// InProcEnv 进程内测试环境（httptest + 可切换存储后端）
//
// server.NewHandler 会向全局 Prometheus registry 注册指标，
// 每个测试二进制只能调用一次 SetupInProcEnv（放在 TestMain 里）。
type InProcEnv struct {
	Store   storage.PersistentStore
	Handler *server.Handler
	Router  http.Handler
	AuthCfg auth.Config
	Driver  string
}

// SetupInProcEnv 初始化进程内测试环境
//
// TEST_DB_DRIVER 切换存储后端：memory（默认）/ sqlite / mongodb。
// 返回 error 表示外部数据库不可用，调用者应 os.Exit(0) 跳过测试。
func SetupInProcEnv() (*InProcEnv, error) {
	driver := os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		driver = "memory"
	}

	var store storage.PersistentStore
	switch driver {
	case "sqlite":
		db, err := sqlite.Open("file:petmarket_test?mode=memory&cache=shared")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		dialect := sqlite.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		store = repository.NewStore(db, dialect)

	case "mongodb":
		uri := os.Getenv("TEST_MONGO_URI")
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		mongoStore, err := mongostore.NewStore(uri, "petmarket_test")
		if err != nil {
			return nil, fmt.Errorf("mongodb unavailable: %w", err)
		}
		store = mongoStore

	default:
		store = memstore.NewStore()
	}

	authCfg := auth.Config{JWTSecret: "inproc-test-secret", TokenTTL: time.Hour}
	h := server.NewHandler(store, authCfg, server.Options{MinPhotos: 1})

	return &InProcEnv{
		Store:   store,
		Handler: h,
		Router:  h.Router(),
		AuthCfg: authCfg,
		Driver:  driver,
	}, nil
}

// DoJSON 发送 JSON 请求，返回状态码和解析后的响应体
func (e *InProcEnv) DoJSON(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, r)

	resp := map[string]interface{}{}
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w.Code, resp
}

// SeedAdmin 直接在存储层种一个管理员账号并返回其令牌
func (e *InProcEnv) SeedAdmin(t *testing.T, email string) string {
	t.Helper()

	hash, err := auth.HashPassword("admin-password-123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	admin := &model.Account{
		ID:           model.NewID("acct"),
		Email:        email,
		Username:     "admin",
		PasswordHash: hash,
		Role:         model.AccountRoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Store.CreateAccount(t.Context(), admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, err := auth.GenerateAccessToken(e.AuthCfg, admin.ID, admin.Email, "admin")
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return token
}
