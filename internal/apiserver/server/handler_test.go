package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage/memstore"
)

// Prometheus 指标注册到全局 registry，Handler 全测试包共用一个实例。
var (
	testStore   = memstore.NewStore()
	testAuthCfg = auth.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	testHandler = NewHandler(testStore, testAuthCfg, Options{
		MinPhotos:    1,
		AllowOrigins: []string{"https://app.example.com"},
	})
	testRouter = testHandler.Router()
)

func doRequest(method, path string, body io.Reader, mutate func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(r)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, r)
	return w
}

func TestRouter(t *testing.T) {
	t.Run("健康检查", func(t *testing.T) {
		w := doRequest("GET", "/health", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
	})

	t.Run("根路径欢迎页", func(t *testing.T) {
		w := doRequest("GET", "/", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Pet adoption API")
	})

	t.Run("未知路径要求登录", func(t *testing.T) {
		// 非白名单路径先过认证
		w := doRequest("GET", "/nope", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("公开列表无需登录", func(t *testing.T) {
		w := doRequest("GET", "/api/v1/pets/approved-pets", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":true`)
	})

	t.Run("商品读接口公开写接口拒绝", func(t *testing.T) {
		w := doRequest("GET", "/api/v1/products", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest("POST", "/api/v1/products", strings.NewReader(`{"name":"Ball"}`), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("指标端点", func(t *testing.T) {
		doRequest("GET", "/health", nil, nil)
		w := doRequest("GET", "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "petmarket_http_requests_total")
	})
}

func TestCORS(t *testing.T) {
	t.Run("预检请求直接返回", func(t *testing.T) {
		w := doRequest("OPTIONS", "/api/v1/products", nil, func(r *http.Request) {
			r.Header.Set("Origin", "https://app.example.com")
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("白名单外的来源不回显", func(t *testing.T) {
		w := doRequest("OPTIONS", "/api/v1/products", nil, func(r *http.Request) {
			r.Header.Set("Origin", "https://evil.example.com")
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("空白名单放行所有来源", func(t *testing.T) {
		handler := corsMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		r := httptest.NewRequest("GET", "/health", nil)
		r.Header.Set("Origin", "https://anywhere.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestBodyLimit(t *testing.T) {
	t.Run("超限请求返回413", func(t *testing.T) {
		body := bytes.NewReader(make([]byte, maxBodyBytes+1))
		w := doRequest("POST", "/api/v1/users/register", body, nil)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "request body too large")
	})

	t.Run("正常请求体原样透传", func(t *testing.T) {
		var received string
		handler := bodyLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			received = string(b)
		}))
		r := httptest.NewRequest("POST", "/x", strings.NewReader(`{"a":1}`))
		handler.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, `{"a":1}`, received)
	})
}

func TestRequestValidation(t *testing.T) {
	t.Run("非法JSON被拦下", func(t *testing.T) {
		w := doRequest("POST", "/api/v1/users/register", strings.NewReader("not-json"), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid request payload")
	})

	t.Run("合法JSON交给业务处理", func(t *testing.T) {
		// 缺字段由处理器拒绝，而不是校验中间件
		w := doRequest("POST", "/api/v1/users/register", strings.NewReader(`{}`), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotContains(t, w.Body.String(), "invalid request payload")
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/pets/adopt/reg-abc123", "/api/v1/pets/adopt/{id}"},
		{"/api/v1/pets/adoption-request/adopt-ff00", "/api/v1/pets/adoption-request/{id}"},
		{"/api/v1/admin/status/reg-abc123", "/api/v1/admin/status/{id}"},
		{"/api/v1/admin/delete-registration/reg-abc123", "/api/v1/admin/delete-registration/{id}"},
		{"/api/v1/products/prod-abc123", "/api/v1/products/{id}"},
		{"/api/v1/products/prod-abc123/stock", "/api/v1/products/{id}/stock"},
		{"/api/v1/products/prod-abc123/permanent", "/api/v1/products/{id}/permanent"},
		{"/api/v1/products/category/Toys", "/api/v1/products/category/{category}"},
		{"/api/v1/products/featured/list", "/api/v1/products/featured/list"},
		{"/api/v1/pets/approved-pets", "/api/v1/pets/approved-pets"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), tt.path)
	}
}

func TestRefreshDomainMetrics(t *testing.T) {
	store := memstore.NewStore()
	now := time.Now().UTC()
	for i, status := range []model.RegistrationStatus{
		model.RegistrationStatusPending,
		model.RegistrationStatusApproved,
	} {
		acct := &model.Account{
			ID:        model.NewID("acct"),
			Email:     string(rune('a'+i)) + "@example.com",
			Role:      model.AccountRoleOwner,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateAccount(t.Context(), acct))
		reg := &model.Registration{
			ID:        model.NewID("reg"),
			AccountID: acct.ID,
			Status:    status,
			IsActive:  true,
			Pet: model.Pet{
				Name:           "Pet",
				Breed:          "Mixed",
				AdoptionStatus: model.PetAvailable,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateRegistration(t.Context(), reg))
	}

	// 复用共享的 Metrics 实例（Prometheus 全局 registry 不允许重复注册）
	h := &Handler{store: store, metrics: testHandler.metrics}
	h.refreshDomainMetrics(t.Context())

	assert.Equal(t, 1.0, testutil.ToFloat64(
		h.metrics.RegistrationsTotal.WithLabelValues(string(model.RegistrationStatusPending))))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		h.metrics.RegistrationsTotal.WithLabelValues(string(model.RegistrationStatusApproved))))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.PetsAdopted))
}
