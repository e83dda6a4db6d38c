// 路由装配与中间件链
//
// 中间件顺序（外→内）：
//
//	CORS → 请求体限长 → 指标 → 认证 → OpenAPI 请求校验 → 业务路由
//
// CORS 在最外层保证预检请求不经过认证；限长在指标之前保证超限请求也计入指标。
package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/apiserver/product"
	"petmarket/internal/apiserver/registration"
	"petmarket/internal/apiserver/user"
)

// maxBodyBytes 单个请求体上限（照片以 data URI 内联上传，需要放宽到 50MB）
const maxBodyBytes = 50 << 20

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /      - 欢迎页
//
// 宠物登记 (Registration):
//   - POST   /api/v1/pets/register                 - 登记宠物并创建主人账号
//   - POST   /api/v1/pets/login                    - 主人登录
//   - GET    /api/v1/pets/logout                   - 注销会话
//   - GET    /api/v1/pets/approved-pets            - 公开领养列表
//   - POST   /api/v1/pets/adopt/{id}               - 提交领养申请
//   - GET    /api/v1/pets/user-adoption-requests   - 按邮箱查询领养申请
//   - GET    /api/v1/pets/my-profile               - 主人查看自己的登记
//   - PATCH  /api/v1/pets/update-pet               - 更新宠物资料
//   - PATCH  /api/v1/pets/update-owner             - 更新主人资料
//   - PATCH  /api/v1/pets/update-password          - 修改密码
//   - DELETE /api/v1/pets/delete-registration      - 删除自己的登记
//   - GET    /api/v1/pets/my-adoption-requests     - 主人查看收到的申请
//   - PATCH  /api/v1/pets/adoption-request/{id}    - 审批领养申请
//
// 管理面板 (Admin):
//   - GET    /api/v1/admin/all-registrations       - 全部登记
//   - PATCH  /api/v1/admin/status/{id}             - 审核登记
//   - GET    /api/v1/admin/stats                   - 仪表盘统计
//   - DELETE /api/v1/admin/delete-registration/{id} - 删除登记
//
// 商品 (Product):
//   - GET    /api/v1/products                      - 商品列表（公开）
//   - POST   /api/v1/products                      - 创建商品（管理员）
//   - GET    /api/v1/products/featured/list        - 精选商品
//   - GET    /api/v1/products/category/{category}  - 按分类查询
//   - GET    /api/v1/products/{id}                 - 商品详情
//   - PUT    /api/v1/products/{id}                 - 更新商品（管理员）
//   - PATCH  /api/v1/products/{id}/stock           - 调整库存（管理员）
//   - DELETE /api/v1/products/{id}                 - 下架商品（管理员）
//   - DELETE /api/v1/products/{id}/permanent       - 物理删除（管理员）
//
// 用户 (User):
//   - POST   /api/v1/users/register                - 买家注册
//   - POST   /api/v1/users/login                   - 买家登录
//   - POST   /api/v1/users/google/sign-in          - Google 登录
//   - POST   /api/v1/users/admin/login             - 管理员登录
//   - POST   /api/v1/users/admin/create            - 创建管理员（管理员）
//   - GET    /api/v1/users                         - 用户列表（管理员）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// 登记与领养接口
	regHandler := registration.NewHandler(h.store, h.cache, h.photos, h.authCfg, h.minPhotos)
	regHandler.RegisterRoutes(mux)

	// 商品接口
	prodHandler := product.NewHandler(h.store)
	prodHandler.RegisterRoutes(mux)

	// 用户接口
	userHandler := user.NewHandler(h.store, h.authCfg)
	userHandler.RegisterRoutes(mux)

	// 根路径
	mux.HandleFunc("/", h.Root)

	// OpenAPI 请求校验
	validated := ValidationMiddleware()(mux)

	// 认证中间件
	authedHandler := auth.Middleware(h.authCfg, h.store)(validated)

	// 指标中间件
	apiHandler := h.metrics.MetricsMiddleware(authedHandler)

	// 结构化访问日志
	logged := h.accessLogMiddleware(apiHandler)

	// 请求体限长
	limited := bodyLimitMiddleware(logged)

	// CORS 中间件
	return corsMiddleware(h.allowOrigins, limited)
}

// corsMiddleware 添加 CORS 头支持跨域请求
//
// allowOrigins 为空时放行所有来源；配置了白名单时按请求 Origin 回显，
// 并允许携带凭证（会话 Cookie 需要）。
func corsMiddleware(allowOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowOrigins) == 0 {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if originAllowed(allowOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowOrigins []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range allowOrigins {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}

// accessLogMiddleware 输出结构化访问日志
func (h *Handler) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.accessLog.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), clientIP(r))
	})
}

// clientIP 提取客户端 IP，优先 X-Forwarded-For 首跳
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bodyLimitMiddleware 限制请求体大小
//
// 读完整个请求体再交给下游，超限返回 413。
// 宠物照片以 data URI 内联提交，上限放到 50MB。
func bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
						"success": false,
						"message": "request body too large",
					})
					return
				}
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"success": false,
					"message": "failed to read request body",
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}

		next.ServeHTTP(w, r)
	})
}
