// Package server 路由装配与核心基础设施
//
// 本包实现宠物领养市场 RESTful API 的顶层装配，包括：
//   - 路由装配（registration / product / user 各领域包）
//   - 中间件链（CORS、请求体限长、指标、认证、请求校验）
//   - Prometheus 指标
//
// 文件组织：
//   - common.go: Handler 定义与通用处理函数
//   - handler.go: 路由装配与中间件链
//   - metrics.go: Prometheus 指标
//   - validate.go: OpenAPI 请求校验中间件
package server

import (
	"encoding/json"
	"net/http"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/cache"
	"petmarket/internal/shared/objstore"
	"petmarket/internal/shared/storage"
	"petmarket/pkg/logging"
)

// Handler API 顶层装配器
//
// Handler 持有各领域处理器共享的依赖，负责：
//   - 把请求路由到对应的领域包
//   - 管理存储层连接
//   - 挂载中间件链
type Handler struct {
	store  storage.PersistentStore // 持久化业务数据
	cache  cache.Cache             // 公开列表 / 统计的旁路缓存
	photos *objstore.Client        // 照片对象存储（可为 nil，照片内联保存）

	authCfg      auth.Config // 会话令牌配置
	minPhotos    int         // 登记时要求的最少照片数
	allowOrigins []string    // CORS 白名单；空列表放行所有来源

	metrics   *Metrics        // Prometheus 指标
	accessLog *logging.Logger // 结构化访问日志
}

// Options Handler 的可选依赖
type Options struct {
	Cache        cache.Cache      // 为 nil 时注入空缓存
	Photos       *objstore.Client // 为 nil 时照片内联保存
	MinPhotos    int
	AllowOrigins []string
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, authCfg auth.Config, opts Options) *Handler {
	c := opts.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Handler{
		store:        store,
		cache:        c,
		photos:       opts.Photos,
		authCfg:      authCfg,
		minPhotos:    opts.MinPhotos,
		allowOrigins: opts.AllowOrigins,
		metrics:      NewMetrics("petmarket"),
		accessLog:    logging.Default("api"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
// 返回 {"status": "ok"} 表示服务正常运行。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Root 根路径欢迎接口
//
// 路由: GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "route not found",
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Pet adoption API is running"))
}
