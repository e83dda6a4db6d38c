package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"petmarket/internal/shared/model"
)

// AccountResolver 中间件所需的最小存储接口：按 ID 查账号
type AccountResolver interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/api/v1/pets/register",
	"/api/v1/pets/login",
	"/api/v1/pets/logout",
	"/api/v1/pets/approved-pets",
	"/api/v1/pets/adopt/",
	"/api/v1/pets/user-adoption-requests",
	"/api/v1/users/register",
	"/api/v1/users/login",
	"/api/v1/users/google/sign-in",
	"/api/v1/users/admin/login",
	"/health",
	"/metrics",
}

func isPublicRoute(method, path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// 商品目录只读接口公开，写接口走认证
	if method == http.MethodGet && strings.HasPrefix(path, "/api/v1/products") {
		return true
	}
	return false
}

// Middleware 创建会话认证中间件
//
// 如果 cfg.Enabled() == false，直接放行所有请求（无认证模式）。
// 令牌通过后还要回查账号：账号不存在、已停用、或令牌签发早于
// 最近一次改密的，一律拒绝。
func Middleware(cfg Config, accounts AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 无认证模式：直接放行
			if !cfg.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			// 公开路由：直接放行
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, `{"success":false,"message":"you are not logged in"}`, http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(cfg, token)
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				http.Error(w, `{"success":false,"message":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			if claims.Type != "access" {
				http.Error(w, `{"success":false,"message":"invalid token type"}`, http.StatusUnauthorized)
				return
			}

			acct, err := accounts.GetAccountByID(r.Context(), claims.Subject)
			if err != nil {
				log.Printf("[auth] account lookup error: %v", err)
				http.Error(w, `{"success":false,"message":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if acct == nil {
				http.Error(w, `{"success":false,"message":"the account belonging to this token no longer exists"}`, http.StatusUnauthorized)
				return
			}
			if !acct.IsActive {
				http.Error(w, `{"success":false,"message":"account is disabled"}`, http.StatusForbidden)
				return
			}
			if claims.IssuedAt != nil && acct.PasswordStale(claims.IssuedAt.Time) {
				http.Error(w, `{"success":false,"message":"password was changed recently, please log in again"}`, http.StatusUnauthorized)
				return
			}

			user := &AuthUser{
				ID:    acct.ID,
				Email: acct.Email,
				Role:  string(acct.Role),
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

// AdminOnly 管理员专属路由中间件
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil || user.Role != string(model.AccountRoleAdmin) {
			http.Error(w, `{"success":false,"message":"admin access required"}`, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
