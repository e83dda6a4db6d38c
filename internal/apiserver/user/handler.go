// Package user 商城用户目录 - HTTP 处理
//
// 与宠物主人共用一张账号表（统一身份空间），区别只在 role 字段：
// 普通用户 user、管理员 admin。登录锁定策略与主人登录完全一致。
package user

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// Handler 用户领域 HTTP 处理器
type Handler struct {
	store   storage.AccountStore
	authCfg auth.Config
}

// NewHandler 创建用户处理器
func NewHandler(store storage.AccountStore, authCfg auth.Config) *Handler {
	return &Handler{store: store, authCfg: authCfg}
}

// RegisterRoutes 注册用户相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users/register", h.Register)
	mux.HandleFunc("POST /api/v1/users/login", h.Login)
	mux.HandleFunc("POST /api/v1/users/google/sign-in", h.GoogleSignIn)
	mux.HandleFunc("POST /api/v1/users/admin/login", h.AdminLogin)
	mux.HandleFunc("POST /api/v1/users/admin/create", auth.AdminOnly(h.AdminCreate))
	mux.HandleFunc("GET /api/v1/users", auth.AdminOnly(h.List))
}

func logf(format string, args ...interface{}) {
	log.Printf("[User] "+format, args...)
}

// ============================================================================
// 请求体
// ============================================================================

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleSignInRequest 社交登录的资料回填
type GoogleSignInRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ============================================================================
// HTTP 处理函数
// ============================================================================

// Register 用户注册
// POST /api/v1/users/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	acct, err := h.createAccount(r, req.Email, req.Username, req.Password, "", model.AccountRoleUser)
	if err != nil {
		if err == storage.ErrDuplicate {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		logf("Register error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	h.issueSession(w, http.StatusCreated, acct)
}

// Login 用户登录
// POST /api/v1/users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.verifyCredentials(w, r)
	if !ok {
		return
	}
	h.issueSession(w, http.StatusOK, acct)
}

// AdminLogin 管理员登录：凭据校验之外还要求 admin 角色
// POST /api/v1/users/admin/login
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.verifyCredentials(w, r)
	if !ok {
		return
	}
	if acct.Role != model.AccountRoleAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}
	h.issueSession(w, http.StatusOK, acct)
}

// GoogleSignIn 社交登录：首次登录时按资料创建账号
// POST /api/v1/users/google/sign-in
//
// 对 Google 的令牌校验不在本服务范围，调用方传入已验证的资料。
// 社交账号无本地密码，不能走密码登录。
func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	acct, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		logf("GoogleSignIn lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if acct == nil {
		acct, err = h.createAccount(r, req.Email, req.Name, "", req.Picture, model.AccountRoleUser)
		if err != nil {
			logf("GoogleSignIn create error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}
	}
	if !acct.IsActive {
		writeError(w, http.StatusForbidden, "account is disabled")
		return
	}
	h.issueSession(w, http.StatusOK, acct)
}

// AdminCreate 管理员创建另一个管理员账号
// POST /api/v1/users/admin/create
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	acct, err := h.createAccount(r, req.Email, req.Username, req.Password, "", model.AccountRoleAdmin)
	if err != nil {
		if err == storage.ErrDuplicate {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		logf("AdminCreate error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"data": acct,
	})
}

// List 全部账号
// GET /api/v1/users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		logf("List error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(accounts),
		"data":    accounts,
	})
}

// ============================================================================
// 内部辅助
// ============================================================================

// createAccount 建号；password 为空表示社交账号（无本地密码）
func (h *Handler) createAccount(r *http.Request, email, username, password, picture string, role model.AccountRole) (*model.Account, error) {
	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	acct := &model.Account{
		ID:           model.NewID("acct"),
		Email:        email,
		PasswordHash: hash,
		Username:     username,
		Picture:      picture,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateAccount(r.Context(), acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// verifyCredentials 密码登录的共享路径：锁定检查先于密码比对
func (h *Handler) verifyCredentials(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return nil, false
	}

	acct, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		logf("Login lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return nil, false
	}
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return nil, false
	}

	now := time.Now().UTC()
	if acct.Locked(now) {
		writeError(w, http.StatusLocked, "account locked due to too many failed login attempts, try again later")
		return nil, false
	}
	if !acct.IsActive {
		writeError(w, http.StatusForbidden, "account is disabled")
		return nil, false
	}

	// 社交账号（无本地密码哈希）不能走密码登录
	if acct.PasswordHash == "" || !auth.CheckPassword(req.Password, acct.PasswordHash) {
		attempts, lockUntil := acct.NextLockoutState(now)
		err := h.store.UpdateLockoutState(r.Context(), acct.ID, acct.LoginAttempts, attempts, lockUntil)
		if err != nil && err != storage.ErrConflict {
			logf("Login lockout update error: %v", err)
		}
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return nil, false
	}

	if acct.LoginAttempts > 0 || acct.LockUntil != nil {
		if err := h.store.ResetLockout(r.Context(), acct.ID); err != nil {
			logf("Login lockout reset error: %v", err)
		}
	}
	return acct, true
}

// issueSession 签发令牌并写会话 Cookie
func (h *Handler) issueSession(w http.ResponseWriter, status int, acct *model.Account) {
	token, err := auth.GenerateAccessToken(h.authCfg, acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		logf("token error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	auth.SetSessionCookie(w, token, h.authCfg.TokenTTL)
	writeSuccess(w, status, map[string]interface{}{
		"token": token,
		"data":  acct,
	})
}
