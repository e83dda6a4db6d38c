// Package registration 领养登记领域 - HTTP 处理
//
// 覆盖宠物主人的全部自助操作（注册、登录、资料与宠物维护、注销登记）、
// 公开的领养浏览与申请入口，以及管理员审核接口。
package registration

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/cache"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/objstore"
	"petmarket/internal/shared/storage"
)

// Store 本领域所需的存储接口：账号 + 登记
type Store interface {
	storage.AccountStore
	storage.RegistrationStore
}

// Handler 登记领域 HTTP 处理器
type Handler struct {
	store     Store
	cache     cache.Cache
	photos    *objstore.Client // nil 时照片原样内联存储
	authCfg   auth.Config
	minPhotos int
}

// NewHandler 创建登记处理器
//
// photos 传 nil 表示未配置对象存储，data URI 照片直接入库。
func NewHandler(store Store, c cache.Cache, photos *objstore.Client, authCfg auth.Config, minPhotos int) *Handler {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Handler{store: store, cache: c, photos: photos, authCfg: authCfg, minPhotos: minPhotos}
}

// RegisterRoutes 注册登记相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// 会话
	mux.HandleFunc("POST /api/v1/pets/register", h.Register)
	mux.HandleFunc("POST /api/v1/pets/login", h.Login)
	mux.HandleFunc("GET /api/v1/pets/logout", h.Logout)

	// 主人自助
	mux.HandleFunc("GET /api/v1/pets/my-profile", h.MyProfile)
	mux.HandleFunc("PATCH /api/v1/pets/update-pet", h.UpdatePet)
	mux.HandleFunc("PATCH /api/v1/pets/update-owner", h.UpdateOwner)
	mux.HandleFunc("PATCH /api/v1/pets/update-password", h.UpdatePassword)
	mux.HandleFunc("DELETE /api/v1/pets/delete-registration", h.DeleteRegistration)

	// 领养
	mux.HandleFunc("GET /api/v1/pets/approved-pets", h.ApprovedPets)
	mux.HandleFunc("POST /api/v1/pets/adopt/{id}", h.Adopt)
	mux.HandleFunc("GET /api/v1/pets/user-adoption-requests", h.AdoptionRequestsByEmail)
	mux.HandleFunc("GET /api/v1/pets/my-adoption-requests", h.MyAdoptionRequests)
	mux.HandleFunc("PATCH /api/v1/pets/adoption-request/{id}", h.DecideAdoption)

	// 管理员
	mux.HandleFunc("GET /api/v1/admin/all-registrations", auth.AdminOnly(h.AllRegistrations))
	mux.HandleFunc("PATCH /api/v1/admin/status/{id}", auth.AdminOnly(h.SetStatus))
	mux.HandleFunc("GET /api/v1/admin/stats", auth.AdminOnly(h.Stats))
	mux.HandleFunc("DELETE /api/v1/admin/delete-registration/{id}", auth.AdminOnly(h.AdminDeleteRegistration))
}

func logf(format string, args ...interface{}) {
	log.Printf("[Registration] "+format, args...)
}

// ============================================================================
// 请求体
// ============================================================================

// RegisterRequest 注册请求：主人信息 + 宠物信息
type RegisterRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Phone    string   `json:"phone"`
	Pet      PetInput `json:"pet"`
}

// PetInput 宠物可编辑字段
//
// Vaccinated/Trained 用指针区分"未提交"与显式 false，更新时才能清除标记。
type PetInput struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Breed       string   `json:"breed"`
	Age         string   `json:"age"`
	Gender      string   `json:"gender"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Vaccinated  *bool    `json:"vaccinated"`
	Trained     *bool    `json:"trained"`
	Photos      []string `json:"photos"`
	License     string   `json:"license"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p PetInput) toModel() model.Pet {
	pet := model.Pet{
		Name:        p.Name,
		Type:        p.Type,
		Breed:       p.Breed,
		Age:         p.Age,
		Gender:      p.Gender,
		Location:    p.Location,
		Description: p.Description,
		Photos:      p.Photos,
		License:     p.License,
	}
	if p.Vaccinated != nil {
		pet.Vaccinated = *p.Vaccinated
	}
	if p.Trained != nil {
		pet.Trained = *p.Trained
	}
	if pet.Type == "" {
		pet.Type = "Dog"
	}
	if pet.Gender == "" {
		pet.Gender = "Male"
	}
	return pet
}

// ============================================================================
// 会话
// ============================================================================

// Register 注册：创建账号 + 一条待审核登记，并直接签发会话
// POST /api/v1/pets/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "name, email and phone are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Pet.Name == "" || req.Pet.Breed == "" || req.Pet.Age == "" ||
		req.Pet.Location == "" || req.Pet.Description == "" || req.Pet.License == "" {
		writeError(w, http.StatusBadRequest, "pet name, breed, age, location, description and license are required")
		return
	}
	if len(req.Pet.Photos) < h.minPhotos {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at least %d photos are required", h.minPhotos))
		return
	}

	existing, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		logf("Register lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	now := time.Now().UTC()
	acct := &model.Account{
		ID:           model.NewID("acct"),
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Username:     req.Name,
		Role:         model.AccountRoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateAccount(r.Context(), acct); err != nil {
		if err == storage.ErrDuplicate {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		logf("Register create account error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	reg := &model.Registration{
		ID:        model.NewID("reg"),
		AccountID: acct.ID,
		Pet:       req.Pet.toModel(),
		Status:    model.RegistrationStatusPending,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	reg.Pet.AdoptionStatus = model.PetAvailable
	reg.Pet.Photos = h.storePhotos(r, reg.ID, reg.Pet.Photos)

	if err := h.store.CreateRegistration(r.Context(), reg); err != nil {
		// 登记落库失败时回滚账号，避免留下无登记的孤儿账号
		if derr := h.store.DeleteAccount(r.Context(), acct.ID); derr != nil {
			logf("Register rollback error: %v", derr)
		}
		logf("Register create registration error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	token, err := auth.GenerateAccessToken(h.authCfg, acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		logf("Register token error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	auth.SetSessionCookie(w, token, h.authCfg.TokenTTL)
	h.invalidateListing(r.Context())

	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"data":  h.viewOf(r.Context(), reg),
	})
}

// Login 登录：锁定检查先于密码比对
// POST /api/v1/pets/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	acct, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		logf("Login lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	now := time.Now().UTC()
	if acct.Locked(now) {
		writeError(w, http.StatusLocked, "account locked due to too many failed login attempts, try again later")
		return
	}
	if !acct.IsActive {
		writeError(w, http.StatusForbidden, "account is disabled")
		return
	}

	if !auth.CheckPassword(req.Password, acct.PasswordHash) {
		attempts, lockUntil := acct.NextLockoutState(now)
		err := h.store.UpdateLockoutState(r.Context(), acct.ID, acct.LoginAttempts, attempts, lockUntil)
		if err != nil && err != storage.ErrConflict {
			// 并发登录失败竞争（ErrConflict）无需重试，本次失败照常返回
			logf("Login lockout update error: %v", err)
		}
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	if acct.LoginAttempts > 0 || acct.LockUntil != nil {
		if err := h.store.ResetLockout(r.Context(), acct.ID); err != nil {
			logf("Login lockout reset error: %v", err)
		}
	}

	token, err := auth.GenerateAccessToken(h.authCfg, acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		logf("Login token error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	auth.SetSessionCookie(w, token, h.authCfg.TokenTTL)

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"data":  acct,
	})
}

// Logout 登出：用短时效哨兵 Cookie 覆盖会话
// GET /api/v1/pets/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "logged out",
	})
}

// ============================================================================
// 主人自助
// ============================================================================

// currentRegistration 取当前会话主人的登记
func (h *Handler) currentRegistration(w http.ResponseWriter, r *http.Request) (*model.Account, *model.Registration, bool) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "you are not logged in")
		return nil, nil, false
	}
	acct, err := h.store.GetAccountByID(r.Context(), user.ID)
	if err != nil {
		logf("account lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return nil, nil, false
	}
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return nil, nil, false
	}
	reg, err := h.store.GetRegistrationByAccount(r.Context(), acct.ID)
	if err != nil {
		logf("registration lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return nil, nil, false
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, "no registration found for this account")
		return nil, nil, false
	}
	return acct, reg, true
}

// MyProfile 我的登记资料
// GET /api/v1/pets/my-profile
func (h *Handler) MyProfile(w http.ResponseWriter, r *http.Request) {
	_, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": h.viewOf(r.Context(), reg),
	})
}

// UpdatePet 更新宠物资料（不触碰领养状态）
// PATCH /api/v1/pets/update-pet
func (h *Handler) UpdatePet(w http.ResponseWriter, r *http.Request) {
	_, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	var req PetInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 合并：只覆盖请求里带了的字段
	pet := reg.Pet
	if req.Name != "" {
		pet.Name = req.Name
	}
	if req.Type != "" {
		pet.Type = req.Type
	}
	if req.Breed != "" {
		pet.Breed = req.Breed
	}
	if req.Age != "" {
		pet.Age = req.Age
	}
	if req.Gender != "" {
		pet.Gender = req.Gender
	}
	if req.Location != "" {
		pet.Location = req.Location
	}
	if req.Description != "" {
		pet.Description = req.Description
	}
	if req.License != "" {
		pet.License = req.License
	}
	if req.Vaccinated != nil {
		pet.Vaccinated = *req.Vaccinated
	}
	if req.Trained != nil {
		pet.Trained = *req.Trained
	}
	if req.Photos != nil {
		if len(req.Photos) < h.minPhotos {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at least %d photos are required", h.minPhotos))
			return
		}
		pet.Photos = h.storePhotos(r, reg.ID, req.Photos)
	}

	if err := h.store.UpdatePet(r.Context(), reg.ID, pet); err != nil {
		writeStoreError(w, err, "registration was modified concurrently")
		return
	}
	h.invalidateListing(r.Context())

	reg.Pet = pet
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": h.viewOf(r.Context(), reg),
	})
}

// UpdateOwner 更新主人联系资料
// PATCH /api/v1/pets/update-owner
func (h *Handler) UpdateOwner(w http.ResponseWriter, r *http.Request) {
	acct, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Bio     string `json:"bio"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		acct.Username = req.Name
	}
	if req.Phone != "" {
		acct.Phone = req.Phone
	}
	if req.Bio != "" {
		acct.Bio = req.Bio
	}
	if req.Picture != "" {
		acct.Picture = req.Picture
	}
	acct.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateAccountProfile(r.Context(), acct); err != nil {
		writeStoreError(w, err, "account was modified concurrently")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": h.viewOf(r.Context(), reg),
	})
}

// UpdatePassword 改密：旧令牌随 password_changed_at 推进全部失效，签发新令牌
// PATCH /api/v1/pets/update-password
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	acct, _, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, acct.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	now := time.Now().UTC()
	if err := h.store.UpdateAccountPassword(r.Context(), acct.ID, hash, now); err != nil {
		writeStoreError(w, err, "account was modified concurrently")
		return
	}

	token, err := auth.GenerateAccessToken(h.authCfg, acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	auth.SetSessionCookie(w, token, h.authCfg.TokenTTL)

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"message": "password updated",
	})
}

// DeleteRegistration 主人注销登记：有 pending 申请时拒绝
// DELETE /api/v1/pets/delete-registration
func (h *Handler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	acct, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRegistrationIfNoPending(r.Context(), reg.ID); err != nil {
		writeStoreError(w, err, "registration has pending adoption requests")
		return
	}
	if err := h.store.DeleteAccount(r.Context(), acct.ID); err != nil {
		logf("DeleteRegistration account cleanup error: %v", err)
	}
	auth.ClearSessionCookie(w)
	h.invalidateListing(r.Context())

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "registration deleted",
	})
}

// storePhotos 尽力把 data URI 照片转存到对象存储
//
// 未配置对象存储或单张转存失败时，保留原始值（与原系统内联存储兼容）。
func (h *Handler) storePhotos(r *http.Request, regID string, photos []string) []string {
	if h.photos == nil {
		return photos
	}
	out := make([]string, len(photos))
	for i, photo := range photos {
		key := fmt.Sprintf("pets/%s/photo-%d", regID, i)
		url, err := h.photos.UploadPhoto(r.Context(), key, photo)
		if err != nil {
			logf("photo upload error: %v", err)
			out[i] = photo
			continue
		}
		out[i] = url
	}
	return out
}
