// Package product 商品目录领域 - HTTP 处理
//
// 读接口公开，写接口在路由注册时套 auth.AdminOnly。
package product

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"petmarket/internal/apiserver/auth"
	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// Handler 商品领域 HTTP 处理器
type Handler struct {
	store storage.ProductStore
}

// NewHandler 创建商品处理器
func NewHandler(store storage.ProductStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册商品相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/products", h.List)
	mux.HandleFunc("GET /api/v1/products/featured/list", h.Featured)
	mux.HandleFunc("GET /api/v1/products/category/{category}", h.ByCategory)
	mux.HandleFunc("GET /api/v1/products/{id}", h.Get)

	mux.HandleFunc("POST /api/v1/products", auth.AdminOnly(h.Create))
	mux.HandleFunc("PUT /api/v1/products/{id}", auth.AdminOnly(h.Update))
	mux.HandleFunc("PATCH /api/v1/products/{id}/stock", auth.AdminOnly(h.UpdateStock))
	mux.HandleFunc("DELETE /api/v1/products/{id}", auth.AdminOnly(h.SoftDelete))
	mux.HandleFunc("DELETE /api/v1/products/{id}/permanent", auth.AdminOnly(h.HardDelete))
}

// ============================================================================
// 请求体
// ============================================================================

// Input 商品创建/更新请求体；指针字段区分"未提供"和"零值"
type Input struct {
	Name        *string    `json:"name"`
	Category    *string    `json:"category"`
	Description *string    `json:"description"`
	Price       *flexFloat `json:"price"`
	Stock       *flexInt   `json:"stock"`
	Brand       *string    `json:"brand"`
	Image       *string    `json:"image"`
	Rating      *flexFloat `json:"rating"`
	Reviews     *flexInt   `json:"reviews"`
	Featured    *bool      `json:"featured"`
}

// apply 将请求里带了的字段合并进商品
func (in *Input) apply(p *model.Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Category != nil {
		p.Category = model.ProductCategory(*in.Category)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = float64(*in.Price)
	}
	if in.Stock != nil {
		p.Stock = int(*in.Stock)
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Image != nil {
		p.Image = in.Image
	}
	if in.Rating != nil {
		p.Rating = float64(*in.Rating)
	}
	if in.Reviews != nil {
		p.Reviews = int(*in.Reviews)
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
}

// ============================================================================
// 读接口
// ============================================================================

// List 商品列表
// GET /api/v1/products
//
// 支持的查询参数：
//   - category: 分类精确匹配
//   - search:   name/description/brand 大小写不敏感子串
//   - in_stock: true/false
//   - featured: true/false
//   - limit:    条数上限
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ProductFilter{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		OnlyActive: true,
	}
	if v := q.Get("in_stock"); v != "" {
		b := v == "true"
		filter.InStock = &b
	}
	if v := q.Get("featured"); v != "" {
		b := v == "true"
		filter.Featured = &b
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	products, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		log.Printf("[Product] List error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(products),
		"data":    products,
	})
}

// Featured 精选商品，最多 10 条
// GET /api/v1/products/featured/list
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	featured := true
	products, err := h.store.ListProducts(r.Context(), storage.ProductFilter{
		Featured:   &featured,
		OnlyActive: true,
		Limit:      10,
	})
	if err != nil {
		log.Printf("[Product] Featured error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list featured products")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(products),
		"data":    products,
	})
}

// ByCategory 按分类列出
// GET /api/v1/products/category/{category}
func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category := model.ProductCategory(r.PathValue("category"))
	if !model.ValidProductCategory(category) {
		writeError(w, http.StatusBadRequest, "invalid product category")
		return
	}
	products, err := h.store.ListProducts(r.Context(), storage.ProductFilter{
		Category:   string(category),
		OnlyActive: true,
	})
	if err != nil {
		log.Printf("[Product] ByCategory error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(products),
		"data":    products,
	})
}

// Get 商品详情
// GET /api/v1/products/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.store.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[Product] Get error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": product,
	})
}

// ============================================================================
// 写接口（管理员）
// ============================================================================

// Create 创建商品
// POST /api/v1/products
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	now := time.Now().UTC()
	product := &model.Product{
		ID:        model.NewID("prod"),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(product)
	product.Normalize()
	if err := product.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 商品名唯一：写前检查给出友好错误，并发竞争由存储层唯一索引兜底（ErrDuplicate 同样映射为 400）
	dup, err := h.nameTaken(r, product.Name, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	if dup {
		writeError(w, http.StatusBadRequest, "a product with this name already exists")
		return
	}

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		log.Printf("[Product] Create error: %v", err)
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"data": product,
	})
}

// Update 更新商品；全部受约束字段重新校验，返回规范化后的完整记录
// PUT /api/v1/products/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		log.Printf("[Product] Update lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	in.apply(product)
	product.Normalize()
	if err := product.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if in.Name != nil {
		dup, err := h.nameTaken(r, product.Name, product.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update product")
			return
		}
		if dup {
			writeError(w, http.StatusBadRequest, "a product with this name already exists")
			return
		}
	}

	product.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateProduct(r.Context(), product); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": product,
	})
}

// UpdateStock 更新库存并重算 in_stock
// PATCH /api/v1/products/{id}/stock
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Stock *flexInt `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stock == nil {
		writeError(w, http.StatusBadRequest, "stock is required")
		return
	}
	stock := int(*req.Stock)
	if stock < 0 {
		writeError(w, http.StatusBadRequest, "stock cannot be negative")
		return
	}

	if err := h.store.UpdateProductStock(r.Context(), id, stock); err != nil {
		writeStoreError(w, err)
		return
	}
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil || product == nil {
		writeSuccess(w, http.StatusOK, map[string]interface{}{
			"message": "stock updated",
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": product,
	})
}

// SoftDelete 下架（软删除）
// DELETE /api/v1/products/{id}
func (h *Handler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SoftDeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "product deactivated",
	})
}

// HardDelete 物理删除
// DELETE /api/v1/products/{id}/permanent
func (h *Handler) HardDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "product deleted",
	})
}

// nameTaken 大小写不敏感的商品名查重；excludeID 跳过自身
func (h *Handler) nameTaken(r *http.Request, name, excludeID string) (bool, error) {
	existing, err := h.store.ListProducts(r.Context(), storage.ProductFilter{Search: name})
	if err != nil {
		log.Printf("[Product] name check error: %v", err)
		return false, err
	}
	for _, p := range existing {
		if p.ID != excludeID && strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}
