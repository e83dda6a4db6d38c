// admin.go 管理员审核接口（路由注册时套 auth.AdminOnly）
package registration

import (
	"encoding/json"
	"net/http"

	"petmarket/internal/shared/model"
)

// AllRegistrations 全部登记（含软删除与未过审记录）
// GET /api/v1/admin/all-registrations
func (h *Handler) AllRegistrations(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	regs, err := h.store.ListRegistrations(r.Context(), onlyActive)
	if err != nil {
		logf("AllRegistrations error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(regs),
		"data":    h.viewsOf(r.Context(), regs),
	})
}

// SetStatus 审核登记
// PATCH /api/v1/admin/status/{id}
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Status model.RegistrationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidRegistrationStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	if err := h.store.UpdateRegistrationStatus(r.Context(), id, req.Status); err != nil {
		writeStoreError(w, err, "registration was modified concurrently")
		return
	}
	h.invalidateListing(r.Context())

	reg, err := h.store.GetRegistration(r.Context(), id)
	if err != nil || reg == nil {
		writeSuccess(w, http.StatusOK, map[string]interface{}{
			"message": "status updated",
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": h.viewOf(r.Context(), reg),
	})
}

// Stats 管理面板统计（旁路缓存）
// GET /api/v1/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetRegistrationStats(r.Context())
	if err != nil {
		logf("stats cache read error: %v", err)
	}
	if stats == nil {
		fresh, err := h.store.CountRegistrationsByStatus(r.Context())
		if err != nil {
			logf("Stats error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		stats = &fresh
		if err := h.cache.SetRegistrationStats(r.Context(), fresh); err != nil {
			logf("stats cache write error: %v", err)
		}
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": stats,
	})
}

// AdminDeleteRegistration 管理员无条件删除登记及其账号
// DELETE /api/v1/admin/delete-registration/{id}
func (h *Handler) AdminDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	reg, err := h.store.GetRegistration(r.Context(), id)
	if err != nil {
		logf("AdminDeleteRegistration lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete registration")
		return
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}

	if err := h.store.DeleteRegistration(r.Context(), id); err != nil {
		writeStoreError(w, err, "registration was modified concurrently")
		return
	}
	if err := h.store.DeleteAccount(r.Context(), reg.AccountID); err != nil {
		logf("AdminDeleteRegistration account cleanup error: %v", err)
	}
	h.invalidateListing(r.Context())

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "registration deleted",
	})
}
