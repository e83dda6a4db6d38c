// adoption.go 领养浏览与申请接口
package registration

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"petmarket/internal/shared/model"
)

// AdoptionInput 领养申请请求体
type AdoptionInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// adoptionEntry 跨登记拍平后的申请视图
type adoptionEntry struct {
	RegistrationID string                  `json:"registration_id"`
	PetName        string                  `json:"pet_name"`
	PetBreed       string                  `json:"pet_breed"`
	AdoptionStatus model.PetAdoptionStatus `json:"pet_adoption_status"`
	Request        model.AdoptionRequest   `json:"request"`
}

// ApprovedPets 公开的可领养列表（旁路缓存）
// GET /api/v1/pets/approved-pets
func (h *Handler) ApprovedPets(w http.ResponseWriter, r *http.Request) {
	regs, err := h.cache.GetAdoptableListing(r.Context())
	if err != nil {
		logf("listing cache read error: %v", err)
	}
	if regs == nil {
		regs, err = h.store.ListAdoptableRegistrations(r.Context())
		if err != nil {
			logf("ApprovedPets list error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list adoptable pets")
			return
		}
		if err := h.cache.SetAdoptableListing(r.Context(), regs); err != nil {
			logf("listing cache write error: %v", err)
		}
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(regs),
		"data":    h.viewsOf(r.Context(), regs),
	})
}

// Adopt 提交领养申请
// POST /api/v1/pets/adopt/{id}
//
// 先 Get 区分 404 与状态冲突；真正的前置状态检查由存储层条件更新保证，
// 并发提交至多一个成功进入 pending_adoption。
func (h *Handler) Adopt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req AdoptionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "name, email and phone are required")
		return
	}

	reg, err := h.store.GetRegistration(r.Context(), id)
	if err != nil {
		logf("Adopt lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to submit adoption request")
		return
	}
	if reg == nil || !reg.IsActive {
		writeError(w, http.StatusNotFound, "pet not found")
		return
	}

	adoption := model.AdoptionRequest{
		ID:           model.NewID("adopt"),
		AdopterName:  req.Name,
		AdopterEmail: req.Email,
		AdopterPhone: req.Phone,
		Message:      req.Message,
		Status:       model.AdoptionPending,
		RequestedAt:  time.Now().UTC(),
	}
	if err := h.store.AppendAdoption(r.Context(), reg.ID, adoption); err != nil {
		writeStoreError(w, err, "pet is not available for adoption")
		return
	}
	h.invalidateListing(r.Context())

	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"data": adoption,
	})
}

// AdoptionRequestsByEmail 按申请人邮箱查询其全部申请（跨登记拍平，时间倒序）
// GET /api/v1/pets/user-adoption-requests?email=
func (h *Handler) AdoptionRequestsByEmail(w http.ResponseWriter, r *http.Request) {
	email := model.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	regs, err := h.store.ListRegistrationsByAdopterEmail(r.Context(), email)
	if err != nil {
		logf("AdoptionRequestsByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list adoption requests")
		return
	}

	entries := make([]adoptionEntry, 0)
	for _, reg := range regs {
		for _, adoption := range reg.Adoptions {
			if adoption.AdopterEmail != email {
				continue
			}
			entries = append(entries, adoptionEntry{
				RegistrationID: reg.ID,
				PetName:        reg.Pet.Name,
				PetBreed:       reg.Pet.Breed,
				AdoptionStatus: reg.Pet.AdoptionStatus,
				Request:        adoption,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Request.RequestedAt.After(entries[j].Request.RequestedAt)
	})

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(entries),
		"data":    entries,
	})
}

// MyAdoptionRequests 当前主人名下宠物收到的申请（时间倒序）
// GET /api/v1/pets/my-adoption-requests
func (h *Handler) MyAdoptionRequests(w http.ResponseWriter, r *http.Request) {
	_, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	adoptions := make([]model.AdoptionRequest, len(reg.Adoptions))
	copy(adoptions, reg.Adoptions)
	sort.Slice(adoptions, func(i, j int) bool {
		return adoptions[i].RequestedAt.After(adoptions[j].RequestedAt)
	})

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"results": len(adoptions),
		"data":    adoptions,
	})
}

// DecideAdoption 主人处理一条申请
// PATCH /api/v1/pets/adoption-request/{id}
//
// 批准会连带拒绝其余 pending 申请并把宠物置为 adopted；整个决定由
// 存储层原子生效，并发的两次决定至多一次成功。
func (h *Handler) DecideAdoption(w http.ResponseWriter, r *http.Request) {
	adoptionID := r.PathValue("id")

	_, reg, ok := h.currentRegistration(w, r)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action"` // "approve" | "reject"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		writeError(w, http.StatusBadRequest, `action must be "approve" or "reject"`)
		return
	}

	if reg.FindAdoption(adoptionID) == nil {
		writeError(w, http.StatusNotFound, "adoption request not found")
		return
	}

	now := time.Now().UTC()
	if err := h.store.DecideAdoption(r.Context(), reg.ID, adoptionID, req.Action == "approve", now); err != nil {
		writeStoreError(w, err, "adoption request was already decided")
		return
	}
	h.invalidateListing(r.Context())

	updated, err := h.store.GetRegistration(r.Context(), reg.ID)
	if err != nil || updated == nil {
		writeSuccess(w, http.StatusOK, map[string]interface{}{
			"message": "adoption request decided",
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"data": h.viewOf(r.Context(), updated),
	})
}
