package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"petmarket/internal/shared/model"
	"petmarket/internal/shared/storage"
)

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess 写入成功信封：{"success":true, ...extra}
func writeSuccess(w http.ResponseWriter, status int, extra map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError 写入错误信封：{"success":false,"message":...}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// writeStoreError 将存储层错误映射为 HTTP 状态码
func writeStoreError(w http.ResponseWriter, err error, conflictMsg string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "registration not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, conflictMsg)
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate record")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// invalidateListing 登记维度的写操作后清掉公开列表与统计缓存
func (h *Handler) invalidateListing(ctx context.Context) {
	if err := h.cache.InvalidateAdoptableListing(ctx); err != nil {
		logf("listing cache invalidate error: %v", err)
	}
	if err := h.cache.InvalidateRegistrationStats(ctx); err != nil {
		logf("stats cache invalidate error: %v", err)
	}
}

// sanitizeRegistration 输出视图：登记 + 关联账号的联系方式
//
// 原样返回 model.Registration 会缺少 owner 联系字段（凭据在 Account 上），
// 公开列表和我的资料都需要这层拼接。
type registrationView struct {
	*model.Registration
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
	OwnerPhone string `json:"owner_phone,omitempty"`
}

func (h *Handler) viewOf(ctx context.Context, reg *model.Registration) registrationView {
	view := registrationView{Registration: reg}
	acct, err := h.store.GetAccountByID(ctx, reg.AccountID)
	if err != nil || acct == nil {
		return view
	}
	view.OwnerName = acct.Username
	view.OwnerEmail = acct.Email
	view.OwnerPhone = acct.Phone
	return view
}

func (h *Handler) viewsOf(ctx context.Context, regs []*model.Registration) []registrationView {
	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, h.viewOf(ctx, reg))
	}
	return views
}
