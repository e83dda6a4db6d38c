package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

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
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "a product with this name already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ============================================================================
// 数值宽容解析
// ============================================================================

// flexFloat 接受 JSON 数值或数字字符串（"19.9"），与原接口的宽容解析兼容
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt 接受 JSON 整数或数字字符串（"12"）
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// "12.0" 这类输入按浮点截断
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		v = int(fv)
	}
	*f = flexInt(v)
	return nil
}
