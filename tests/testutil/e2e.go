// E2EClient 封装了 HTTPS + Cookie 会话的 HTTP 客户端，
// 供 tests/e2e/ 下的验收测试复用。
package testutil

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"
)

// E2EClient 端到端测试共享客户端
//
// 会话 Cookie 由 cookiejar 自动携带，自签名证书环境跳过校验。
type E2EClient struct {
	BaseURL string
	Client  *http.Client
}

// SetupE2EClient 初始化 E2E 客户端
// 读取 API_BASE_URL、创建带 Cookie jar 的客户端、等待服务就绪。
// 返回 error 时调用者应 os.Exit(0) 跳过测试。
func SetupE2EClient() (*E2EClient, error) {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	c := &E2EClient{BaseURL: baseURL, Client: httpClient}
	if !c.waitForAPI(15 * time.Second) {
		return nil, fmt.Errorf("API server not ready at %s", baseURL)
	}
	return c, nil
}

func (c *E2EClient) waitForAPI(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.Client.Get(c.BaseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

// DoJSON 发送 JSON 请求，返回状态码和解析后的响应体
func (c *E2EClient) DoJSON(method, path string, body interface{}) (int, map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	parsed := map[string]interface{}{}
	if len(data) > 0 {
		json.Unmarshal(data, &parsed)
	}
	return resp.StatusCode, parsed, nil
}

// LoginOwner 主人登录；会话 Cookie 由 jar 保存
func (c *E2EClient) LoginOwner(email, password string) error {
	status, resp, err := c.DoJSON("POST", "/api/v1/pets/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("owner login returned %d: %v", status, resp["message"])
	}
	return nil
}

// LoginAdmin 管理员登录；会话 Cookie 由 jar 保存
func (c *E2EClient) LoginAdmin(email, password string) error {
	status, resp, err := c.DoJSON("POST", "/api/v1/users/admin/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("admin login returned %d: %v", status, resp["message"])
	}
	return nil
}

// Logout 注销当前会话
func (c *E2EClient) Logout() error {
	status, _, err := c.DoJSON("GET", "/api/v1/pets/logout", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("logout returned %d", status)
	}
	return nil
}
