// Package provider 包含 DNS 与托管平台适配器共用的 HTTP 客户端构造和错误映射。
package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxMessageLen  = 512
)

// NewRestClient 构造一个不重试的 resty 客户端，重试策略由调用方决定。
func NewRestClient(baseURL, token string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// CheckResponse 把 resty 的返回映射为 domain 错误分类，2xx 返回 nil。
func CheckResponse(name string, resp *resty.Response, err error) error {
	if err != nil {
		return &domain.ProviderError{Provider: name, Kind: domain.ErrTransport, Message: err.Error()}
	}
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return &domain.ProviderError{
		Provider:   name,
		StatusCode: code,
		Kind:       KindForStatus(code),
		Message:    extractMessage(resp.Body()),
	}
}

// DecodeJSON 解析 2xx 响应体，不依赖响应的 Content-Type。
// 解析失败属于传输层错误，不能被调用方当作空结果。
func DecodeJSON(name string, resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return &domain.ProviderError{
			Provider:   name,
			StatusCode: resp.StatusCode(),
			Kind:       domain.ErrTransport,
			Message:    "decode response: " + err.Error(),
		}
	}
	return nil
}

// KindForStatus 是两个 provider 共用的状态码映射。
func KindForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrProvider
	}
}

// extractMessage 优先取 JSON 中的 message / errors[].message，否则截断原始 body。
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return msg
}
