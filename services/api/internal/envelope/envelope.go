// Package envelope 写操作成功响应的审计信封
package envelope

import (
	"net/http"
	"time"

	"github.com/edumarket/pkg/response"
	"github.com/edumarket/services/api/internal/identity"
)

// Envelope 写操作成功响应
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Actor     string `json:"actor"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
}

// Wrap 处理器返回后改写结果，按顺序：
//  1. 状态码 >= 400 原样返回
//  2. 写方法且带授权上下文时包装为 Envelope
//  3. 其余原样返回
func Wrap(res *response.Result, method string, ac *identity.AuthContext, now time.Time) *response.Result {
	if res == nil || res.Status >= http.StatusBadRequest {
		return res
	}
	if !IsMutating(method) || ac == nil {
		return res
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &response.Result{
		Status: status,
		Body: Envelope{
			Success:   true,
			Data:      res.Body,
			Actor:     ac.Actor(),
			Role:      ac.RoleName,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// IsMutating 是否为写方法
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
