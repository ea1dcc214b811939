package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类
type Kind string

// 错误分类常量
const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindRoleNotFound     Kind = "role_not_found"
	KindInvalidUser      Kind = "invalid_user"
	KindUserInactive     Kind = "user_inactive"
	KindPermissionDenied Kind = "permission_denied"
	KindValidationFailed Kind = "validation_failed"
	KindBadRequest       Kind = "bad_request"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindTooManyRequests  Kind = "too_many_requests"
	KindInternal         Kind = "internal"
)

// AppError 应用错误
//
// Title 对应响应体的 error 字段，Message 对应 message 字段，
// Fields 中的键值会平铺到响应体中。
type AppError struct {
	Code    int            `json:"-"`
	Kind    Kind           `json:"-"`
	Title   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"-"`
	Err     error          `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	msg := e.Title
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Title, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, msg)
}

// Unwrap 解包错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同一分类视为相同错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind != "" && t.Kind == e.Kind
}

// Body 响应体
func (e *AppError) Body() map[string]any {
	body := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		body[k] = v
	}
	body["error"] = e.Title
	if e.Message != "" {
		body["message"] = e.Message
	}
	return body
}

// With 附加响应字段
func (e *AppError) With(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// 哨兵错误，用于 errors.Is 比较分类
var (
	ErrUnauthenticated  = &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthenticated}
	ErrRoleNotFound     = &AppError{Code: http.StatusForbidden, Kind: KindRoleNotFound}
	ErrInvalidUser      = &AppError{Code: http.StatusForbidden, Kind: KindInvalidUser}
	ErrUserInactive     = &AppError{Code: http.StatusForbidden, Kind: KindUserInactive}
	ErrPermissionDenied = &AppError{Code: http.StatusForbidden, Kind: KindPermissionDenied}
	ErrValidation       = &AppError{Code: http.StatusBadRequest, Kind: KindValidationFailed}
	ErrBadRequest       = &AppError{Code: http.StatusBadRequest, Kind: KindBadRequest}
	ErrNotFound         = &AppError{Code: http.StatusNotFound, Kind: KindNotFound}
	ErrConflict         = &AppError{Code: http.StatusConflict, Kind: KindConflict}
	ErrTooManyRequests  = &AppError{Code: http.StatusTooManyRequests, Kind: KindTooManyRequests}
	ErrInternal         = &AppError{Code: http.StatusInternalServerError, Kind: KindInternal}
)

// New 创建新错误
func New(code int, kind Kind, title, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Title:   title,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code int, kind Kind, title string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Title:   title,
		Message: err.Error(),
		Err:     err,
	}
}

// As 类型转换错误
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 检查是否为指定错误
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// GetCode 获取HTTP状态码
func GetCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Unauthenticated 缺少或无法解析身份信息
func Unauthenticated(message string) *AppError {
	if message == "" {
		message = "Missing or malformed identity headers"
	}
	return New(http.StatusUnauthorized, KindUnauthenticated, "Unauthenticated", message)
}

// RoleNotFound 角色不存在
func RoleNotFound(roleID int64) *AppError {
	return New(http.StatusForbidden, KindRoleNotFound, "Invalid role",
		fmt.Sprintf("Role %d does not exist", roleID))
}

// InvalidUser 用户不存在或与角色不匹配
func InvalidUser(userID, roleID int64) *AppError {
	return New(http.StatusForbidden, KindInvalidUser, "Invalid user",
		fmt.Sprintf("User %d does not exist for role %d", userID, roleID))
}

// UserInactive 用户已被停用
func UserInactive(userID int64) *AppError {
	return New(http.StatusForbidden, KindUserInactive, "Inactive user",
		fmt.Sprintf("User %d is inactive", userID))
}

// PermissionDenied 缺少所需权限
func PermissionDenied(required, role string, current []string) *AppError {
	if current == nil {
		current = []string{}
	}
	return New(http.StatusForbidden, KindPermissionDenied, "Permission denied",
		fmt.Sprintf("Missing required permission: %s", required)).
		With("role", role).
		With("currentPermissions", current)
}

// ValidationFailed 实体校验失败，details 为全部违规项
func ValidationFailed(details any) *AppError {
	return New(http.StatusBadRequest, KindValidationFailed, "Invalid data", "").
		With("details", details)
}

// BadRequest 请求错误
func BadRequest(title, message string) *AppError {
	return New(http.StatusBadRequest, KindBadRequest, title, message)
}

// NotFound 创建未找到错误
func NotFound(resource string) *AppError {
	return New(http.StatusNotFound, KindNotFound, "Not found", fmt.Sprintf("%s not found", resource))
}

// Conflict 资源冲突
func Conflict(message string) *AppError {
	return New(http.StatusConflict, KindConflict, "Conflict", message)
}

// TooManyRequests 请求过于频繁
func TooManyRequests(message string) *AppError {
	return New(http.StatusTooManyRequests, KindTooManyRequests, "Too many requests", message)
}

// Internal 创建内部错误，message 为原始错误信息
func Internal(err error) *AppError {
	return Wrap(err, http.StatusInternalServerError, KindInternal, "Internal error")
}
