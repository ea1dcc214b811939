package response

import (
	"net/http"

	"github.com/edumarket/pkg/errors"
	"github.com/gofiber/fiber/v2"
)

// Result 处理器返回的结构化结果，由管道负责写出
type Result struct {
	Status int
	Body   any
}

// OK 200 结果
func OK(body any) *Result {
	return &Result{Status: http.StatusOK, Body: body}
}

// Write 写出结构化结果
func Write(c *fiber.Ctx, r *Result) error {
	if r == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	if r.Body == nil {
		return c.Status(status).JSON(fiber.Map{})
	}
	return c.Status(status).JSON(r.Body)
}

// FromError 错误转为结构化结果，非 AppError 统一按内部错误输出原始信息
func FromError(err error) *Result {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	return &Result{Status: appErr.Code, Body: appErr.Body()}
}

// Fail 错误响应
func Fail(c *fiber.Ctx, err error) error {
	return Write(c, FromError(err))
}

// Error 按状态码输出简单错误
func Error(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error":   http.StatusText(code),
		"message": message,
	})
}
