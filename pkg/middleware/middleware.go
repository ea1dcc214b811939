package middleware

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/logger"
	"github.com/edumarket/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// Recovery 恢复中间件，panic 按内部错误输出
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("error", r),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
					zap.String("requestId", GetRequestID(c)),
				)
				err = response.Fail(c, fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}

// Cors 跨域中间件，OPTIONS 预检直接返回 204
//
// origins 为空时回显请求的 Origin。
func Cors(origins []string, headers ...string) fiber.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	allowHeaders := strings.Join(append([]string{
		"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization", RequestIDHeader,
	}, headers...), ", ")

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)

		if origin != "" && (len(allowed) == 0 || allowed[origin] || allowed["*"]) {
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Set(fiber.HeaderAccessControlAllowMethods, "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
			c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Type, "+RequestIDHeader)
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
			c.Vary(fiber.HeaderOrigin)
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("requestId", requestID)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), requestID))
		c.Set(RequestIDHeader, requestID)
		return c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestId").(string)
	return id
}

// RequestLog 请求日志，只记录不改变响应
func RequestLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errors.GetCode(err)
			var fe *fiber.Error
			if stderrors.As(err, &fe) {
				status = fe.Code
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("requestId", GetRequestID(c)),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
		return err
	}
}

// ErrorHandler fiber 全局错误处理，作为最外层兜底
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return response.Error(c, fe.Code, fe.Message)
		}
		if _, ok := errors.As(err); !ok {
			logger.Error("unhandled error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.String("requestId", GetRequestID(c)),
			)
		}
		return response.Fail(c, err)
	}
}
