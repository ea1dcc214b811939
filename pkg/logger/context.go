package logger

import "context"

type requestIDKey struct{}

// WithRequestID 把请求ID放入上下文
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 上下文中的请求ID，没有时返回空串
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
