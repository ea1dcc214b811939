package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Route 路由配置
type Route struct {
	Method      string          // HTTP方法
	Path        string          // 路径(相对路径或以/开头的绝对路径)
	Handler     fiber.Handler   // 处理函数
	Middlewares []fiber.Handler // 路由级中间件
}

// Registrar 路由注册器接口
type Registrar interface {
	// Prefix 返回路由前缀
	Prefix() string
	// Routes 返回路由配置列表
	Routes() []Route
}

// Register 注册路由，按注册器顺序，先注册的优先匹配
func Register(r fiber.Router, registrars ...Registrar) {
	for _, reg := range registrars {
		prefix := reg.Prefix()
		g := r.Group(prefix)

		for _, route := range reg.Routes() {
			handlers := buildHandlers(route)
			if strings.HasPrefix(route.Path, "/") && prefix != "" && !strings.HasPrefix(route.Path, prefix) {
				// 绝对路径，直接注册到上级路由
				r.Add(route.Method, route.Path, handlers...)
			} else {
				g.Add(route.Method, route.Path, handlers...)
			}
		}
	}
}

// buildHandlers 构建处理器链(中间件 + 处理函数)
func buildHandlers(route Route) []fiber.Handler {
	if len(route.Middlewares) == 0 {
		return []fiber.Handler{route.Handler}
	}
	handlers := make([]fiber.Handler, 0, len(route.Middlewares)+1)
	handlers = append(handlers, route.Middlewares...)
	handlers = append(handlers, route.Handler)
	return handlers
}
