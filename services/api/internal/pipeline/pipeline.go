// Package pipeline 请求管道：预检 -> 日志 -> 路由分类 -> 身份 -> 授权 -> 校验 -> 处理器 -> 信封
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/middleware"
	"github.com/edumarket/pkg/response"
	"github.com/edumarket/services/api/internal/envelope"
	"github.com/edumarket/services/api/internal/identity"
	"github.com/edumarket/services/api/internal/permission"
	"github.com/edumarket/services/api/internal/schema"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const authLocalsKey = "authContext"

// Resolver 身份解析
type Resolver interface {
	Resolve(ctx context.Context, h identity.Headers) (*identity.AuthContext, error)
}

// Authorizer 授权判断
type Authorizer interface {
	Authorize(ac *identity.AuthContext, path, method string) error
}

// Request 经过管道检查后交给处理器的请求
type Request struct {
	Path     string         // 去掉 basePath 的路径
	Resource string         // 路径首段
	Body     map[string]any // 写请求的 JSON 对象
	Auth     *identity.AuthContext
}

// Handler 处理器返回结构化结果，由管道完成信封包装与写出
type Handler func(c *fiber.Ctx, req *Request) (*response.Result, error)

// Options 管道配置
type Options struct {
	BasePath     string
	AuthPrefix   string
	Validation   bool
	AllowOrigins []string
	RoleHeader   string
	UserHeader   string
	Logger       *zap.Logger
	Now          func() time.Time
}

// Pipeline 请求管道
type Pipeline struct {
	resolver   Resolver
	authorizer Authorizer
	validator  *schema.Validator
	bindings   schema.Bindings
	opts       Options
	log        *zap.Logger
}

// New 创建请求管道
func New(resolver Resolver, authorizer Authorizer, validator *schema.Validator, bindings schema.Bindings, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.BasePath = strings.TrimRight(opts.BasePath, "/")
	opts.AuthPrefix = "/" + strings.Trim(opts.AuthPrefix, "/")

	return &Pipeline{
		resolver:   resolver,
		authorizer: authorizer,
		validator:  validator,
		bindings:   bindings,
		opts:       opts,
		log:        opts.Logger.Named("pipeline"),
	}
}

// Mount 注册全局中间件并返回 basePath 路由组
func (p *Pipeline) Mount(app *fiber.App) fiber.Router {
	app.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Cors(p.opts.AllowOrigins, p.opts.RoleHeader, p.opts.UserHeader),
		middleware.RequestLog(p.opts.Logger),
	)
	return app.Group(p.opts.BasePath)
}

// Handle 把处理器包装为完整的管道阶段
//
// 身份、授权、校验任一阶段失败都立即返回，处理器与信封不会执行。
func (p *Pipeline) Handle(h Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Method()
		path := p.relative(c.Path())
		req := &Request{Path: path, Resource: permission.Resource(path)}

		if p.requiresIdentity(method, path) {
			ac, err := p.resolver.Resolve(c.UserContext(), identity.HeaderFunc(func(key string) string {
				return c.Get(key)
			}))
			if err != nil {
				return p.reject(c, "identity", err)
			}
			if err := p.authorizer.Authorize(ac, path, method); err != nil {
				return p.reject(c, "authorization", err)
			}
			req.Auth = ac
			c.Locals(authLocalsKey, ac)
		}

		if hasBody(method) {
			body, err := decodeBody(c.Body())
			if err != nil {
				return p.reject(c, "decode", err)
			}
			req.Body = body
			if err := p.validate(req, method); err != nil {
				return p.reject(c, "validation", err)
			}
		}

		res, err := h(c, req)
		if err != nil {
			if appErr, ok := errors.As(err); !ok || appErr.Kind == errors.KindInternal {
				p.log.Error("handler failed",
					zap.Error(err),
					zap.String("method", method),
					zap.String("path", path),
					zap.String("requestId", middleware.GetRequestID(c)),
				)
			}
			res = response.FromError(err)
		}

		return response.Write(c, envelope.Wrap(res, method, req.Auth, p.opts.Now()))
	}
}

// Auth 获取请求的授权上下文，读请求与认证接口为 nil
func Auth(c *fiber.Ctx) *identity.AuthContext {
	ac, _ := c.Locals(authLocalsKey).(*identity.AuthContext)
	return ac
}

// requiresIdentity 读请求与认证接口跳过身份与授权
func (p *Pipeline) requiresIdentity(method, path string) bool {
	if method == http.MethodGet || method == http.MethodHead {
		return false
	}
	return path != p.opts.AuthPrefix && !strings.HasPrefix(path, p.opts.AuthPrefix+"/")
}

// validate PATCH 只校验出现的字段
func (p *Pipeline) validate(req *Request, method string) error {
	if !p.opts.Validation || p.validator == nil {
		return nil
	}
	entity := p.bindings.EntityFor(req.Resource)
	if entity == "" {
		return nil
	}

	var res schema.Result
	if method == http.MethodPatch {
		res = p.validator.ValidatePartial(req.Body, entity)
	} else {
		res = p.validator.Validate(req.Body, entity)
	}
	if !res.Valid {
		return errors.ValidationFailed(res.Errors)
	}
	return nil
}

func (p *Pipeline) reject(c *fiber.Ctx, stage string, err error) error {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("requestId", middleware.GetRequestID(c)),
		zap.Error(err),
	}
	if appErr, ok := errors.As(err); ok && appErr.Kind != errors.KindInternal {
		p.log.Warn("request rejected", fields...)
	} else {
		p.log.Error("request rejected", fields...)
	}
	return response.Fail(c, err)
}

func (p *Pipeline) relative(path string) string {
	rel := strings.TrimPrefix(path, p.opts.BasePath)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// hasBody 带 JSON 请求体的写方法
func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// decodeBody 空请求体视为空对象，非对象 JSON 视为错误请求
func decodeBody(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, errors.BadRequest("Invalid JSON", "Request body must be a JSON object")
	}
	return body, nil
}
