// Package auth 登录与会话接口，由接口自身完成凭证校验
package auth

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/edumarket/pkg/auth"
	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/database"
	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/response"
	"github.com/edumarket/pkg/router"
	"github.com/edumarket/services/api/internal/model"
	"github.com/edumarket/services/api/internal/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token *auth.TokenInfo `json:"token"`
	User  *model.User     `json:"user"`
	Role  *model.Role     `json:"role"`
}

// Throttle 登录失败限流
type Throttle struct {
	Cache       *database.Cache
	MaxAttempts int
	Window      time.Duration
}

// Controller 认证控制器
type Controller struct {
	prefix   string
	users    *dal.Collection[model.User]
	roles    *dal.Collection[model.Role]
	jwt      *auth.JWTManager
	throttle Throttle
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

// NewController 创建认证控制器
func NewController(prefix string, store *dal.Store, jwt *auth.JWTManager, throttle Throttle, p *pipeline.Pipeline, log *zap.Logger) *Controller {
	return &Controller{
		prefix:   prefix,
		users:    dal.NewCollection[model.User](store, model.CollectionUsers),
		roles:    dal.NewCollection[model.Role](store, model.CollectionRoles),
		jwt:      jwt,
		throttle: throttle,
		pipeline: p,
		log:      log.Named("auth"),
	}
}

// Prefix 返回路由前缀
func (c *Controller) Prefix() string {
	return c.prefix
}

// Routes 返回路由配置
func (c *Controller) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodPost, Path: "login", Handler: c.pipeline.Handle(c.login)},
		{Method: fiber.MethodGet, Path: "session", Handler: c.pipeline.Handle(c.session)},
	}
}

// login 邮箱密码登录，邮箱不区分大小写；连续失败达到上限后在窗口内拒绝
func (c *Controller) login(ctx *fiber.Ctx, req *pipeline.Request) (*response.Result, error) {
	var in LoginRequest
	in.Email, _ = req.Body["email"].(string)
	in.Password, _ = req.Body["password"].(string)
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, errors.BadRequest("Invalid data", "email and password are required")
	}

	key := "login:" + strings.ToLower(in.Email)
	if retry, blocked := c.blocked(ctx.UserContext(), key); blocked {
		if retry > 0 {
			ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Seconds())))
		}
		return nil, errors.TooManyRequests("Too many login attempts, try again later")
	}

	user, err := c.users.FirstMatch(ctx.UserContext(), func(rec dal.Record) bool {
		email, _ := rec["email"].(string)
		return strings.EqualFold(strings.TrimSpace(email), in.Email)
	})
	if err != nil {
		return nil, errors.Internal(err)
	}
	if user == nil || !auth.CheckPassword(in.Password, user.Password) {
		c.recordFailure(ctx.UserContext(), key)
		return nil, errors.Unauthenticated("Invalid email or password")
	}
	if !user.Active {
		return nil, errors.UserInactive(user.ID)
	}

	role, err := c.roles.GetOne(ctx.UserContext(), user.RoleID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if role == nil {
		return nil, errors.RoleNotFound(user.RoleID)
	}

	token, err := c.jwt.Issue(user.ID, user.Name, role.ID, role.Code)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if c.throttled() {
		_ = c.throttle.Cache.Del(ctx.UserContext(), key)
	}

	user.Password = ""
	c.log.Info("login succeeded", zap.Int64("userId", user.ID), zap.String("role", role.Code))
	return response.OK(LoginResponse{Token: token, User: user, Role: role}), nil
}

func (c *Controller) throttled() bool {
	return c.throttle.Cache != nil && c.throttle.MaxAttempts > 0
}

// blocked 返回是否已达失败上限及剩余等待时间，限流存储不可用时不阻断登录
func (c *Controller) blocked(ctx context.Context, key string) (time.Duration, bool) {
	if !c.throttled() {
		return 0, false
	}
	raw, err := c.throttle.Cache.Get(ctx, key)
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.log.Warn("login throttle unavailable", zap.Error(err))
		}
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < c.throttle.MaxAttempts {
		return 0, false
	}
	retry, err := c.throttle.Cache.TTL(ctx, key)
	if err != nil || retry < 0 {
		retry = 0
	}
	return retry, true
}

func (c *Controller) recordFailure(ctx context.Context, key string) {
	if !c.throttled() {
		return
	}
	if _, err := c.throttle.Cache.IncrWithin(ctx, key, c.throttle.Window); err != nil {
		c.log.Warn("login throttle unavailable", zap.Error(err))
	}
}

// session 解析 Bearer 令牌，返回令牌中的身份
func (c *Controller) session(ctx *fiber.Ctx, _ *pipeline.Request) (*response.Result, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(ctx.Get(fiber.HeaderAuthorization), "Bearer "))
	if raw == "" {
		return nil, errors.Unauthenticated("Missing bearer token")
	}
	claims, err := c.jwt.Parse(raw)
	if err != nil {
		return nil, errors.Unauthenticated(err.Error())
	}
	return response.OK(fiber.Map{
		"userId":    claims.UserID,
		"nombre":    claims.Name,
		"rolId":     claims.RoleID,
		"rolCodigo": claims.RoleCode,
		"expiresAt": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	}), nil
}
