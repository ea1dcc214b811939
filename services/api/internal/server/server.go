// Package server 组装 API 服务
package server

import (
	"time"

	"github.com/edumarket/pkg/auth"
	"github.com/edumarket/pkg/config"
	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/database"
	"github.com/edumarket/pkg/middleware"
	"github.com/edumarket/pkg/router"
	authctl "github.com/edumarket/services/api/internal/auth"
	"github.com/edumarket/services/api/internal/identity"
	"github.com/edumarket/services/api/internal/permission"
	"github.com/edumarket/services/api/internal/pipeline"
	"github.com/edumarket/services/api/internal/record"
	"github.com/edumarket/services/api/internal/schema"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps 服务依赖
type Deps struct {
	Config *config.Config
	Store  *dal.Store
	Cache  *database.Cache
	Logger *zap.Logger
	Now    func() time.Time
}

// New 创建 fiber 应用并注册全部路由
func New(d Deps) *fiber.App {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           time.Duration(cfg.Server.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.HTTP.WriteTimeout) * time.Second,
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: true,
	})

	schemas := schema.Default()
	p := pipeline.New(
		identity.NewResolver(identity.NewStoreDirectory(d.Store), cfg.Pipeline.RoleHeader, cfg.Pipeline.UserHeader),
		permission.NewAuthorizer(permission.DefaultTable().Merge(cfg.Pipeline.Permissions)),
		schema.NewValidator(schemas),
		schema.DefaultBindings(),
		pipeline.Options{
			BasePath:     cfg.Server.HTTP.BasePath,
			AuthPrefix:   cfg.Pipeline.AuthPrefix,
			Validation:   cfg.Pipeline.Validation,
			AllowOrigins: cfg.Pipeline.AllowOrigins,
			RoleHeader:   cfg.Pipeline.RoleHeader,
			UserHeader:   cfg.Pipeline.UserHeader,
			Logger:       log,
			Now:          d.Now,
		},
	)
	api := p.Mount(app)

	// 认证接口需先于通用集合路由注册
	router.Register(api,
		authctl.NewController(cfg.Pipeline.AuthPrefix, d.Store, auth.NewJWTManager(&cfg.JWT), authctl.Throttle{
			Cache:       d.Cache,
			MaxAttempts: cfg.Pipeline.LoginMaxAttempts,
			Window:      time.Duration(cfg.Pipeline.LoginWindow) * time.Second,
		}, p, log),
		record.NewController(d.Store, p),
	)
	log.Info("pipeline ready",
		zap.Bool("validation", cfg.Pipeline.Validation),
		zap.Strings("schemas", schemas.Entities()),
	)
	return app
}
