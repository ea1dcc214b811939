// Package record 集合的通用 REST 接口
package record

import (
	stderrors "errors"
	"strconv"

	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/response"
	"github.com/edumarket/pkg/router"
	"github.com/edumarket/services/api/internal/model"
	"github.com/edumarket/services/api/internal/pipeline"
	"github.com/gofiber/fiber/v2"
)

// hiddenFields 响应中不输出的字段
var hiddenFields = map[string][]string{
	model.CollectionUsers: {"password"},
}

// keptOnReplace PUT 未提供时沿用原值的字段
var keptOnReplace = map[string][]string{
	model.CollectionUsers: {"activo", "password"},
}

// Controller 集合 CRUD 控制器
type Controller struct {
	store    *dal.Store
	pipeline *pipeline.Pipeline
}

// NewController 创建集合控制器
func NewController(store *dal.Store, p *pipeline.Pipeline) *Controller {
	return &Controller{store: store, pipeline: p}
}

// Prefix 返回路由前缀
func (c *Controller) Prefix() string {
	return ""
}

// Routes 返回路由配置
func (c *Controller) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodGet, Path: "/:collection", Handler: c.pipeline.Handle(c.list)},
		{Method: fiber.MethodGet, Path: "/:collection/:id", Handler: c.pipeline.Handle(c.get)},
		{Method: fiber.MethodPost, Path: "/:collection", Handler: c.pipeline.Handle(c.create)},
		{Method: fiber.MethodPut, Path: "/:collection/:id", Handler: c.pipeline.Handle(c.replace)},
		{Method: fiber.MethodPatch, Path: "/:collection/:id", Handler: c.pipeline.Handle(c.merge)},
		{Method: fiber.MethodDelete, Path: "/:collection/:id", Handler: c.pipeline.Handle(c.remove)},
	}
}

// list 查询参数作为顶层字段等值过滤
func (c *Controller) list(ctx *fiber.Ctx, _ *pipeline.Request) (*response.Result, error) {
	collection := ctx.Params("collection")
	filter := dal.Filter(ctx.Queries())

	recs, err := c.store.Find(ctx.UserContext(), collection, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	out := make([]dal.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, present(collection, rec))
	}
	return response.OK(out), nil
}

func (c *Controller) get(ctx *fiber.Ctx, _ *pipeline.Request) (*response.Result, error) {
	collection, id, err := target(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.Get(ctx.UserContext(), collection, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if rec == nil {
		return nil, notFound(collection, id)
	}
	return response.OK(present(collection, rec)), nil
}

// create 新用户未指定 activo 时默认启用
func (c *Controller) create(ctx *fiber.Ctx, req *pipeline.Request) (*response.Result, error) {
	collection := ctx.Params("collection")
	rec := dal.Record(req.Body)
	if collection == model.CollectionUsers {
		if _, ok := rec["activo"]; !ok {
			rec["activo"] = true
		}
	}

	created, err := c.store.Create(ctx.UserContext(), collection, rec)
	if err != nil {
		if stderrors.Is(err, dal.ErrConflict) {
			return nil, errors.Conflict(err.Error())
		}
		return nil, errors.Internal(err)
	}
	return response.OK(present(collection, created)), nil
}

func (c *Controller) replace(ctx *fiber.Ctx, req *pipeline.Request) (*response.Result, error) {
	collection, id, err := target(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.Replace(ctx.UserContext(), collection, id, dal.Record(req.Body), keptOnReplace[collection]...)
	return c.updated(collection, id, rec, err)
}

func (c *Controller) merge(ctx *fiber.Ctx, req *pipeline.Request) (*response.Result, error) {
	collection, id, err := target(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.Merge(ctx.UserContext(), collection, id, dal.Record(req.Body))
	return c.updated(collection, id, rec, err)
}

func (c *Controller) updated(collection string, id int64, rec dal.Record, err error) (*response.Result, error) {
	if err != nil {
		return nil, errors.Internal(err)
	}
	if rec == nil {
		return nil, notFound(collection, id)
	}
	return response.OK(present(collection, rec)), nil
}

func (c *Controller) remove(ctx *fiber.Ctx, _ *pipeline.Request) (*response.Result, error) {
	collection, id, err := target(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := c.store.Delete(ctx.UserContext(), collection, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !ok {
		return nil, notFound(collection, id)
	}
	return response.OK(fiber.Map{}), nil
}

// target 非法ID按不存在处理
func target(ctx *fiber.Ctx) (string, int64, error) {
	collection := ctx.Params("collection")
	raw := ctx.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errors.NotFound(collection + "/" + raw)
	}
	return collection, id, nil
}

func notFound(collection string, id int64) error {
	return errors.NotFound(collection + "/" + strconv.FormatInt(id, 10))
}

func present(collection string, rec dal.Record) dal.Record {
	if hidden := hiddenFields[collection]; len(hidden) > 0 {
		return rec.Without(hidden...)
	}
	return rec
}
