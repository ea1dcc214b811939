package dal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection 集合查询器，把文档解码为强类型实体
type Collection[T any] struct {
	store *Store
	name  string
}

// NewCollection 创建集合查询器
func NewCollection[T any](store *Store, name string) *Collection[T] {
	return &Collection[T]{
		store: store,
		name:  name,
	}
}

// GetOne 根据ID获取单条记录，不存在时返回 nil, nil
func (c *Collection[T]) GetOne(ctx context.Context, id int64) (*T, error) {
	rec, err := c.store.Get(ctx, c.name, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return c.decode(rec)
}

// GetFirstListItem 获取第一条匹配记录，不存在时返回 nil, nil
func (c *Collection[T]) GetFirstListItem(ctx context.Context, filter Filter) (*T, error) {
	rec, err := c.store.First(ctx, c.name, filter)
	if err != nil || rec == nil {
		return nil, err
	}
	return c.decode(rec)
}

// FirstMatch 获取第一条 match 为真的记录，只解码命中的记录
func (c *Collection[T]) FirstMatch(ctx context.Context, match func(Record) bool) (*T, error) {
	recs, err := c.store.FindFunc(ctx, c.name, match)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return c.decode(recs[0])
}

// decode 记录字段类型与实体不符时返回错误
func (c *Collection[T]) decode(rec Record) (*T, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("malformed %s record %d: %w", c.name, rec.ID(), err)
	}
	return &entity, nil
}
