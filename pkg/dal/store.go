package dal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// ErrConflict 文档ID已存在
var ErrConflict = errors.New("dal: document already exists")

// Store 基于 gorm 的文档存储，按集合名组织记录
//
// 每次调用都读取当前数据，不做跨请求缓存。
type Store struct {
	db *gorm.DB
}

// NewStore 创建文档存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate 自动迁移
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Document{})
}

// Get 根据ID获取文档，不存在时返回 nil, nil
func (s *Store) Get(ctx context.Context, collection string, id int64) (Record, error) {
	doc, err := s.document(ctx, s.db, collection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return decode(doc)
}

// Find 返回满足过滤条件的全部文档，按ID升序
func (s *Store) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	return s.FindFunc(ctx, collection, filter.Match)
}

// FindFunc 返回 match 为真的全部文档，按ID升序
func (s *Store) FindFunc(ctx context.Context, collection string, match func(Record) bool) ([]Record, error) {
	docs, err := s.documents(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(docs))
	for i := range docs {
		rec, err := decode(&docs[i])
		if err != nil {
			return nil, err
		}
		if match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// First 返回第一条满足过滤条件的文档，不存在时返回 nil, nil
func (s *Store) First(ctx context.Context, collection string, filter Filter) (Record, error) {
	recs, err := s.Find(ctx, collection, filter)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// Count 统计集合中的文档数
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Document{}).Where("collection = ?", collection).Count(&n).Error
	return n, err
}

// Create 创建文档，未指定ID时分配集合内的下一个ID
func (s *Store) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	var out Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.insert(ctx, tx, collection, rec)
		out = created
		return err
	})
	return out, err
}

// Replace 整体替换文档（PUT），keep 中的字段在 rec 未提供时沿用原值，不存在时返回 nil, nil
func (s *Store) Replace(ctx context.Context, collection string, id int64, rec Record, keep ...string) (Record, error) {
	return s.update(ctx, collection, id, func(current Record) Record {
		next := rec.Without("id")
		for _, field := range keep {
			if _, ok := next[field]; ok {
				continue
			}
			if v, ok := current[field]; ok {
				next[field] = v
			}
		}
		return next
	})
}

// Merge 浅合并文档（PATCH），不存在时返回 nil, nil
func (s *Store) Merge(ctx context.Context, collection string, id int64, patch Record) (Record, error) {
	return s.update(ctx, collection, id, func(current Record) Record {
		for k, v := range patch {
			current[k] = v
		}
		return current
	})
}

// Delete 删除文档，返回是否存在
func (s *Store) Delete(ctx context.Context, collection string, id int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&Document{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Import 批量导入 {"集合": [文档...]}，集合按名称排序写入
func (s *Store) Import(ctx context.Context, data map[string][]Record) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			for _, rec := range data[name] {
				if _, err := s.insert(ctx, tx, name, rec); err != nil {
					return fmt.Errorf("import %s: %w", name, err)
				}
			}
		}
		return nil
	})
}

func (s *Store) insert(ctx context.Context, tx *gorm.DB, collection string, rec Record) (Record, error) {
	id := rec.ID()
	if id <= 0 {
		var maxID int64
		row := tx.WithContext(ctx).Model(&Document{}).
			Where("collection = ?", collection).
			Select("COALESCE(MAX(id), 0)").Row()
		if err := row.Scan(&maxID); err != nil {
			return nil, err
		}
		id = maxID + 1
	} else {
		existing, err := s.document(ctx, tx, collection, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s/%d", ErrConflict, collection, id)
		}
	}

	out := rec.Without()
	out["id"] = id
	body, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	doc := &Document{Collection: collection, ID: id, Body: string(body)}
	if err := tx.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return decode(doc)
}

func (s *Store) update(ctx context.Context, collection string, id int64, apply func(Record) Record) (Record, error) {
	var out Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.document(ctx, tx, collection, id)
		if err != nil || doc == nil {
			return err
		}
		current, err := decode(doc)
		if err != nil {
			return err
		}

		next := apply(current)
		next["id"] = id
		body, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if err := tx.Model(doc).Update("body", string(body)).Error; err != nil {
			return err
		}
		doc.Body = string(body)
		out, err = decode(doc)
		return err
	})
	return out, err
}

func (s *Store) document(ctx context.Context, db *gorm.DB, collection string, id int64) (*Document, error) {
	var doc Document
	err := db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) documents(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

func decode(doc *Document) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(doc.Body), &rec); err != nil {
		return nil, fmt.Errorf("decode %s/%d: %w", doc.Collection, doc.ID, err)
	}
	return rec, nil
}
