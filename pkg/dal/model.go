package dal

import (
	"encoding/json"
	"strconv"
	"time"
)

// Document 集合中的一条 JSON 文档
type Document struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Body       string    `gorm:"type:text;not null" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 表名
func (Document) TableName() string {
	return "sys_document"
}

// Record 解码后的文档
type Record map[string]any

// ID 文档ID，缺失或非法时返回0
func (r Record) ID() int64 {
	id, _ := toInt64(r["id"])
	return id
}

// Without 返回去掉指定字段的副本
func (r Record) Without(fields ...string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Filter 顶层字段等值过滤，值按字符串形式比较
type Filter map[string]string

// Match 判断文档是否满足过滤条件
func (f Filter) Match(r Record) bool {
	for field, want := range f {
		v, ok := r[field]
		if !ok || valueString(v) != want {
			return false
		}
	}
	return true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
