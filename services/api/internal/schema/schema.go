package schema

import "sort"

// Field 字段描述
type Field struct {
	Name     string
	Rule     Rule
	Optional bool
}

// Required 必填字段
func Required(name string, rule Rule) Field {
	return Field{Name: name, Rule: rule}
}

// Optional 可选字段
func Optional(name string, rule Rule) Field {
	return Field{Name: name, Rule: rule, Optional: true}
}

// Schema 单个实体的声明式校验规则
type Schema struct {
	entity   string
	required []string
	fields   []Field
}

// New 创建实体规则
//
// 非可选字段自动加入必填集合，required 中额外列出的字段按原顺序排在前面。
func New(entity string, required []string, fields ...Field) *Schema {
	s := &Schema{
		entity: entity,
		fields: append([]Field(nil), fields...),
	}
	seen := make(map[string]bool, len(required)+len(fields))
	for _, name := range required {
		if !seen[name] {
			seen[name] = true
			s.required = append(s.required, name)
		}
	}
	for _, f := range fields {
		if !f.Optional && !seen[f.Name] {
			seen[f.Name] = true
			s.required = append(s.required, f.Name)
		}
	}
	return s
}

// Entity 实体名
func (s *Schema) Entity() string { return s.entity }

// RequiredFields 必填字段（有序）
func (s *Schema) RequiredFields() []string {
	return append([]string(nil), s.required...)
}

// Fields 字段规则（有序）
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Registry 实体规则注册表，进程启动时构建，之后只读
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry 创建注册表
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.entity] = s
	}
	return r
}

// Lookup 查找实体规则
func (r *Registry) Lookup(entity string) (*Schema, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.schemas[entity]
	return s, ok
}

// Entities 已注册实体名（排序）
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
