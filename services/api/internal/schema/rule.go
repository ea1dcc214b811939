package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Type 字段类型
type Type string

// 字段类型常量
const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Rule 字段规则
//
// 变体集合是封闭的：只有本包内的类型能实现 check，新增类型必须在这里补齐校验逻辑。
type Rule interface {
	Type() Type
	check(field string, value any) (string, bool)
}

// StringRule 字符串规则，按 长度 -> 正则 -> 枚举 顺序返回第一条违规
type StringRule struct {
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Enum      []string
}

// String 字符串规则
func String() StringRule { return StringRule{} }

// Length 长度范围，0 表示不限制
func (r StringRule) Length(min, max int) StringRule {
	r.MinLength, r.MaxLength = min, max
	return r
}

// Match 正则约束
func (r StringRule) Match(pattern string) StringRule {
	r.Pattern = regexp.MustCompile(pattern)
	return r
}

// OneOf 枚举约束
func (r StringRule) OneOf(values ...string) StringRule {
	r.Enum = values
	return r
}

func (StringRule) Type() Type { return TypeString }

func (r StringRule) check(field string, value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return fmt.Sprintf("%s must be a string", field), false
	}
	n := utf8.RuneCountInString(s)
	if r.MinLength > 0 && n < r.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", field, r.MinLength), false
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters", field, r.MaxLength), false
	}
	if r.Pattern != nil && !r.Pattern.MatchString(s) {
		return fmt.Sprintf("%s has invalid format", field), false
	}
	if len(r.Enum) > 0 && !contains(r.Enum, s) {
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(r.Enum, ", ")), false
	}
	return "", true
}

// NumberRule 数值规则
type NumberRule struct {
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// Number 数值规则
func Number() NumberRule { return NumberRule{} }

// AtLeast 下限
func (r NumberRule) AtLeast(min float64) NumberRule {
	r.Min, r.HasMin = min, true
	return r
}

// AtMost 上限
func (r NumberRule) AtMost(max float64) NumberRule {
	r.Max, r.HasMax = max, true
	return r
}

// Range 上下限
func (r NumberRule) Range(min, max float64) NumberRule {
	return r.AtLeast(min).AtMost(max)
}

func (NumberRule) Type() Type { return TypeNumber }

func (r NumberRule) check(field string, value any) (string, bool) {
	n, ok := toNumber(value)
	if !ok {
		return fmt.Sprintf("%s must be a number", field), false
	}
	if r.HasMin && n < r.Min {
		return fmt.Sprintf("%s must be at least %s", field, formatNumber(r.Min)), false
	}
	if r.HasMax && n > r.Max {
		return fmt.Sprintf("%s must be at most %s", field, formatNumber(r.Max)), false
	}
	return "", true
}

// BooleanRule 布尔规则
type BooleanRule struct{}

// Boolean 布尔规则
func Boolean() BooleanRule { return BooleanRule{} }

func (BooleanRule) Type() Type { return TypeBoolean }

func (BooleanRule) check(field string, value any) (string, bool) {
	if _, ok := value.(bool); !ok {
		return fmt.Sprintf("%s must be a boolean", field), false
	}
	return "", true
}

// DateRule 日期规则
type DateRule struct{}

// Date 日期规则
func Date() DateRule { return DateRule{} }

func (DateRule) Type() Type { return TypeDate }

func (DateRule) check(field string, value any) (string, bool) {
	if !isDate(value) {
		return fmt.Sprintf("%s must be a valid date", field), false
	}
	return "", true
}

// ArrayRule 数组规则，不校验元素
type ArrayRule struct{}

// Array 数组规则
func Array() ArrayRule { return ArrayRule{} }

func (ArrayRule) Type() Type { return TypeArray }

func (ArrayRule) check(field string, value any) (string, bool) {
	if _, ok := value.([]any); !ok {
		return fmt.Sprintf("%s must be an array", field), false
	}
	return "", true
}

// ObjectRule 对象规则，不校验嵌套字段
type ObjectRule struct{}

// Object 对象规则
func Object() ObjectRule { return ObjectRule{} }

func (ObjectRule) Type() Type { return TypeObject }

func (ObjectRule) check(field string, value any) (string, bool) {
	if m, ok := value.(map[string]any); !ok || m == nil {
		return fmt.Sprintf("%s must be an object", field), false
	}
	return "", true
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, !math.IsNaN(f)
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// isDate 字符串按常见布局解析，数值按毫秒时间戳处理
func isDate(v any) bool {
	switch d := v.(type) {
	case time.Time:
		return !d.IsZero()
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	default:
		ms, ok := toNumber(v)
		return ok && !math.IsInf(ms, 0) && math.Abs(ms) <= 8.64e15
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
