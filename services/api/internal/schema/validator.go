package schema

// Violation 单条违规
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result 校验结果
type Result struct {
	Valid  bool        `json:"valid"`
	Errors []Violation `json:"errors"`
}

// ValidateField 按规则校验单个字段，通过时返回 nil
//
// 每次调用最多返回一条违规，类型不符时不再检查其他约束。
func ValidateField(value any, rule Rule, field string) *Violation {
	msg, ok := rule.check(field, value)
	if ok {
		return nil
	}
	return &Violation{Field: field, Message: msg}
}

// Validator 实体校验器
type Validator struct {
	registry *Registry
}

// NewValidator 创建实体校验器
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate 完整校验，汇总全部违规而不是遇错即停
//
// 未注册的实体直接视为合法。
func (v *Validator) Validate(payload map[string]any, entity string) Result {
	s, ok := v.registry.Lookup(entity)
	if !ok {
		return Result{Valid: true, Errors: []Violation{}}
	}
	return s.validate(payload, false)
}

// ValidatePartial 局部校验（PATCH），只检查请求中出现的字段
func (v *Validator) ValidatePartial(payload map[string]any, entity string) Result {
	s, ok := v.registry.Lookup(entity)
	if !ok {
		return Result{Valid: true, Errors: []Violation{}}
	}
	return s.validate(payload, true)
}

func (s *Schema) validate(payload map[string]any, partial bool) Result {
	errs := []Violation{}
	missing := make(map[string]bool)

	for _, name := range s.required {
		value, present := payload[name]
		if partial && !present {
			continue
		}
		if isMissing(value) {
			missing[name] = true
			errs = append(errs, Violation{Field: name, Message: name + " is required"})
		}
	}

	for _, f := range s.fields {
		value, present := payload[f.Name]
		if !present || value == nil || missing[f.Name] {
			continue
		}
		if viol := ValidateField(value, f.Rule, f.Name); viol != nil {
			errs = append(errs, *viol)
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// isMissing 缺失、null 与空字符串同等视为缺失
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
