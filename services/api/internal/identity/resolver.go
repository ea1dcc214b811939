// Package identity 解析请求身份，加载角色与用户
package identity

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/services/api/internal/model"
)

// Headers 请求头读取
type Headers interface {
	Get(key string) string
}

// HeaderFunc 函数适配为 Headers
type HeaderFunc func(key string) string

// Get 实现 Headers
func (f HeaderFunc) Get(key string) string { return f(key) }

// AuthContext 授权上下文，在请求剩余生命周期内只读
type AuthContext struct {
	UserID      int64
	RoleID      int64
	RoleName    string
	Permissions map[string]struct{}
	User        *model.User
}

// Has 是否拥有指定权限
func (a *AuthContext) Has(code string) bool {
	_, ok := a.Permissions[code]
	return ok
}

// PermissionList 权限列表，按字典序
func (a *AuthContext) PermissionList() []string {
	out := make([]string, 0, len(a.Permissions))
	for p := range a.Permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Actor 操作人显示名
func (a *AuthContext) Actor() string {
	if a.User != nil && a.User.Name != "" {
		return a.User.Name
	}
	return strconv.FormatInt(a.UserID, 10)
}

// Resolver 身份解析器
type Resolver struct {
	directory  Directory
	roleHeader string
	userHeader string
}

// NewResolver 创建身份解析器
func NewResolver(directory Directory, roleHeader, userHeader string) *Resolver {
	return &Resolver{
		directory:  directory,
		roleHeader: roleHeader,
		userHeader: userHeader,
	}
}

// Resolve 按顺序校验：请求头 -> 角色存在 -> 用户与角色对应 -> 用户启用
func (r *Resolver) Resolve(ctx context.Context, h Headers) (*AuthContext, error) {
	roleID, ok := parseID(h.Get(r.roleHeader))
	if !ok {
		return nil, errors.Unauthenticated("")
	}
	userID, ok := parseID(h.Get(r.userHeader))
	if !ok {
		return nil, errors.Unauthenticated("")
	}

	role, err := r.directory.FindRole(ctx, roleID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if role == nil {
		return nil, errors.RoleNotFound(roleID)
	}

	user, err := r.directory.FindUser(ctx, userID, roleID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if user == nil {
		return nil, errors.InvalidUser(userID, roleID)
	}
	if !user.Active {
		return nil, errors.UserInactive(userID)
	}

	perms := make(map[string]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		perms[p] = struct{}{}
	}
	return &AuthContext{
		UserID:      userID,
		RoleID:      roleID,
		RoleName:    role.Name,
		Permissions: perms,
		User:        user,
	}, nil
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
