// Package permission 基于角色权限集的资源授权
package permission

import (
	"net/http"
	"strconv"

	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/services/api/internal/identity"
)

const usersResource = "/users"

// Authorizer 授权器，无状态，只读取已解析的授权上下文
type Authorizer struct {
	table Table
}

// NewAuthorizer 创建授权器
func NewAuthorizer(table Table) *Authorizer {
	return &Authorizer{table: table}
}

// Authorize 判断请求是否允许
//
// 用户总是可以修改自己的用户记录（PUT/PATCH /users/{自己的ID}）。
// 权限表未登记的组合直接放行。
func (a *Authorizer) Authorize(ac *identity.AuthContext, path, method string) error {
	resource := Resource(path)

	if resource == usersResource && isSelfEdit(ac, path, method) {
		return nil
	}

	required, ok := a.table.Required(resource, method)
	if !ok {
		return nil
	}
	if ac.Has(required) {
		return nil
	}
	return errors.PermissionDenied(required, ac.RoleName, ac.PermissionList())
}

func isSelfEdit(ac *identity.AuthContext, path, method string) bool {
	if method != http.MethodPut && method != http.MethodPatch {
		return false
	}
	_, second := segments(path)
	id, err := strconv.ParseInt(second, 10, 64)
	return err == nil && id == ac.UserID
}
