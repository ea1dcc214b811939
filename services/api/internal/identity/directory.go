package identity

import (
	"context"
	"strconv"

	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/services/api/internal/model"
)

// Directory 角色与用户查询
//
// 不存在时返回 nil, nil；记录无法解码时返回错误。
type Directory interface {
	FindRole(ctx context.Context, roleID int64) (*model.Role, error)
	FindUser(ctx context.Context, userID, roleID int64) (*model.User, error)
}

// StoreDirectory 基于文档存储的目录，每次调用都重新读取集合
type StoreDirectory struct {
	roles *dal.Collection[model.Role]
	users *dal.Collection[model.User]
}

// NewStoreDirectory 创建目录
func NewStoreDirectory(store *dal.Store) *StoreDirectory {
	return &StoreDirectory{
		roles: dal.NewCollection[model.Role](store, model.CollectionRoles),
		users: dal.NewCollection[model.User](store, model.CollectionUsers),
	}
}

// FindRole 按ID查找角色
func (d *StoreDirectory) FindRole(ctx context.Context, roleID int64) (*model.Role, error) {
	return d.roles.GetOne(ctx, roleID)
}

// FindUser 查找 id 与 rolId 同时匹配的用户
func (d *StoreDirectory) FindUser(ctx context.Context, userID, roleID int64) (*model.User, error) {
	return d.users.GetFirstListItem(ctx, dal.Filter{
		"id":    strconv.FormatInt(userID, 10),
		"rolId": strconv.FormatInt(roleID, 10),
	})
}
