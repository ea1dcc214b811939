// Package model 市场核心实体
package model

// Role 角色，权限为权限编码集合
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"nombre"`
	Code        string   `json:"codigo"`
	Permissions []string `json:"permisos"`
}

// User 用户
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	RoleID   int64  `json:"rolId"`
	Active   bool   `json:"activo"`
	Password string `json:"password,omitempty"`
}

// 集合名称
const (
	CollectionUsers = "users"
	CollectionRoles = "roles"
)
