package identity

import (
	"context"
	"net/http"
	"testing"

	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/dal/daltest"
	"github.com/edumarket/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() map[string][]dal.Record {
	return map[string][]dal.Record{
		"roles": {
			{"id": 1, "nombre": "Administrador", "codigo": "admin", "permisos": []any{"crear_curso", "editar_usuario"}},
			{"id": 3, "nombre": "Estudiante", "codigo": "estudiante", "permisos": []any{"crear_inscripcion"}},
			{"id": 4, "nombre": "Roto", "codigo": "roto", "permisos": "todos"},
		},
		"users": {
			{"id": 1, "nombre": "Ana", "email": "ana@example.com", "rolId": 1, "activo": true},
			{"id": 5, "nombre": "Luis", "email": "luis@example.com", "rolId": 3, "activo": true},
			{"id": 6, "nombre": "Marta", "email": "marta@example.com", "rolId": 3, "activo": false},
			{"id": 7, "nombre": "Pablo", "email": "pablo@example.com", "rolId": 3},
			{"id": 8, "nombre": "Rosa", "email": "rosa@example.com", "rolId": 1, "activo": "si"},
		},
	}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	store := daltest.NewStore(t, seed())
	return NewResolver(NewStoreDirectory(store), "X-Role-Id", "X-User-Id")
}

func headers(role, user string) http.Header {
	h := http.Header{}
	if role != "" {
		h.Set("X-Role-Id", role)
	}
	if user != "" {
		h.Set("X-User-Id", user)
	}
	return h
}

func TestResolveSuccess(t *testing.T) {
	r := newResolver(t)

	ac, err := r.Resolve(context.Background(), headers("3", "5"))
	require.NoError(t, err)

	assert.Equal(t, int64(5), ac.UserID)
	assert.Equal(t, int64(3), ac.RoleID)
	assert.Equal(t, "Estudiante", ac.RoleName)
	assert.True(t, ac.Has("crear_inscripcion"))
	assert.False(t, ac.Has("crear_curso"))
	assert.Equal(t, []string{"crear_inscripcion"}, ac.PermissionList())
	assert.Equal(t, "Luis", ac.Actor())
}

func TestResolveFailures(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name string
		role string
		user string
		want *errors.AppError
	}{
		{name: "no headers", want: errors.ErrUnauthenticated},
		{name: "missing user", role: "3", want: errors.ErrUnauthenticated},
		{name: "missing role", user: "5", want: errors.ErrUnauthenticated},
		{name: "not a number", role: "admin", user: "5", want: errors.ErrUnauthenticated},
		{name: "zero", role: "0", user: "5", want: errors.ErrUnauthenticated},
		{name: "negative", role: "3", user: "-5", want: errors.ErrUnauthenticated},
		{name: "unknown role", role: "9", user: "5", want: errors.ErrRoleNotFound},
		{name: "unknown user", role: "3", user: "99", want: errors.ErrInvalidUser},
		{name: "user under another role", role: "1", user: "5", want: errors.ErrInvalidUser},
		{name: "inactive", role: "3", user: "6", want: errors.ErrUserInactive},
		{name: "activo unset", role: "3", user: "7", want: errors.ErrUserInactive},
		{name: "malformed role record", role: "4", user: "5", want: errors.ErrInternal},
		{name: "malformed user record", role: "1", user: "8", want: errors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac, err := r.Resolve(context.Background(), headers(tt.role, tt.user))
			assert.Nil(t, ac)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveReadsFreshState(t *testing.T) {
	store := daltest.NewStore(t, seed())
	r := NewResolver(NewStoreDirectory(store), "X-Role-Id", "X-User-Id")
	ctx := context.Background()

	_, err := r.Resolve(ctx, headers("3", "5"))
	require.NoError(t, err)

	_, err = store.Merge(ctx, "users", 5, dal.Record{"activo": false})
	require.NoError(t, err)

	_, err = r.Resolve(ctx, headers("3", "5"))
	assert.ErrorIs(t, err, errors.ErrUserInactive)
}

func TestHeaderFunc(t *testing.T) {
	h := HeaderFunc(func(key string) string {
		return map[string]string{"X-Role-Id": "1", "X-User-Id": "1"}[key]
	})
	ac, err := newResolver(t).Resolve(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "Administrador", ac.RoleName)
}
