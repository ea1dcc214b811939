package pipeline

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/dal/daltest"
	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/middleware"
	"github.com/edumarket/pkg/response"
	"github.com/edumarket/services/api/internal/identity"
	"github.com/edumarket/services/api/internal/permission"
	"github.com/edumarket/services/api/internal/schema"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func seed() map[string][]dal.Record {
	return map[string][]dal.Record{
		"roles": {
			{"id": 1, "nombre": "Administrador", "codigo": "admin", "permisos": []any{
				"crear_usuario", "editar_usuario", "eliminar_usuario", "crear_curso", "editar_curso", "eliminar_curso",
			}},
			{"id": 3, "nombre": "Estudiante", "codigo": "estudiante", "permisos": []any{"crear_inscripcion"}},
		},
		"users": {
			{"id": 1, "nombre": "Ana", "email": "ana@example.com", "rolId": 1, "activo": true},
			{"id": 2, "nombre": "Bruno", "email": "bruno@example.com", "rolId": 1, "activo": false},
			{"id": 5, "nombre": "Luis", "email": "luis@example.com", "rolId": 3, "activo": true},
		},
	}
}

type harness struct {
	app   *fiber.App
	calls int
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T, validation bool) *harness {
	t.Helper()
	store := daltest.NewStore(t, seed())
	core, logs := observer.New(zap.DebugLevel)

	p := New(
		identity.NewResolver(identity.NewStoreDirectory(store), "X-Role-Id", "X-User-Id"),
		permission.NewAuthorizer(permission.DefaultTable()),
		schema.NewValidator(schema.Default()),
		schema.DefaultBindings(),
		Options{
			BasePath:   "/api",
			AuthPrefix: "/auth",
			Validation: validation,
			RoleHeader: "X-Role-Id",
			UserHeader: "X-User-Id",
			Logger:     zap.New(core),
			Now:        func() time.Time { return fixedNow },
		},
	)

	h := &harness{app: fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()}), logs: logs}
	api := p.Mount(h.app)

	echo := p.Handle(func(c *fiber.Ctx, req *Request) (*response.Result, error) {
		h.calls++
		if req.Body != nil {
			return response.OK(req.Body), nil
		}
		return response.OK(fiber.Map{"path": req.Path}), nil
	})
	api.Post("/auth/login", echo)
	api.Get("/missing", p.Handle(func(c *fiber.Ctx, req *Request) (*response.Result, error) {
		h.calls++
		return nil, errors.NotFound("missing")
	}))
	api.Delete("/broken/:id", p.Handle(func(c *fiber.Ctx, req *Request) (*response.Result, error) {
		h.calls++
		return nil, stderrors.New("stored record is not an object")
	}))
	api.Post("/echo-auth", p.Handle(func(c *fiber.Ctx, req *Request) (*response.Result, error) {
		h.calls++
		assert.Same(t, req.Auth, Auth(c))
		return &response.Result{Status: http.StatusCreated, Body: req.Auth.PermissionList()}, nil
	}))
	api.Add(http.MethodGet, "/:collection/:id?", echo)
	api.Add(http.MethodPost, "/:collection", echo)
	api.Add(http.MethodPut, "/:collection/:id", echo)
	api.Add(http.MethodPatch, "/:collection/:id", echo)
	api.Add(http.MethodDelete, "/:collection/:id", echo)
	return h
}

type call struct {
	method string
	path   string
	role   string
	user   string
	body   string
}

func (h *harness) do(t *testing.T, c call) (int, map[string]any, []byte) {
	t.Helper()
	var reader io.Reader
	if c.body != "" {
		reader = bytes.NewBufferString(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.role != "" {
		req.Header.Set("X-Role-Id", c.role)
	}
	if c.user != "" {
		req.Header.Set("X-User-Id", c.user)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body, raw
}

const validCourse = `{"titulo":"Go avanzado","precio":49.9,"areaId":2,"nivel":"avanzado"}`

func TestReadBypassesIdentity(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodGet, path: "/api/cursos/3"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"path": "/cursos/3"}, body)

	// 无效身份头同样不会被检查
	code, _, _ = h.do(t, call{method: http.MethodGet, path: "/api/cursos", role: "999", user: "abc"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, h.calls)
}

func TestPreflight(t *testing.T) {
	h := newHarness(t, true)

	code, _, raw := h.do(t, call{method: http.MethodOptions, path: "/api/cursos"})
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, raw)
	assert.Zero(t, h.calls)
}

func TestMutationWithoutIdentity(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodPost, path: "/api/cursos", body: validCourse})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthenticated", body["error"])
	assert.Zero(t, h.calls)
}

func TestIdentityFailures(t *testing.T) {
	h := newHarness(t, true)

	tests := []struct {
		name  string
		role  string
		user  string
		code  int
		title string
	}{
		{name: "unknown role", role: "9", user: "1", code: http.StatusForbidden, title: "Invalid role"},
		{name: "role mismatch", role: "3", user: "1", code: http.StatusForbidden, title: "Invalid user"},
		{name: "malformed", role: "x", user: "1", code: http.StatusUnauthorized, title: "Unauthenticated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := h.do(t, call{method: http.MethodDelete, path: "/api/cursos/1", role: tt.role, user: tt.user})
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.title, body["error"])
		})
	}
	assert.Zero(t, h.calls)
}

func TestInactiveUserBlocksEveryMutation(t *testing.T) {
	h := newHarness(t, true)

	for _, c := range []call{
		{method: http.MethodPost, path: "/api/cursos", body: validCourse},
		{method: http.MethodPut, path: "/api/cursos/1", body: validCourse},
		{method: http.MethodPatch, path: "/api/users/2", body: `{"nombre":"Bruno B"}`},
		{method: http.MethodDelete, path: "/api/areas/1"},
		{method: http.MethodPost, path: "/api/wishlist", body: `{}`},
	} {
		c.role, c.user = "1", "2"
		code, body, _ := h.do(t, c)
		assert.Equal(t, http.StatusForbidden, code, c.method+" "+c.path)
		assert.Equal(t, "Inactive user", body["error"])
	}
	assert.Zero(t, h.calls)
}

func TestPermissionDenied(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodDelete, path: "/api/cursos/3", role: "3", user: "5"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, map[string]any{
		"error":              "Permission denied",
		"message":            "Missing required permission: eliminar_curso",
		"role":               "Estudiante",
		"currentPermissions": []any{"crear_inscripcion"},
	}, body)
	assert.Zero(t, h.calls)

	var warned bool
	for _, e := range h.logs.FilterMessage("request rejected").All() {
		warned = warned || (e.Level == zap.WarnLevel && e.ContextMap()["stage"] == "authorization")
	}
	assert.True(t, warned)
}

func TestSelfEdit(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{
		method: http.MethodPatch, path: "/api/users/5", role: "3", user: "5",
		body: `{"telefono":"+34 600 111 222"}`,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, _, _ = h.do(t, call{
		method: http.MethodPatch, path: "/api/users/1", role: "3", user: "5",
		body: `{"telefono":"+34 600 111 222"}`,
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestValidationFailure(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{
		method: http.MethodPost, path: "/api/users", role: "1", user: "1",
		body: `{"email":"not-an-email","rolId":"oops"}`,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]any{
		"error": "Invalid data",
		"details": []any{
			map[string]any{"field": "nombre", "message": "nombre is required"},
			map[string]any{"field": "email", "message": "email has invalid format"},
			map[string]any{"field": "rolId", "message": "rolId must be a number"},
		},
	}, body)
	assert.Zero(t, h.calls)
}

func TestPartialValidationOnPatch(t *testing.T) {
	h := newHarness(t, true)

	code, _, _ := h.do(t, call{method: http.MethodPatch, path: "/api/cursos/1", role: "1", user: "1", body: `{"precio":10}`})
	assert.Equal(t, http.StatusOK, code)

	code, body, _ := h.do(t, call{method: http.MethodPatch, path: "/api/cursos/1", role: "1", user: "1", body: `{"precio":-1}`})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, body["details"], 1)

	// PUT 需要完整实体
	code, _, _ = h.do(t, call{method: http.MethodPut, path: "/api/cursos/1", role: "1", user: "1", body: `{"precio":10}`})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidationDisabled(t *testing.T) {
	h := newHarness(t, false)

	code, body, _ := h.do(t, call{method: http.MethodPost, path: "/api/cursos", role: "1", user: "1", body: `{"titulo":1}`})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"titulo": 1.0}, body["data"])
}

func TestMalformedJSON(t *testing.T) {
	h := newHarness(t, true)

	for _, raw := range []string{`{"titulo":`, `[1,2]`, `null`} {
		code, body, _ := h.do(t, call{method: http.MethodPost, path: "/api/cursos", role: "1", user: "1", body: raw})
		assert.Equal(t, http.StatusBadRequest, code, raw)
		assert.Equal(t, "Invalid JSON", body["error"])
	}
	assert.Zero(t, h.calls)
}

func TestSuccessfulMutationIsWrapped(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodPost, path: "/api/cursos", role: "1", user: "1", body: validCourse})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"success": true,
		"data": map[string]any{
			"titulo": "Go avanzado", "precio": 49.9, "areaId": 2.0, "nivel": "avanzado",
		},
		"actor":     "Ana",
		"role":      "Administrador",
		"timestamp": "2026-10-19T12:00:00Z",
	}, body)

	code, body, _ = h.do(t, call{method: http.MethodPost, path: "/api/echo-auth", role: "3", user: "5", body: `{}`})
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []any{"crear_inscripcion"}, body["data"])
}

func TestAuthEndpointBypassesIdentityAndEnvelope(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"ana@example.com"}`})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"email": "ana@example.com"}, body)
}

func TestHandlerErrorsAreNotWrapped(t *testing.T) {
	h := newHarness(t, true)

	code, body, _ := h.do(t, call{method: http.MethodGet, path: "/api/missing"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, map[string]any{"error": "Not found", "message": "missing not found"}, body)

	code, body, _ = h.do(t, call{method: http.MethodDelete, path: "/api/broken/1", role: "1", user: "1"})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, map[string]any{"error": "Internal error", "message": "stored record is not an object"}, body)
	assert.NotEmpty(t, h.logs.FilterMessage("handler failed").All())
}
