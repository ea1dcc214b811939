package middleware

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edumarket/pkg/errors"
	"github.com/edumarket/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	for _, h := range handlers {
		app.Use(h)
	}
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return nil
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestCorsPreflight(t *testing.T) {
	called := false
	app := newApp(Cors(nil))
	app.Options("/api/cursos", func(c *fiber.Ctx) error {
		called = true
		return nil
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/cursos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Nil(t, decode(t, resp))
	assert.False(t, called)
}

func TestCorsAllowList(t *testing.T) {
	app := newApp(Cors([]string{"https://edumarket.example"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://edumarket.example")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "https://edumarket.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	app := newApp(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Equal(t, GetRequestID(c), logger.RequestID(c.UserContext()))
		return c.SendString(GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	app := newApp(Recovery())
	app.Get("/", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Internal error", "message": "panic: boom"}, decode(t, resp))
}

func TestErrorHandler(t *testing.T) {
	app := newApp()
	app.Get("/app", func(c *fiber.Ctx) error { return errors.NotFound("cursos/9") })
	app.Get("/plain", func(c *fiber.Ctx) error { return stderrors.New("disk full") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/app", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "cursos/9 not found", decode(t, resp)["message"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/plain", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "disk full", decode(t, resp)["message"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := newApp(RequestID(), RequestLog(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/denied", func(c *fiber.Ctx) error { return errors.PermissionDenied("x", "Estudiante", nil) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil), -1)
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/denied", nil), -1)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusForbidden), entries[1].ContextMap()["status"])
}
