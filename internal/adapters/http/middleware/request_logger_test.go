package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"app-access/internal/ports"
)

type mockLogger struct {
	lastCtx   context.Context
	lastLevel string
	lastMsg   string
	lastArgs  []any
}

func (m *mockLogger) record(level string, ctx context.Context, msg string, args []any) {
	m.lastLevel = level
	m.lastCtx = ctx
	m.lastMsg = msg
	m.lastArgs = args
}

func (m *mockLogger) Info(ctx context.Context, msg string, args ...any) {
	m.record("info", ctx, msg, args)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any) {
	m.record("warn", ctx, msg, args)
}

func (m *mockLogger) Error(context.Context, string, ...any) {}
func (m *mockLogger) Debug(context.Context, string, ...any) {}

func (m *mockLogger) fields() map[string]any {
	out := map[string]any{}
	for i := 0; i < len(m.lastArgs)-1; i += 2 {
		if k, ok := m.lastArgs[i].(string); ok {
			out[k] = m.lastArgs[i+1]
		}
	}
	return out
}

func TestRequestLogger_LogsExpectedFields(t *testing.T) {
	logger := &mockLogger{}
	mw := RequestLogger(logger)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/apps")

	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logger.lastMsg != "http request" {
		t.Fatalf("unexpected log message: %s", logger.lastMsg)
	}

	fields := logger.fields()
	for _, expected := range []string{"method", "path", "route_pattern", "status", "duration"} {
		if _, ok := fields[expected]; !ok {
			t.Fatalf("missing expected key %s in args: %v", expected, logger.lastArgs)
		}
	}
	if _, ok := fields["user_email"]; ok {
		t.Fatalf("did not expect user_email for anonymous request: %v", logger.lastArgs)
	}
}

func TestRequestLogger_IncludesIdentity(t *testing.T) {
	logger := &mockLogger{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	SetIdentity(c, ports.Identity{UserID: "u1", Email: "user01@example.com"})

	h := RequestLogger(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))

	assert.Equal(t, "user01@example.com", logger.fields()["user_email"])
}

func TestRequestLogger_CommitsHandlerErrors(t *testing.T) {
	logger := &mockLogger{}
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/user-apps", nil), rec)

	h := RequestLogger(logger)(func(c echo.Context) error {
		return errors.New("boom")
	})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "warn", logger.lastLevel)
	assert.Equal(t, http.StatusInternalServerError, logger.fields()["status"])
}

func TestRequestLogger_PassesContextWithXRaySegment(t *testing.T) {
	logger := &mockLogger{}
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ctx, seg := xray.BeginSegment(req.Context(), "http-test")
	defer seg.Close(nil)
	c.SetRequest(req.Clone(ctx))

	h := RequestLogger(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if xray.GetSegment(logger.lastCtx) == nil {
		t.Fatalf("expected xray segment in logged context")
	}
}

func TestXRayMiddleware_AttachesSegment(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), httptest.NewRecorder())

	var seen bool
	h := XRayMiddleware("app-access-test")(func(c echo.Context) error {
		seen = xray.GetSegment(c.Request().Context()) != nil
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.True(t, seen)
}
