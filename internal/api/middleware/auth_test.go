package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func authContext(path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c, rec
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	c, _ := authContext("/api/v1/tickets")

	handler := APIKeyAuth("test-api-key", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	assert.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	c, _ := authContext("/api/v1/tickets")
	c.Request().Header.Set("Authorization", "Bearer wrong-key")

	handler := APIKeyAuth("test-api-key", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	assert.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	c, rec := authContext("/api/v1/tickets")
	c.Request().Header.Set("Authorization", "Bearer test-api-key")

	handler := APIKeyAuth("test-api-key", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_HealthEndpointSkipsAuth(t *testing.T) {
	c, rec := authContext("/health")

	handler := APIKeyAuth("test-api-key", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "healthy")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_OAuthCallbackSkipsAuth(t *testing.T) {
	c, rec := authContext("/api/v1/oauth/callback")

	handler := APIKeyAuth("test-api-key", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "connected")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_NoAPIKeyConfigured(t *testing.T) {
	c, rec := authContext("/api/v1/tickets")

	handler := APIKeyAuth("", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c, _ := authContext("/api/v1/tickets")

	handler := APIKeyAuth("test-api-key", logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	err := handler(c)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "missing authorization header")
}

func TestTriggerAuth_HeaderSecret(t *testing.T) {
	c, rec := authContext("/api/v1/jobs/mail-sync")
	c.Request().Header.Set("X-Trigger-Secret", "s3cret")

	handler := TriggerAuth("s3cret", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "triggered")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerAuth_QuerySecret(t *testing.T) {
	c, rec := authContext("/api/v1/jobs/mail-sync?secret=s3cret")

	handler := TriggerAuth("s3cret", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "triggered")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerAuth_WrongSecret(t *testing.T) {
	c, _ := authContext("/api/v1/jobs/mail-sync")
	c.Request().Header.Set("X-Trigger-Secret", "nope")

	handler := TriggerAuth("s3cret", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "triggered")
	})

	err := handler(c)
	assert.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestTriggerAuth_MissingSecret(t *testing.T) {
	c, _ := authContext("/api/v1/jobs/mail-sync")

	handler := TriggerAuth("s3cret", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "triggered")
	})

	err := handler(c)
	assert.Error(t, err)
}

func TestTriggerAuth_EmptySecretPassesThrough(t *testing.T) {
	c, rec := authContext("/api/v1/jobs/mail-sync")

	handler := TriggerAuth("", nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "triggered")
	})

	err := handler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
