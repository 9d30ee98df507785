package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobhack/web/internal/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type signedIn bool

func (s signedIn) SignedIn(*http.Request) bool { return bool(s) }

func TestHTTPSMiddlewareRedirectsOnce(t *testing.T) {
	called := false
	h := middleware.HTTPSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), "prod")

	req := httptest.NewRequest(http.MethodGet, "http://jobhack.test/?keyword=go", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://jobhack.test/?keyword=go", rec.Header().Get("Location"))
	assert.False(t, called)

	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, called)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}), zerolog.New(&buf))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), seen)
}

func TestUserAuthenticatedMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	rec := httptest.NewRecorder()
	middleware.UserAuthenticatedMiddleware(signedIn(false), next)(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	middleware.UserAuthenticatedMiddleware(signedIn(true), next)(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
