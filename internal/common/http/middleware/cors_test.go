package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCORSRouter(cfg CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/api/run/:runId", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/api/run/:runId", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	r := newCORSRouter(CORSConfig{Enabled: true, AllowedOrigins: []string{"http://app.local"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/run/abc", nil)
	req.Header.Set("Origin", "http://app.local")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type,Idempotency-Key,X-Trace-Id" {
		t.Fatalf("allow headers = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("max age = %q", got)
	}
}

func TestCORSRejectsUnknownOriginPreflight(t *testing.T) {
	r := newCORSRouter(CORSConfig{Enabled: true, AllowedOrigins: []string{"http://app.local"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/run/abc", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/run/abc", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("simple request should pass without CORS headers: %d %v", rec.Code, rec.Header())
	}
}

func TestCORSWildcardAndDisabled(t *testing.T) {
	r := newCORSRouter(CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/api/run/abc", nil)
	req.Header.Set("Origin", "http://anything.local")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %v", rec.Header())
	}

	r = newCORSRouter(CORSConfig{AllowedOrigins: []string{"*"}})
	req = httptest.NewRequest(http.MethodOptions, "/api/run/abc", nil)
	req.Header.Set("Origin", "http://anything.local")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("disabled middleware should not touch the response: %d %v", rec.Code, rec.Header())
	}
}
