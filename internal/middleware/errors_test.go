package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/domain"
)

func setupErrorRouter(logBuf *bytes.Buffer) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(newTestLogger(logBuf)))
	r.NoRoute(NoRoute)
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(domain.NotFound("category", "0123456789abcdef01234567"))
	})
	r.GET("/invalid", func(c *gin.Context) {
		_ = c.Error(domain.Validation("validation error", map[string]string{"name": "This field is required"}))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("connection reset by peer"))
	})
	r.GET("/written", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
		_ = c.Error(errors.New("late"))
	})
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body
}

func TestErrorHandler_NotFound(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body["status"] != "fail" {
		t.Errorf("expected status 'fail', got %v", body["status"])
	}
	if body["message"] != "no category for this id 0123456789abcdef01234567" {
		t.Errorf("unexpected message %v", body["message"])
	}
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invalid", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	fields, ok := decodeError(t, w)["errors"].(map[string]any)
	if !ok || fields["name"] != "This field is required" {
		t.Errorf("expected field errors, got %v", fields)
	}
}

func TestErrorHandler_InternalHidesCause(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body["status"] != "error" || body["message"] != "internal error" {
		t.Errorf("unexpected body %v", body)
	}
	if !strings.Contains(logBuf.String(), "connection reset by peer") {
		t.Errorf("expected cause in log, got:\n%s", logBuf.String())
	}
}

func TestErrorHandler_KeepsWrittenResponse(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected untouched response, got %d %q", w.Code, w.Body.String())
	}
}

func TestNoRoute(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if msg := decodeError(t, w)["message"]; msg != "can't find /api/v1/unknown on this server" {
		t.Errorf("unexpected message %v", msg)
	}
}
