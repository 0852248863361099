package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, method jwt.SigningMethod, key any, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func setupAuthRouter(roles ...string) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.POST("/private", RequireRole(testSecret, roles...), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c)+":"+Role(c))
	})
	return r
}

func doAuth(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/private", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRole_ValidToken(t *testing.T) {
	r := setupAuthRouter("admin", "manager")
	tok := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "user-1", "manager", time.Now().Add(time.Hour))

	w := doAuth(r, "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "user-1:manager" {
		t.Errorf("expected subject and role in context, got %q", got)
	}
}

func TestRequireRole_Unauthorized(t *testing.T) {
	r := setupAuthRouter("admin")

	tests := []struct {
		name  string
		authz string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), "u", "admin", time.Now().Add(time.Hour))},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "u", "admin", time.Now().Add(-time.Minute))},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), "u", "admin", time.Now().Add(time.Hour))},
		{"no subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "", "admin", time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuth(r, tt.authz)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["status"] != "fail" {
				t.Errorf("expected status 'fail', got %v", body["status"])
			}
		})
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	r := setupAuthRouter("admin")
	tok := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "user-2", "user", time.Now().Add(time.Hour))

	w := doAuth(r, "Bearer "+tok)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestRequireRole_AnyRole(t *testing.T) {
	r := setupAuthRouter()
	tok := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "user-3", "", time.Now().Add(time.Hour))

	if w := doAuth(r, "Bearer "+tok); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
