package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/catalog/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// openTestStorage returns SQL-backed storage on a private in-memory database.
func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s, err := NewSQLStorage(db)
	if err != nil {
		t.Fatalf("NewSQLStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

func getPath(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// --- Health check ---

func TestHealthHandler_OK(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthHandler(openTestStorage(t)))

	w := getPath(r, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	comps, ok := body["components"].(map[string]any)
	if !ok {
		t.Fatal("missing components")
	}
	if comps["database"] != "ok" {
		t.Errorf("expected database ok, got %v", comps["database"])
	}
}

func TestHealthHandler_DBDown(t *testing.T) {
	s := openTestStorage(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := gin.New()
	r.GET("/health", healthHandler(s))

	w := getPath(r, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "degraded" {
		t.Errorf("expected status degraded, got %v", body["status"])
	}
	if comps := body["components"].(map[string]any); comps["database"] != "error" {
		t.Errorf("expected database error, got %v", comps["database"])
	}
}

func TestHealthHandler_NilPinger(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthHandler(nil))

	if w := getPath(r, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHealthHandler_UsesRequestContextTimeout(t *testing.T) {
	blocking := pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	r := gin.New()
	r.GET("/health", healthHandler(blocking))

	reqCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(reqCtx)

	start := time.Now()
	r.ServeHTTP(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if elapsed > 300*time.Millisecond {
		t.Fatalf("expected health response to honor request context timeout, elapsed=%v", elapsed)
	}
}

// --- RegisterRoutes ---

type mockModule struct {
	called bool
}

func (m *mockModule) RegisterRoutes(api *gin.RouterGroup) {
	m.called = true
	api.GET("/mock", func(c *gin.Context) { c.String(http.StatusOK, "mock") })
}

func TestRegisterRoutes_NilRouter(t *testing.T) {
	if err := RegisterRoutes(nil, &RouteDeps{Modules: []Module{&mockModule{}}}); err == nil {
		t.Fatal("expected error for nil router")
	}
}

func TestRegisterRoutes_NilDeps(t *testing.T) {
	if err := RegisterRoutes(gin.New(), nil); err == nil {
		t.Fatal("expected error for nil deps")
	}
}

func TestRegisterRoutes_NoModules(t *testing.T) {
	if err := RegisterRoutes(gin.New(), &RouteDeps{}); err == nil {
		t.Fatal("expected error when no module is given")
	}
}

func TestRegisterRoutes_NilModuleEntry(t *testing.T) {
	err := RegisterRoutes(gin.New(), &RouteDeps{Modules: []Module{&mockModule{}, nil}})
	if err == nil {
		t.Fatal("expected error for nil module entry")
	}
}

func TestRegisterRoutes_ModulesMountedUnderAPIPrefix(t *testing.T) {
	m := &mockModule{}
	r := gin.New()
	if err := RegisterRoutes(r, &RouteDeps{Modules: []Module{m}}); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	if !m.called {
		t.Fatal("expected module RegisterRoutes to be called")
	}

	w := getPath(r, APIPrefix+"/mock")
	if w.Code != http.StatusOK || w.Body.String() != "mock" {
		t.Fatalf("GET %s/mock = %d %q", APIPrefix, w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_NoRouteReturnsJSON(t *testing.T) {
	r := gin.New()
	if err := RegisterRoutes(r, &RouteDeps{Modules: []Module{&mockModule{}}}); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}

	w := getPath(r, "/api/v1/nothing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "fail" {
		t.Errorf("status = %v, want fail", body["status"])
	}
	if body["message"] != "can't find /api/v1/nothing on this server" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	m := middleware.NewMetrics("test")
	r := gin.New()
	r.Use(m.Middleware())
	err := RegisterRoutes(r, &RouteDeps{
		Modules:     []Module{&mockModule{}},
		Health:      pingerFunc(func(context.Context) error { return nil }),
		Metrics:     m,
		MetricsPath: "/internal/metrics",
	})
	if err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}

	getPath(r, "/health")
	w := getPath(r, "/internal/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, "test_http_requests_total") || !strings.Contains(got, `route="/health"`) {
		t.Fatalf("metrics output missing request counter:\n%s", got)
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	r := gin.New()
	err := RegisterRoutes(r, &RouteDeps{
		Modules: []Module{&mockModule{}},
		Health:  pingerFunc(func(context.Context) error { return errors.New("down") }),
	})
	if err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	if w := getPath(r, "/metrics"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", w.Code)
	}
}
