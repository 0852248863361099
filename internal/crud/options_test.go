package crud

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/query"
)

func TestOptions_Apply(t *testing.T) {
	base := query.Schema{DefaultLimit: 50, MaxLimit: 0}

	got := Options{}.Apply(base)
	if got.DefaultLimit != 50 || got.MaxLimit != 0 {
		t.Fatalf("zero options changed limits: %+v", got)
	}

	got = Options{DefaultLimit: 20, MaxLimit: 100}.Apply(base)
	if got.DefaultLimit != 20 || got.MaxLimit != 100 {
		t.Fatalf("Apply() = %+v, want default 20 and max 100", got)
	}
	if base.DefaultLimit != 50 {
		t.Fatal("Apply() must not modify the input schema")
	}
}

func TestOptions_Private(t *testing.T) {
	var order []string
	step := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) { order = append(order, name) }
	}

	opts := Options{Guard: []gin.HandlerFunc{step("guard")}}
	r := gin.New()
	r.POST("/things", opts.Private(step("handler"))...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/things", nil))

	if len(order) != 2 || order[0] != "guard" || order[1] != "handler" {
		t.Fatalf("call order = %v, want [guard handler]", order)
	}

	if chain := (Options{}).Private(step("only")); len(chain) != 1 {
		t.Fatalf("Private() without guard = %d handlers, want 1", len(chain))
	}
}
