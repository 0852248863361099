package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupRateLimitRouter(cfg RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(cfg))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func hit(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2})

	for i := 0; i < 2; i++ {
		if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
	}

	w := hit(r, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("expected positive Retry-After, got %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1})

	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	if w := hit(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected other client to be admitted, got %d", w.Code)
	}
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	r := setupRateLimitRouter(RateLimitConfig{})

	for i := 0; i < 50; i++ {
		if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimit_DropsIdleBuckets(t *testing.T) {
	l := newBucketLimiter(1, 1, time.Minute)
	start := time.Now()
	clock := start
	l.now = func() time.Time { return clock }

	l.get("10.0.0.1")
	l.get("10.0.0.2")
	if n := l.size(); n != 2 {
		t.Fatalf("expected 2 buckets, got %d", n)
	}

	clock = start.Add(30 * time.Second)
	l.get("10.0.0.2")
	if n := l.size(); n != 2 {
		t.Fatalf("no bucket is idle yet, got %d", n)
	}

	clock = start.Add(90 * time.Second)
	l.get("10.0.0.2")
	if n := l.size(); n != 1 {
		t.Fatalf("expected idle bucket to be dropped, got %d buckets", n)
	}
	if _, ok := l.buckets.Load("10.0.0.1"); ok {
		t.Error("bucket of idle client still present")
	}
}

func TestRateLimit_IdleTTLCoversRefill(t *testing.T) {
	l := newBucketLimiter(0.5, 5, time.Second)
	if want := 10 * time.Second; l.idleTTL < want {
		t.Errorf("idleTTL = %v, want at least %v", l.idleTTL, want)
	}
	if l := newBucketLimiter(1, 1, 0); l.idleTTL != defaultLimiterIdleTTL {
		t.Errorf("default idleTTL = %v, want %v", l.idleTTL, defaultLimiterIdleTTL)
	}
}
