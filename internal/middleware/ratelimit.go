package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/pkg"
)

const defaultLimiterIdleTTL = 10 * time.Minute

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per key. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// KeyFunc selects the bucket. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
	// IdleTTL drops the bucket of a key not seen for this long. It is raised
	// to the time a drained bucket needs to refill. Defaults to 10 minutes.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

type bucketLimiter struct {
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	buckets   sync.Map // key -> *bucket
	lastSweep atomic.Int64
}

func (l *bucketLimiter) get(key string) *rate.Limiter {
	now := l.now()
	l.sweep(now)

	v, ok := l.buckets.Load(key)
	if !ok {
		v, _ = l.buckets.LoadOrStore(key, &bucket{limiter: rate.NewLimiter(l.limit, l.burst)})
	}
	b := v.(*bucket)
	b.lastSeen.Store(now.UnixNano())
	return b.limiter
}

// sweep removes idle buckets at most once per idleTTL.
func (l *bucketLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.idleTTL) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.buckets.Range(func(k, v any) bool {
		if v.(*bucket).lastSeen.Load() < cutoff {
			l.buckets.Delete(k)
		}
		return true
	})
}

func (l *bucketLimiter) size() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool { n++; return true })
	return n
}

func newBucketLimiter(rps float64, burst int, idleTTL time.Duration) *bucketLimiter {
	if idleTTL <= 0 {
		idleTTL = defaultLimiterIdleTTL
	}
	if refill := time.Duration(float64(burst) / rps * float64(time.Second)); idleTTL < refill {
		idleTTL = refill
	}
	l := &bucketLimiter{limit: rate.Limit(rps), burst: burst, idleTTL: idleTTL, now: time.Now}
	l.lastSweep.Store(time.Now().UnixNano())
	return l
}

// RateLimit rejects requests over the configured rate with 429 and a
// Retry-After header in whole seconds. Buckets of clients idle for longer
// than IdleTTL are dropped so the table does not grow without bound.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = max(1, int(math.Ceil(cfg.RequestsPerSecond)))
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return rateLimitHandler(newBucketLimiter(cfg.RequestsPerSecond, burst, cfg.IdleTTL), keyFunc)
}

func rateLimitHandler(l *bucketLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := l.get(keyFunc(c)).Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, pkg.ErrorResponse{
				Status:  domain.Status(http.StatusTooManyRequests),
				Message: "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
