package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

const rateLimitMessage = "Too many requests, try after some time"

// MemoryLimiter keeps one token bucket per client key in process memory.
type MemoryLimiter struct {
	buckets sync.Map // map[string]*rate.Limiter
	rps     float64
	burst   int
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{rps: rps, burst: burst}
}

func (l *MemoryLimiter) bucket(key string) *rate.Limiter {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(l.rps), l.burst))
	return v.(*rate.Limiter)
}

// rateKey prefers the authenticated user so clients behind one NAT do not
// share a bucket; anonymous calls fall back to the client IP.
func rateKey(c *gin.Context) string {
	if id := UserID(c); id != "" {
		return "user:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a per-key token bucket.
// Mount it after Authenticate to limit per user.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return NewMemoryLimiter(rps, burst).Handler()
}

func (l *MemoryLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.bucket(rateKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": rateLimitMessage})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
