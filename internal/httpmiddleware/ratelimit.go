package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket is an in-memory per-client rate limiter. A single local user is
// the expected client; the limit only guards against runaway scripts.
//
// Buckets idle long enough to have refilled completely are indistinguishable
// from new ones, so they are dropped on a periodic sweep.
type TokenBucket struct {
	capacity float64
	perSec   float64
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter holding capacity tokens per client,
// refilled at perMinute. capacity <= 0 means perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	l := &TokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		idleTTL:  time.Minute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
	if l.perSec > 0 {
		if full := time.Duration(l.capacity / l.perSec * float64(time.Second)); full > l.idleTTL {
			l.idleTTL = full
		}
	}
	return l
}

// Middleware returns gin handler enforcing per-IP limits. A non-positive
// rate disables limiting.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSec <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow takes one token for key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}
	b.tokens = min(l.capacity, b.tokens+now.Sub(b.last).Seconds()*l.perSec)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops full-again buckets at most once per idleTTL. Caller holds mu.
func (l *TokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for k, b := range l.state {
		if now.Sub(b.last) >= l.idleTTL {
			delete(l.state, k)
		}
	}
	l.lastSweep = now
}

func (l *TokenBucket) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state)
}
