package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/pkg/response"
)

// maxTrackedCallers bounds the limiter map; stale entries are pruned once it
// is exceeded.
const maxTrackedCallers = 4096

type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// RateLimit allows one request per window per caller. Each route gets its own
// limiter instance, so the chat and history windows are independent. The chat
// routes sit behind auth, making the user id the caller key; the client IP is
// the fallback for anything unauthenticated. A zero window disables the
// limiter.
func RateLimit(window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		window: window,
		last:   make(map[string]time.Time),
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.window <= 0 {
		c.Next()
		return
	}
	caller := c.ClientIP()
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			caller = id
		}
	}

	now := time.Now()
	l.mu.Lock()
	last, exists := l.last[caller]
	if exists && now.Sub(last) < l.window {
		l.mu.Unlock()
		logutil.GetLogger(c.Request.Context()).Warn("request throttled",
			zap.String("caller", caller),
			zap.String("path", c.Request.URL.Path),
		)
		response.Error(c, http.StatusTooManyRequests, "too_many_requests", "request throttled, retry shortly")
		c.Abort()
		return
	}
	if len(l.last) >= maxTrackedCallers {
		for k, ts := range l.last {
			if now.Sub(ts) >= l.window {
				delete(l.last, k)
			}
		}
	}
	l.last[caller] = now
	l.mu.Unlock()
	c.Next()
}
