package middleware

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// ThrottleConfig defines configuration for request pacing
type ThrottleConfig struct {
	// Maximum number of requests let through per Window for one client
	Limit int

	// Time window for the limit (default: 1 second)
	Window time.Duration

	// Slack is the number of requests a client may burst after being idle.
	// Zero paces strictly.
	Slack int

	// KeyFunc identifies the client. Defaults to RemoteIP, which ignores
	// forwarding headers unless ClientIPMiddleware is installed.
	KeyFunc func(*http.Request) string
}

// Throttler paces requests per client with leaky buckets. Requests over the
// rate are delayed, not rejected, so throttled responses are still enveloped normally.
type Throttler struct {
	config   ThrottleConfig
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
}

// NewThrottler creates a Throttler, filling in defaults.
func NewThrottler(config ThrottleConfig) *Throttler {
	if config.Limit < 1 {
		config.Limit = 1
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}
	if config.KeyFunc == nil {
		config.KeyFunc = RemoteIP
	}
	return &Throttler{config: config}
}

// limiter gets or creates the limiter for key
func (t *Throttler) limiter(key string) ratelimit.Limiter {
	if l, ok := t.limiters.Load(key); ok {
		return l.(ratelimit.Limiter)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring lock
	if l, ok := t.limiters.Load(key); ok {
		return l.(ratelimit.Limiter)
	}

	opts := []ratelimit.Option{ratelimit.Per(t.config.Window)}
	if t.config.Slack > 0 {
		opts = append(opts, ratelimit.WithSlack(t.config.Slack))
	} else {
		opts = append(opts, ratelimit.WithoutSlack)
	}
	l := ratelimit.New(t.config.Limit, opts...)
	t.limiters.Store(key, l)
	return l
}

// Wait blocks until the client identified by key may proceed and returns how long it waited.
func (t *Throttler) Wait(key string) time.Duration {
	start := time.Now()
	t.limiter(key).Take()
	return time.Since(start)
}

// Throttle creates a middleware that paces each client to config.Limit requests per config.Window.
func Throttle(config ThrottleConfig, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := NewThrottler(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := t.config.KeyFunc(r)
			if waited := t.Wait(key); waited > time.Millisecond {
				logger.Debug("Request throttled",
					zap.String("key", key),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("waited", waited),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
