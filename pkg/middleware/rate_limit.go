package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "calendra/pkg/errors"
	httputil "calendra/pkg/http"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
)

// KeyExtractor picks the rate limit bucket of a request. An empty key is not limited.
type KeyExtractor func(r *http.Request) string

// ActorRateLimiter is a sliding window limiter keyed by actor.
type ActorRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	key      KeyExtractor
	now      func() time.Time
	log      *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewActorRateLimiter(limit int, window time.Duration, key KeyExtractor, log *logger.Logger) *ActorRateLimiter {
	if key == nil {
		key = ActorOrAddress
	}
	limiter := &ActorRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		key:      key,
		now:      time.Now,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *ActorRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ActorRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *ActorRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func RateLimit(limiter *ActorRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.key(r)
			if !limiter.Allow(key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"key", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(limiter.window.Seconds()))))
				_ = httputil.WriteError(w, apperrors.TooManyRequests("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActorOrAddress buckets authenticated callers by actor and the rest by client address.
func ActorOrAddress(r *http.Request) string {
	if actor, ok := identity.FromContext(r.Context()); ok {
		return "actor:" + actor.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
