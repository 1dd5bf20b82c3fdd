package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ThrottleConfig limits how often expensive endpoints (exports, imports,
// backups) may be hit.
type ThrottleConfig struct {
	// Max requests per Window and key. Zero or less disables the throttle.
	Max    int
	Window time.Duration
	// Key groups requests. Defaults to the client address plus the path.
	Key func(*http.Request) string
}

// window counts hits in the current and previous fixed windows. The
// effective count weighs the previous window by its overlap with a window
// sliding up to now.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type throttle struct {
	max    int
	period time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newThrottle(cfg ThrottleConfig) *throttle {
	t := &throttle{
		max:     cfg.Max,
		period:  cfg.Window,
		key:     cfg.Key,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	if t.key == nil {
		t.key = func(r *http.Request) string { return ClientAddr(r) + " " + r.URL.Path }
	}
	return t
}

// take records a hit for key and reports whether it is within the limit,
// how many hits remain and when the current window ends.
func (t *throttle) take(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windows[key]
	if w == nil {
		w = &window{start: now.Truncate(t.period)}
		t.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= t.period {
		if elapsed >= 2*t.period {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(t.period)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/t.period.Seconds()
	count := w.prev*math.Max(overlap, 0) + w.curr
	reset = w.start.Add(t.period)
	if count >= float64(t.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(t.max-int(math.Ceil(count+1)), 0), reset
}

// sweep drops windows that cannot influence future decisions.
func (t *throttle) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, w := range t.windows {
		if now.Sub(w.start) >= 2*t.period {
			delete(t.windows, k)
		}
	}
}

// Throttle rejects requests over the configured rate with 429 and a
// Retry-After header. A goroutine sweeping idle keys runs until ctx is done.
func Throttle(ctx context.Context, cfg ThrottleConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	t := newThrottle(cfg)
	go func() {
		ticker := time.NewTicker(2 * t.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.sweep(now)
			}
		}
	}()
	return t.middleware
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := t.now()
		ok, remaining, reset := t.take(t.key(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(t.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := math.Ceil(math.Max(reset.Sub(now).Seconds(), 0))
			h.Set("Retry-After", strconv.Itoa(int(wait)))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientAddr returns the client IP, preferring the first X-Forwarded-For
// entry, then X-Real-IP, then the connection address.
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
