package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func get(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		runs   int
		status int
		body   string
	}{
		{name: "healthy before any run", runs: 0, status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "below failure threshold", runs: FailureThreshold - 1, status: http.StatusOK, body: `{"status":"ok"}`},
		{
			name:   "at failure threshold",
			runs:   FailureThreshold,
			status: http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"store":"store locked"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("store", time.Second, failing("store locked"))
			runN(h.liveness[0], tt.runs)

			w := get(h.LiveEndpoint, "/livez")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("bolt", time.Second, passing())
	h.AddReadinessCheck("data-dir", time.Second, failing("read-only file system"))

	w := get(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, get(h.ReadyEndpoint, "/readyz").Code)

	runN(h.readiness[1], FailureThreshold)
	w = get(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"data-dir":"read-only file system"}}`, w.Body.String())

	h.SetReady(false)
	w = get(h.ReadyEndpoint, "/readyz")
	assert.Contains(t, w.Body.String(), "_readiness")
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("bolt", time.Second, passing())
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheck_Recovers(t *testing.T) {
	down := true
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})

	runN(c, FailureThreshold)
	msg, failed := c.failure()
	require.True(t, failed)
	assert.Equal(t, "down", msg)

	down = false
	runN(c, SuccessThreshold)
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestStartStop(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := New()
	h.AddLivenessCheck("count", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, failing("err"))
	h.AddReadinessCheck("b", time.Second, passing())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(h.LiveEndpoint, "/livez")
				get(h.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(mockPinger{})(context.Background()))

	err := PingCheck(mockPinger{err: errors.New("database not open")})(context.Background())
	assert.ErrorContains(t, err, "database not open")
}

func TestWritableDirCheck(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, WritableDirCheck(dir)(context.Background()))
	assert.Error(t, WritableDirCheck(filepath.Join(dir, "missing"))(context.Background()))
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "limit 0")
}

// --- Mock implementations ---

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }
