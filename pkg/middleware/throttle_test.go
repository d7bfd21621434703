package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewThrottlerDefaults(t *testing.T) {
	th := NewThrottler(ThrottleConfig{})
	if th.config.Limit != 1 {
		t.Errorf("Expected limit 1, got %d", th.config.Limit)
	}
	if th.config.Window != time.Second {
		t.Errorf("Expected window 1s, got %v", th.config.Window)
	}
	if th.config.KeyFunc == nil {
		t.Error("Expected a default key function")
	}
}

func TestThrottlerPacesPerKey(t *testing.T) {
	th := NewThrottler(ThrottleConfig{Limit: 10, Window: time.Second})

	// The first request of a key is never delayed
	if waited := th.Wait("a"); waited > 50*time.Millisecond {
		t.Errorf("Expected first request to pass immediately, waited %v", waited)
	}
	if waited := th.Wait("b"); waited > 50*time.Millisecond {
		t.Errorf("Expected another key to pass immediately, waited %v", waited)
	}

	start := time.Now()
	th.Wait("a")
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected second request for key a to be paced, took %v", elapsed)
	}
}

func TestThrottlerConcurrentLimiter(t *testing.T) {
	th := NewThrottler(ThrottleConfig{Limit: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.limiter("shared")
		}()
	}
	wg.Wait()

	count := 0
	th.limiters.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("Expected one limiter, got %d", count)
	}
}

func TestThrottleMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := Throttle(ThrottleConfig{
		Limit:   20,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-User") },
	}, zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-User", "u1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, rr.Code)
		}
	}

	entries := logs.FilterMessage("Request throttled").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 throttle log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["key"] != "u1" {
		t.Errorf("Expected key %q, got %v", "u1", entries[0].ContextMap()["key"])
	}
}

func TestThrottleDefaultKeyIgnoresForwardedFor(t *testing.T) {
	th := NewThrottler(ThrottleConfig{Limit: 10, Window: time.Second})

	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		req.Header.Set("X-Forwarded-For", spoofed)
		if key := th.config.KeyFunc(req); key != "203.0.113.7" {
			t.Errorf("Expected key %q, got %q", "203.0.113.7", key)
		}
		th.limiter(th.config.KeyFunc(req))
	}

	count := 0
	th.limiters.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("Expected spoofed headers to share one limiter, got %d", count)
	}

	// Behind a trusted proxy the application opts in explicitly
	trusted := ClientIPMiddleware(DefaultIPConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := th.config.KeyFunc(r); key != "198.51.100.9" {
			t.Errorf("Expected forwarded key %q, got %q", "198.51.100.9", key)
		}
	}))
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	trusted.ServeHTTP(httptest.NewRecorder(), req)
}
