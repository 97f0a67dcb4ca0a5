package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, path, remote string) int {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := NewRateLimiter(1, 2, 10, 10)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	remotes := []string{"192.168.1.1:1234", "192.168.1.1:1234", "192.168.1.2:1234"}
	for i, remote := range remotes {
		if got := serve(h, "GET", "/api/tree/stats", remote); got != want[i] {
			t.Errorf("request %d: status %d, want %d", i+1, got, want[i])
		}
	}
}

func TestRateLimiter_PerIPLimit(t *testing.T) {
	rl := NewRateLimiter(100, 100, 1, 2)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	for i := 0; i < 2; i++ {
		if got := serve(h, "GET", "/api/tree/stats", "10.0.0.1:1"); got != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, got)
		}
	}
	if got := serve(h, "GET", "/api/tree/stats", "10.0.0.1:1"); got != http.StatusTooManyRequests {
		t.Errorf("third request from same IP: status %d, want 429", got)
	}
	if got := serve(h, "GET", "/api/tree/stats", "10.0.0.2:1"); got != http.StatusOK {
		t.Errorf("other IP: status %d, want 200", got)
	}
}

func TestRateLimiter_Cost(t *testing.T) {
	rl := NewRateLimiter(100, 100, 1, 5)
	defer rl.Stop()
	rl.Cost = func(r *http.Request) int {
		if r.URL.Path == "/api/layout/step" {
			return 5
		}
		return 1
	}
	h := rl.Limit(okHandler())

	if got := serve(h, "POST", "/api/layout/step", "10.0.0.3:1"); got != http.StatusOK {
		t.Fatalf("first step: status %d", got)
	}
	if got := serve(h, "GET", "/api/tree/stats", "10.0.0.3:1"); got != http.StatusTooManyRequests {
		t.Errorf("after a costly step: status %d, want 429", got)
	}
}

func TestRateLimiter_EvictStale(t *testing.T) {
	rl := NewRateLimiter(100, 100, 10, 10)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("10.0.0.9")

	now = now.Add(staleAfter + time.Second)
	rl.evictStale()
	rl.mu.Lock()
	n := len(rl.perIP)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("%d limiters left after eviction, want 0", n)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1:1234", "192.168.1.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "10.0.0.1:1", "203.0.113.2"},
		{"no port", nil, "192.168.1.5", "192.168.1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, 1, 1)
	rl.Stop()
	rl.Stop()
}
