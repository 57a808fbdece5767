package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hit(r http.Handler, path string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestInMemoryRateLimit(t *testing.T) {
	limiter := NewRateLimiter(nil)
	r := gin.New()
	r.GET("/test", limiter.ByIP(2, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		if code := hit(r, "/test"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, code)
		}
	}
	if code := hit(r, "/test"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestInMemoryWindowResets(t *testing.T) {
	m := newMemoryWindows()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.incr("k", time.Second)
	if n := m.incr("k", time.Second); n != 2 {
		t.Fatalf("count = %d; want 2", n)
	}
	now = now.Add(2 * time.Second)
	if n := m.incr("k", time.Second); n != 1 {
		t.Fatalf("count after window = %d; want 1", n)
	}
}

func TestByUserRequiresAuth(t *testing.T) {
	limiter := NewRateLimiter(nil)
	user := uuid.New()

	r := gin.New()
	r.GET("/anon", limiter.ByUser(1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/authed", func(c *gin.Context) { c.Set(ctxUserID, user); c.Next() },
		limiter.ByUser(1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	if code := hit(r, "/anon"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", code)
	}
	if code := hit(r, "/authed"); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if code := hit(r, "/authed"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db})
	defer rdb.Close()

	// unique window so reruns do not share a key
	w := time.Duration(2+time.Now().UnixNano()%1000) * time.Second
	limit := 2

	r := gin.New()
	r.GET("/test", NewRateLimiter(rdb).ByIP(limit, w), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := &http.Client{}
	for i := 0; i <= limit; i++ {
		res, err := client.Get(srv.URL + "/test")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		res.Body.Close()
		want := http.StatusOK
		if i == limit {
			want = http.StatusTooManyRequests
		}
		if res.StatusCode != want {
			t.Fatalf("request %d: expected %d got %d", i, want, res.StatusCode)
		}
	}
}
