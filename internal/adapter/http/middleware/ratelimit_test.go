package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qr-payment-ledger/internal/adapter/http/middleware"
	"qr-payment-ledger/internal/adapter/storage/memory"
	redisStore "qr-payment-ledger/internal/adapter/storage/redis"
	"qr-payment-ledger/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(store ports.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	log := zerolog.Nop()

	subject := func(c *gin.Context) {
		if sub := c.GetHeader("X-Test-Subject"); sub != "" {
			c.Set(middleware.CtxSubject, sub)
		}
	}
	r.GET("/test", subject, middleware.RateLimiter(store, "test", rule, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisRateLimitStore(t *testing.T) *redisStore.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func doGet(router *gin.Engine, subject string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/test", nil)
	if subject != "" {
		req.Header.Set("X-Test-Subject", subject)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisRateLimitStore(t))

	for i := 0; i < 3; i++ {
		w := doGet(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	stores := map[string]ports.RateLimitStore{
		"redis":  newRedisRateLimitStore(t),
		"memory": memory.NewRateLimitStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			router := setupRateLimitRouter(store)
			for i := 0; i < 3; i++ {
				assert.Equal(t, 200, doGet(router, "").Code)
			}

			w := doGet(router, "")
			assert.Equal(t, 429, w.Code)
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		})
	}
}

func TestRateLimiter_KeysBySubject(t *testing.T) {
	router := setupRateLimitRouter(newRedisRateLimitStore(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "terminal-A").Code)
	}
	assert.Equal(t, 429, doGet(router, "terminal-A").Code)

	// terminal-B has its own counter
	assert.Equal(t, 200, doGet(router, "terminal-B").Code)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int64, time.Duration) (*ports.RateLimitResult, error) {
	return nil, errors.New("redis down")
}

func TestRateLimiter_DegradedMode(t *testing.T) {
	router := setupRateLimitRouter(failingStore{})

	for i := 0; i < 5; i++ {
		w := doGet(router, "")
		assert.Equal(t, 200, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(60), rules["issue"].Limit)
	assert.Equal(t, int64(120), rules["redeem"].Limit)
	assert.Equal(t, int64(240), rules["inspect"].Limit)
	assert.Equal(t, int64(120), rules["chain"].Limit)
	assert.Equal(t, int64(6), rules["audit"].Limit)
	for name, rule := range rules {
		assert.Equal(t, time.Minute, rule.Window, name)
	}
}
