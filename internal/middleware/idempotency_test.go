package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestReplayKey_ScopedToMethodAndPath(t *testing.T) {
	t.Parallel()

	base := replayKey(http.MethodPost, "/v1/trips", "k-1")
	if replayKey(http.MethodPost, "/v1/trips/trip-1/end", "k-1") == base {
		t.Error("same key on a different path must not collide")
	}
	if replayKey(http.MethodDelete, "/v1/trips", "k-1") == base {
		t.Error("same key with a different method must not collide")
	}
}

func TestIdempotency_SkipsReadsAndKeylessRequests(t *testing.T) {
	t.Parallel()

	// The cache is never consulted for reads or keyless mutations; a nil
	// client would panic if it were.
	router := gin.New()
	router.Use(IdempotencyMiddleware(nil))

	hits := 0
	router.GET("/v1/trips/trip-1", func(c *gin.Context) { hits++; c.JSON(http.StatusOK, gin.H{}) })
	router.POST("/v1/trips", func(c *gin.Context) { hits++; c.JSON(http.StatusCreated, gin.H{}) })

	get := httptest.NewRequest(http.MethodGet, "/v1/trips/trip-1", nil)
	get.Header.Set("Idempotency-Key", "k-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, get)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	post := httptest.NewRequest(http.MethodPost, "/v1/trips", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, post)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	if hits != 2 {
		t.Errorf("expected both requests to reach their handlers, got %d", hits)
	}
}

func TestIdempotency_RedisOutageDegradesToProcessing(t *testing.T) {
	t.Parallel()

	dead := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})

	router := gin.New()
	router.Use(IdempotencyMiddleware(dead))

	hits := 0
	router.POST("/v1/trips", func(c *gin.Context) { hits++; c.JSON(http.StatusCreated, gin.H{}) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/trips", nil)
		req.Header.Set("Idempotency-Key", "k-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 during cache outage, got %d", w.Code)
		}
	}

	if hits != 2 {
		t.Errorf("expected both requests processed when the cache is down, got %d", hits)
	}
}
