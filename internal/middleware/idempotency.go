package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// Replays are retained long enough to cover a school day of retries.
	idempotencyTTL = 24 * time.Hour
)

// storedReply is the replayable part of a completed mutation.
type storedReply struct {
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	ContentType string          `json:"content_type,omitempty"`
}

// captureWriter tees the response body so the mutation's outcome can be
// replayed for a retried key.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the recorded response when a mutating request
// carries an Idempotency-Key seen within the retention window. Trip starts,
// boarding taps and report submissions retried over a flaky bus connection
// thus land exactly once. Keys are scoped to method and path, so reusing a
// key against a different endpoint never replays a foreign response.
func IdempotencyMiddleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		replay := replayKey(c.Request.Method, c.Request.URL.Path, key)

		// A Redis failure degrades to processing the request normally.
		if reply, err := loadReply(ctx, rdb, replay); err == nil && reply != nil {
			ct := reply.ContentType
			if ct == "" {
				ct = "application/json"
			}
			c.Data(reply.Status, ct, reply.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// 5xx outcomes are not recorded: the client should retry for real.
		if status := c.Writer.Status(); status >= 200 && status < 500 {
			saveReply(context.WithoutCancel(ctx), rdb, replay, &storedReply{
				Status:      status,
				Body:        w.body.Bytes(),
				ContentType: c.Writer.Header().Get("Content-Type"),
			})
		}
	}
}

func replayKey(method, path, key string) string {
	return "idempotency:" + method + ":" + path + ":" + key
}

func loadReply(ctx context.Context, rdb *redis.Client, key string) (*storedReply, error) {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var reply storedReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func saveReply(ctx context.Context, rdb *redis.Client, key string, reply *storedReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	_ = rdb.Set(ctx, key, data, idempotencyTTL).Err()
}
