package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotencePrefix = "widgy:idempotence:"
	idempotenceTTL    = 60 * time.Second

	postRunning = "running"
	postDone    = "done"
)

// Idempotence guards form posts against double submission. The first request
// carrying a key claims it; repeats get 409 while it runs and until the key
// expires after it succeeded. A failed request releases the key.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key, ok := idempotenceKey(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		claimed, err := rdb.SetNX(ctx, key, postRunning, idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			msg := "identical submission already accepted, retry later"
			if state, _ := rdb.Get(ctx, key).Result(); state == postRunning {
				msg = "identical submission is still being processed"
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		// A redirect answer is a successful submission too.
		if status := c.Writer.Status(); status >= 200 && status < 400 {
			rdb.Set(ctx, key, postDone, redis.KeepTTL)
		} else {
			rdb.Del(ctx, key)
		}
	}
}

// idempotenceKey is the client's x-idempotence header, or a fingerprint of
// the route, body and client.
func idempotenceKey(c *gin.Context) (string, bool) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return idempotencePrefix + hdr, true
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	h := sha256.New()
	for _, part := range []string{c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Request.UserAgent(), extractToken(c)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return idempotencePrefix + hex.EncodeToString(h.Sum(nil)), true
}
