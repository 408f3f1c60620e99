package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	PageCachePrefix = "widgy:page-cache:"
	pageCacheHeader = "x-widgy-cache"

	defaultHTTPCacheTTL     = 15 * time.Second
	defaultHTTPCacheMaxBody = 1 << 20
)

type HTTPCacheOptions struct {
	TTL          time.Duration
	Disable      bool
	MaxBodyBytes int
}

// pageRecorder keeps a copy of the rendered page while it is written out.
type pageRecorder struct {
	gin.ResponseWriter
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *pageRecorder) Write(b []byte) (int, error) {
	w.record(b)
	return w.ResponseWriter.Write(b)
}

func (w *pageRecorder) WriteString(s string) (int, error) {
	w.record([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *pageRecorder) record(b []byte) {
	if w.overflow {
		return
	}
	if w.body.Len()+len(b) > w.limit {
		w.overflow = true
		w.body.Reset()
		return
	}
	w.body.Write(b)
}

// HTTPCache serves rendered pages to anonymous visitors from a redis hash.
// Editors and requests carrying a cache-busting timestamp get a fresh render.
func HTTPCache(rdb *redis.Client, opts HTTPCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultHTTPCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultHTTPCacheMaxBody
	}
	return func(c *gin.Context) {
		if opts.Disable || rdb == nil || c.Request.Method != http.MethodGet ||
			IsAuthenticated(c) || bustsCache(c) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := PageCachePrefix + c.Request.URL.RequestURI()
		if page, err := rdb.HGetAll(ctx, key).Result(); err == nil && page["body"] != "" {
			contentType := page["type"]
			if contentType == "" {
				contentType = "text/html; charset=utf-8"
			}
			c.Header(pageCacheHeader, "hit")
			c.Data(http.StatusOK, contentType, []byte(page["body"]))
			c.Abort()
			return
		}

		w := &pageRecorder{ResponseWriter: c.Writer, limit: opts.MaxBodyBytes}
		c.Writer = w
		c.Next()

		if w.overflow || w.body.Len() == 0 || !cacheable(w.Status(), w.Header()) {
			return
		}
		_, _ = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, "type", w.Header().Get("Content-Type"), "body", w.body.String())
			p.Expire(ctx, key, opts.TTL)
			return nil
		})
	}
}

// PurgeOnWrite drops every cached page after a successful mutating request.
func PurgeOnWrite(rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()
		if rdb == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		n, err := PurgeHTTPCache(c.Request.Context(), rdb)
		if err != nil {
			log.Warn("purge page cache", zap.Error(err))
			return
		}
		if n > 0 {
			log.Debug("page cache purged", zap.Int64("pages", n), zap.String("path", c.FullPath()))
		}
	}
}

// PurgeHTTPCache deletes every cached page and returns how many were dropped.
func PurgeHTTPCache(ctx context.Context, rdb *redis.Client) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	var deleted int64
	iter := rdb.Scan(ctx, 0, PageCachePrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		n, err := rdb.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, iter.Err()
}

func bustsCache(c *gin.Context) bool {
	q := c.Request.URL.Query()
	for _, key := range []string{"ts", "timestamp", "_t", "t"} {
		if strings.TrimSpace(q.Get(key)) != "" {
			return true
		}
	}
	return false
}

func cacheable(status int, h http.Header) bool {
	if status != http.StatusOK {
		return false
	}
	cc := strings.ToLower(h.Get("Cache-Control"))
	for _, directive := range []string{"no-cache", "no-store", "private"} {
		if strings.Contains(cc, directive) {
			return false
		}
	}
	return true
}
