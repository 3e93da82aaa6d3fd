package mw

import (
	"bytes"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"safemaint-backend/internal/events"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache holds cached GET responses. Every flush bumps the
// generation; a response rendered across a flush is not stored.
type ResponseCache struct {
	*cache.Cache
	gen atomic.Uint64
}

// NewResponseCache creates a response cache with the given expiration.
func NewResponseCache(expiration, cleanupInterval time.Duration) *ResponseCache {
	return &ResponseCache{Cache: cache.New(expiration, cleanupInterval)}
}

// Flush drops every cached response.
func (rc *ResponseCache) Flush() {
	rc.gen.Add(1)
	rc.Cache.Flush()
}

// Generation returns the number of flushes so far.
func (rc *ResponseCache) Generation() uint64 {
	return rc.gen.Load()
}

// Cache is a middleware for in-memory caching of GET requests.
func Cache(store *ResponseCache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if resp, found := store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		gen := store.Generation()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses, and only if no write landed
		// while the handler was reading.
		if blw.Status() >= 200 && blw.Status() < 300 && store.Generation() == gen {
			response := cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}
			store.Set(key, response, duration)
		}
	}
}

// FlushOnChange empties store whenever a table changes, so cached reads
// never outlive the data they were built from.
func FlushOnChange(bus *events.Bus, store *ResponseCache) (cancel func()) {
	return bus.Subscribe(func(events.Event) {
		store.Flush()
	})
}
