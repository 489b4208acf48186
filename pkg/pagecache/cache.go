// Package pagecache keeps rendered GET responses keyed by path until the path is revalidated.
package pagecache

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
)

type entry struct {
	header   http.Header
	body     []byte
	storedAt time.Time
}

// Cache holds responses per path. Each path can have several variants, for example one per
// user, and RevalidatePath drops all of them.
type Cache struct {
	mu      sync.Mutex
	entries map[string]map[string]entry
	// gens counts revalidations per path. A render only lands if none happened while it ran.
	gens map[string]uint64
	ttl  time.Duration
	now  func() time.Time
}

type Option func(*Cache)

// WithTTL expires entries after d even when nothing revalidates them. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{entries: map[string]map[string]entry{}, gens: map[string]uint64{}, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) get(path, variant string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path][variant]
	if !ok {
		return entry{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries[path], variant)
		return entry{}, false
	}
	return e, true
}

func (c *Cache) generation(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[path]
}

// put stores e unless path was revalidated after gen was read.
func (c *Cache) put(path, variant string, gen uint64, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[path] != gen {
		return
	}
	if c.entries[path] == nil {
		c.entries[path] = map[string]entry{}
	}
	e.storedAt = c.now()
	c.entries[path][variant] = e
}

// RevalidatePath drops every cached variant of path.
func (c *Cache) RevalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	c.gens[path]++
}

// Len is the number of cached variants across all paths.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.entries {
		n += len(v)
	}
	return n
}

// Middleware serves GET requests from the cache and stores successful responses. variant picks
// the cache slot within a path; it may be nil when responses do not vary.
func (c *Cache) Middleware(variant func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.Method != http.MethodGet {
				next.ServeHTTP(writer, request)
				return
			}
			path := request.URL.Path
			var v string
			if variant != nil {
				v = variant(request)
			}
			if e, ok := c.get(path, v); ok {
				for k, values := range e.header {
					writer.Header()[k] = values
				}
				writer.Header().Set("X-Cache", "HIT")
				writer.WriteHeader(http.StatusOK)
				_, _ = writer.Write(e.body)
				return
			}

			gen := c.generation(path)
			status := http.StatusOK
			var body bytes.Buffer
			wrapped := httpsnoop.Wrap(writer, httpsnoop.Hooks{
				WriteHeader: func(inner httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						status = code
						inner(code)
					}
				},
				Write: func(inner httpsnoop.WriteFunc) httpsnoop.WriteFunc {
					return func(b []byte) (int, error) {
						body.Write(b)
						return inner(b)
					}
				},
			})
			writer.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(wrapped, request)
			if status == http.StatusOK {
				header := writer.Header().Clone()
				header.Del("X-Cache")
				c.put(path, v, gen, entry{header: header, body: bytes.Clone(body.Bytes())})
			}
		})
	}
}
