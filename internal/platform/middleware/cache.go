package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Cache tags. Writes invalidate the tags whose views they change.
const (
	TagDashboard = "dashboard"
	TagBilling   = "billing"
)

type cacheEntry struct {
	body        []byte
	contentType string
	etag        string
	expiresAt   time.Time
}

// ResponseCache is an in-memory TTL store of rendered GET responses, keyed by
// clinic, tag and URL.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]*cacheEntry // "<clinic>|<tag>" -> url -> entry
	// generations counts invalidations per bucket. A response rendered before
	// an invalidation is never stored.
	generations map[string]uint64
	ttl         time.Duration
	now     func() time.Time
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:     make(map[string]map[string]*cacheEntry),
		generations: make(map[string]uint64),
		ttl:         ttl,
		now:         time.Now,
	}
}

func bucketKey(clinicID uuid.UUID, tag string) string {
	return clinicID.String() + "|" + tag
}

func (s *ResponseCache) get(clinicID uuid.UUID, tag, url string) (*cacheEntry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[bucketKey(clinicID, tag)][url]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries[bucketKey(clinicID, tag)], url)
		s.mu.Unlock()
		return nil, false
	}
	return entry, true
}

func (s *ResponseCache) generation(clinicID uuid.UUID, tag string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[bucketKey(clinicID, tag)]
}

// set stores e unless the bucket was invalidated after gen was read.
func (s *ResponseCache) set(clinicID uuid.UUID, tag, url string, gen uint64, e *cacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := bucketKey(clinicID, tag)
	if s.generations[k] != gen {
		return false
	}
	if s.entries[k] == nil {
		s.entries[k] = make(map[string]*cacheEntry)
	}
	e.expiresAt = s.now().Add(s.ttl)
	s.entries[k][url] = e
	return true
}

// Invalidate drops every cached response of the given tags for one clinic.
func (s *ResponseCache) Invalidate(clinicID uuid.UUID, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		k := bucketKey(clinicID, tag)
		delete(s.entries, k)
		s.generations[k]++
	}
}

// Len reports the number of live entries.
func (s *ResponseCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.entries {
		n += len(b)
	}
	return n
}

// StartCleanup periodically removes expired entries until ctx is cancelled.
func (s *ResponseCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				now := s.now()
				for k, b := range s.entries {
					for url, e := range b {
						if now.After(e.expiresAt) {
							delete(b, url)
						}
					}
					if len(b) == 0 {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// bufferedResponseWriter captures the response so it can be stored before
// being flushed to the client.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        *bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		writer:     w,
		buf:        &bytes.Buffer{},
		statusCode: http.StatusOK,
	}
}

func (w *bufferedResponseWriter) Header() http.Header { return w.writer.Header() }

func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *bufferedResponseWriter) WriteHeader(code int) { w.statusCode = code }

func (w *bufferedResponseWriter) Flush() {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// Cached serves 2xx GET responses for the caller's clinic from store, under
// tag. Requests without a resolved clinic bypass the cache.
func Cached(store *ResponseCache, tag string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			clinicID := auth.ClinicIDFromContext(req.Context())
			if req.Method != http.MethodGet || clinicID == uuid.Nil || store == nil {
				return next(c)
			}

			url := req.URL.RequestURI()
			res := c.Response()

			if entry, ok := store.get(clinicID, tag, url); ok {
				res.Header().Set("X-Cache", "HIT")
				res.Header().Set("ETag", entry.etag)
				if etagMatch(req.Header.Get("If-None-Match"), entry.etag) {
					return c.NoContent(http.StatusNotModified)
				}
				return c.Blob(http.StatusOK, entry.contentType, entry.body)
			}

			gen := store.generation(clinicID, tag)
			origWriter := res.Writer
			buf := newBufferedResponseWriter(origWriter)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if buf.statusCode >= 200 && buf.statusCode < 300 {
				body := append([]byte(nil), buf.buf.Bytes()...)
				etag := computeETag(body)
				store.set(clinicID, tag, url, gen, &cacheEntry{
					body:        body,
					contentType: res.Header().Get(echo.HeaderContentType),
					etag:        etag,
				})
				res.Header().Set("ETag", etag)
			}
			res.Header().Set("X-Cache", "MISS")
			return buf.flushTo()
		}
	}
}

// computeETag returns a weak ETag based on the MD5 hash of the body.
func computeETag(body []byte) string {
	hash := md5.Sum(body)
	return fmt.Sprintf(`W/"%x"`, hash)
}

// etagMatch supports comma-separated lists, the wildcard and weak tags.
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "" {
		return false
	}
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
