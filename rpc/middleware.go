package rpc

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eth2030/ethlayer/log"
)

// HTTPMiddleware wraps an http.Handler.
type HTTPMiddleware func(http.Handler) http.Handler

// MiddlewareChain applies middlewares so that the first one is outermost.
func MiddlewareChain(handler http.Handler, middlewares ...HTTPMiddleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// HTTPConfig configures the HTTP front of a Server.
type HTTPConfig struct {
	// CORSOrigins lists the origins browsers may call from. "*" allows any.
	// Empty disables CORS headers.
	CORSOrigins []string
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit float64
	// RateBurst is the bucket size per client. Values below one use one.
	RateBurst int
}

// HTTPHandler returns the server's handler wrapped in request logging,
// CORS and per-client rate limiting.
func (s *Server) HTTPHandler(cfg HTTPConfig) http.Handler {
	mws := []HTTPMiddleware{LoggingMiddleware(log.Default().Module("http"))}
	if len(cfg.CORSOrigins) > 0 {
		mws = append(mws, CORSMiddleware(cfg.CORSOrigins))
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	return MiddlewareChain(s.Handler(), mws...)
}

const corsMaxAge = 600

// CORSMiddleware sets CORS headers for allowed origins and answers
// preflight requests.
func CORSMiddleware(origins []string) HTTPMiddleware {
	anyOrigin := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.ToLower(o)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || allowed[strings.ToLower(origin)]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for WebSocket
// upgrades.
func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(lg *log.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			lg.Debug("Served HTTP request", "method", r.Method, "path", r.URL.Path,
				"status", rec.status, "remote", r.RemoteAddr, "elapsed", time.Since(start))
		})
	}
}

// clientLimiters hands out one token bucket per client address. Buckets
// idle for longer than limiterIdle are dropped on the next sweep.
type clientLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 3 * time.Minute

func (c *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) > limiterIdle {
		for k, v := range c.clients {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}
	cl, ok := c.clients[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(c.limit, c.burst)}
		c.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.lim
}

// RateLimitMiddleware rejects requests with 429 once a client exceeds rps
// requests per second beyond its burst.
func RateLimitMiddleware(rps float64, burst int) HTTPMiddleware {
	limiters := &clientLimiters{
		limit:     rate.Limit(rps),
		burst:     max(burst, 1),
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(clientIP(r), time.Now()).Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the first X-Forwarded-For entry, then X-Real-IP, then
// the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
