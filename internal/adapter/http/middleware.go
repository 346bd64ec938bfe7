package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/ports"
	apperror "github.com/fixora/triage/pkg/error"
)

const CorrelationIDHeader = "X-Correlation-ID"

// correlationMiddleware ensures every request and response carries a correlation ID
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), cid)))
	})
}

// corsMiddleware allows the listed origins; "*" allows any
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	_, wildcard := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			if origin != "" {
				if _, ok := allowed[origin]; ok || wildcard {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Expose-Headers", CorrelationIDHeader+", Content-Disposition")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				} else {
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CorrelationIDHeader)
				}
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware writes one structured entry per request
func loggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info(r.Context(), "HTTP request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"ip":          remoteIP(r),
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

// RateLimitMiddleware limits how often one client may trigger a cycle
type RateLimitMiddleware struct {
	limiter ports.RateLimiter
	limit   int
	window  time.Duration
	clients *ClientIPResolver
	logger  logger.Logger
}

// NewRateLimitMiddleware creates the cycle guard. clients may be nil, in which
// case forwarding headers are ignored.
func NewRateLimitMiddleware(limiter ports.RateLimiter, limit int, window time.Duration, clients *ClientIPResolver, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, limit: limit, window: window, clients: clients, logger: log}
}

// RateLimit guards next. Limiter failures let the request through.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := m.clients.ClientIP(r)
		key := fmt.Sprintf("refresh:ip:%s", clientIP)

		allowed, err := m.limiter.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.logger.Warn(ctx, "Rate limit exceeded", map[string]interface{}{
				"ip":    clientIP,
				"path":  r.URL.Path,
				"limit": m.limit,
			})
			w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
			writeErrorResponse(w, apperror.ErrTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIPResolver finds the client address of a request. Forwarding headers
// are read only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses trusted proxies given as addresses or CIDR ranges
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	c := &ClientIPResolver{}
	for _, p := range trustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
			}
			c.trusted = append(c.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return c, nil
}

// ClientIP returns the client address of r. Behind trusted proxies it is the
// right-most X-Forwarded-For hop that is not itself a trusted proxy. A nil
// resolver trusts nobody.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !c.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !c.trusts(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (c *ClientIPResolver) trusts(ip string) bool {
	if c == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteIP is the address of the direct peer
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recoveryLogger feeds gorilla/handlers panic reports into the structured logger
type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error(context.Background(), "Panic recovered", fmt.Errorf("%s", fmt.Sprint(v...)), nil)
}
