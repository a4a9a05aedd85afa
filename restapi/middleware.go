package restapi

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/restapi/handlers"
	"github.com/bnb-chain/verivid-hub/service"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// maxTrackedClients bounds the buckets kept per limiter, the least recently seen ip is evicted first.
const maxTrackedClients = 10000

// ipRateLimiter keeps one token bucket per client ip.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(r rate.Limit, b int, size int) *ipRateLimiter {
	limiters, err := lru.New(size)
	if err != nil {
		panic(fmt.Sprintf("failed to create rate limiter cache, err=%s", err.Error()))
	}
	return &ipRateLimiter{
		limiters: limiters,
		rate:     r,
		burst:    b,
	}
}

func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	if limiter, ok := i.limiters.Get(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(i.rate, i.burst)
	i.limiters.Add(ip, limiter)
	return limiter
}

// proxySet holds the peers allowed to report the client ip in X-Forwarded-For.
type proxySet []*net.IPNet

func newProxySet(entries []string) proxySet {
	proxies := make(proxySet, 0, len(entries))
	for _, entry := range entries {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			proxies = append(proxies, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logging.Logger.Errorf("ignore invalid trusted proxy, proxy=%s", entry)
			continue
		}
		bits := 8 * net.IPv4len
		if ip.To4() == nil {
			bits = 8 * net.IPv6len
		} else {
			ip = ip.To4()
		}
		proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return proxies
}

func (p proxySet) trusts(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range p {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP is the tcp peer, unless the peer is a trusted proxy. Behind trusted proxies the client is
// the right most X-Forwarded-For hop that is not itself a trusted proxy.
func clientIP(r *http.Request, proxies proxySet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !proxies.trusts(host) {
		return host
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return host
	}
	hops := strings.Split(forwarded, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if i == 0 || !proxies.trusts(hop) {
			return hop
		}
	}
	return host
}

func rateLimitMiddleware(rl *ipRateLimiter, proxies proxySet) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.getLimiter(clientIP(r, proxies)).Allow() {
				handlers.Respond(w, nil, service.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionToken reads the bearer token, falling back to the session cookie.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(handlers.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func authMiddleware(auth service.Auth) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				handlers.Respond(w, nil, service.ErrInvalidSession.Enrich("missing session"))
				return
			}
			identity, err := auth.ResolveSession(r.Context(), token)
			if err != nil {
				handlers.Respond(w, nil, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(r.Context(), identity)))
		})
	}
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger.Errorf("panic serving %s %s, err=%v", r.Method, r.URL.Path, rec)
				handlers.Respond(w, nil, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		logging.Logger.Debugf("%s %s status=%d cost=%s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
