package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/bnb-chain/verivid-hub/restapi/handlers"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.RemoteAddr = "192.0.2.1:5123"
	require.Equal(t, "192.0.2.1", clientIP(r, nil))

	// a direct client cannot pick its own bucket
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "192.0.2.1", clientIP(r, nil))
	require.Equal(t, "192.0.2.1", clientIP(r, newProxySet([]string{"10.0.0.0/8"})))

	r.RemoteAddr = "10.0.0.2:5123"
	proxies := newProxySet([]string{"10.0.0.0/8"})
	require.Equal(t, "203.0.113.9", clientIP(r, proxies))

	// hops prepended by the client are ignored
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", clientIP(r, proxies))

	r.Header.Del("X-Forwarded-For")
	require.Equal(t, "10.0.0.2", clientIP(r, proxies))
}

func TestProxySet(t *testing.T) {
	proxies := newProxySet([]string{"127.0.0.1", "10.0.0.0/8", "::1", "not-an-ip"})
	require.Len(t, proxies, 3)
	require.True(t, proxies.trusts("127.0.0.1"))
	require.True(t, proxies.trusts("10.20.30.40"))
	require.True(t, proxies.trusts("::1"))
	require.False(t, proxies.trusts("127.0.0.2"))
	require.False(t, proxies.trusts("garbage"))
}

func TestSessionToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	require.Empty(t, sessionToken(r))

	r.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: "from-cookie"})
	require.Equal(t, "from-cookie", sessionToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", sessionToken(r))
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := rateLimitMiddleware(newIPRateLimiter(rate.Every(1<<62), 2, maxTrackedClients), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	serve := func(ip, forwarded string) int {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = ip + ":1000"
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, r)
		return w.Code
	}
	require.Equal(t, http.StatusOK, serve("192.0.2.1", ""))
	require.Equal(t, http.StatusOK, serve("192.0.2.1", ""))
	require.Equal(t, http.StatusTooManyRequests, serve("192.0.2.1", ""))
	require.Equal(t, http.StatusTooManyRequests, serve("192.0.2.1", "198.51.100.77"))
	require.Equal(t, http.StatusOK, serve("192.0.2.2", ""))
}

func TestRateLimiterEvictsLeastRecentClient(t *testing.T) {
	rl := newIPRateLimiter(rate.Every(1<<62), 1, 2)
	first := rl.getLimiter("192.0.2.1")
	require.True(t, first.Allow())
	rl.getLimiter("192.0.2.2")
	rl.getLimiter("192.0.2.3")
	require.Equal(t, 2, rl.limiters.Len())

	// the evicted client starts over with a fresh bucket
	again := rl.getLimiter("192.0.2.1")
	require.NotSame(t, first, again)
	require.True(t, again.Allow())
	require.Equal(t, 2, rl.limiters.Len())
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "internal_error")
}
