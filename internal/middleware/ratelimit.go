package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-auth-service/internal/logger"
	"go-auth-service/pkg/apierror"
)

// Policy allows Max requests per Window for each client IP.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

type rateRecorder interface {
	RateLimited(policy string)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	policy   Policy
	recorder rateRecorder
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	now      func() time.Time
}

func NewRateLimiter(policy Policy, recorder rateRecorder) *RateLimiter {
	if policy.Max <= 0 {
		policy.Max = 100
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}

	return &RateLimiter{
		policy:   policy,
		recorder: recorder,
		clients:  map[string]*clientLimiter{},
		now:      time.Now,
	}
}

func (m *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		reservation := m.getLimiter(ip).ReserveN(m.now(), 1)

		if delay := reservation.DelayFrom(m.now()); delay > 0 {
			reservation.CancelAt(m.now())
			if m.recorder != nil {
				m.recorder.RateLimited(m.policy.Name)
			}
			logRateLimited(r, m.policy.Name, ip)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeError(w, apierror.New(apierror.CodeRateLimited, "Too many requests, please try again later", "", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimiter) getLimiter(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry, exists := m.clients[ip]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	m.gcLocked(now)
	limiter := rate.NewLimiter(rate.Every(m.policy.Window/time.Duration(m.policy.Max)), m.policy.Max)
	m.clients[ip] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// gcLocked drops clients idle for longer than a full window once the table
// grows large. Callers hold m.mu.
func (m *RateLimiter) gcLocked(now time.Time) {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := now.Add(-m.policy.Window)
	for ip, entry := range m.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func logRateLimited(r *http.Request, policy string, ip string) {
	logger.FromContext(r.Context()).WarnContext(r.Context(), "rate limit exceeded",
		slog.String("policy", policy),
		slog.String("ip", ip),
	)
}

type clientIPKey struct{}

// TrustProxy resolves the client address once per request. With hops == 0
// forwarding headers are ignored. Otherwise the hops-th X-Forwarded-For entry
// counted from the right is used, because only entries appended by our own
// proxies are trustworthy.
func TrustProxy(hops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, hops)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
		})
	}
}

// ClientIP returns the address resolved by TrustProxy, or the socket peer
// when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func resolveClientIP(r *http.Request, hops int) string {
	if hops <= 0 {
		return remoteHost(r)
	}

	var entries []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(value, ",") {
			entries = append(entries, strings.TrimSpace(part))
		}
	}

	// fewer entries than proxies means the chain is not the one we expect
	if len(entries) < hops {
		return remoteHost(r)
	}

	candidate := entries[len(entries)-hops]
	if net.ParseIP(candidate) == nil {
		return remoteHost(r)
	}
	return candidate
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}
