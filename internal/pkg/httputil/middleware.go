package httputil

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/subledger/internal/pkg/ctxlog"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// SignerKey stores the authenticated signer's base58 public key.
const SignerKey contextKey = "signer"

// TokenValidator interface for validating tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (signer string, err error)
}

// AuthMiddleware creates authentication middleware. A valid bearer token
// proves control of the signer key named in its subject.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				Error(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			signer, err := validator.ValidateToken(r.Context(), parts[1])
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SignerKey, signer)
			ctx = ctxlog.With(ctx, "signer", signer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSigner extracts the signer public key from context.
func GetSigner(ctx context.Context) string {
	if signer, ok := ctx.Value(SignerKey).(string); ok {
		return signer
	}
	return ""
}

// RequireSigner returns the signer of the request or writes 401.
func RequireSigner(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	signer, err := solana.PublicKeyFromBase58(GetSigner(r.Context()))
	if err != nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return solana.PublicKey{}, false
	}
	return signer, true
}

// PeerAddrMiddleware records the TCP peer host of the request. It must run
// before middleware.RealIP, which rewrites RemoteAddr from client headers.
func PeerAddrMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey, hostOf(r.RemoteAddr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerAddr returns the host recorded by PeerAddrMiddleware, or the host of
// RemoteAddr when the middleware did not run.
func PeerAddr(r *http.Request) string {
	if host, ok := r.Context().Value(peerAddrKey).(string); ok {
		return host
	}
	return hostOf(r.RemoteAddr)
}

const peerAddrKey contextKey = "peer_addr"

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// limiterIdleTTL is how long an unused client limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	clients map[string]*clientLimiter
}

func newClientLimiters(limit rate.Limit, burst int, idle time.Duration, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     now,
		clients: make(map[string]*clientLimiter),
	}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	cl, ok := c.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (c *clientLimiters) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *clientLimiters) sweepLocked(now time.Time) {
	for key, cl := range c.clients {
		if now.Sub(cl.lastSeen) >= c.idle {
			delete(c.clients, key)
		}
	}
}

// RateLimitMiddleware limits requests per TCP peer. Forwarded headers are
// ignored when PeerAddrMiddleware runs ahead of middleware.RealIP.
func RateLimitMiddleware(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	return rateLimit(newClientLimiters(limit, burst, limiterIdleTTL, time.Now))
}

func rateLimit(clients *clientLimiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !clients.allow(PeerAddr(r)) {
				Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
