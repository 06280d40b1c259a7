package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/covenant-network/option-layer/internal/app/auth"
)

// exempt paths never require a session token.
func authExempt(path string) bool {
	switch path {
	case "/healthz", "/metrics", "/login":
		return true
	}
	return false
}

// wrapWithAuth validates the bearer token and stamps the verified subject as
// the sender identity. A nil manager disables authentication; the client's
// own X-Sender header is trusted (local development only).
func wrapWithAuth(next http.Handler, manager *auth.Manager) http.Handler {
	if manager == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
			return
		}

		principal, err := manager.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		// never trust a client-supplied sender once auth is on
		r.Header.Set(senderHeader, principal.Subject)
		next.ServeHTTP(w, r)
	})
}

func loginHandler(manager *auth.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		token, err := manager.Authenticate(payload.Username, payload.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// SenderLimiter applies a token bucket per sender identity and evicts idle
// entries on the fly.
type SenderLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSenderLimiter creates a per-sender limiter; returns nil (no limiting)
// when the arguments are not positive.
func NewSenderLimiter(perSec float64, burst int) *SenderLimiter {
	if perSec <= 0 || burst <= 0 {
		return nil
	}
	return &SenderLimiter{
		limit:   rate.Limit(perSec),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byKey:   make(map[string]*limiterEntry),
	}
}

// Allow reports whether one request can be admitted for the key.
func (l *SenderLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now

	for k, other := range l.byKey {
		if now.Sub(other.lastSeen) > l.idleTTL {
			delete(l.byKey, k)
		}
	}
	return e.limiter.Allow()
}

func wrapWithRateLimit(next http.Handler, limiter *SenderLimiter) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow(sender(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
