package middleware

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yourorg/circulation/internal/security/audit"
	"github.com/yourorg/circulation/internal/security/auth"
	"github.com/yourorg/circulation/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// isPublic reports whether a request needs no staff token. Reads are open to
// anyone; every mutation goes through JWT. OPTIONS is public so CORS
// preflights reach the CORS handler without an Authorization header.
func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/api/login", "/api/register", "/ws/activity":
		return true
	}
	return r.Method == http.MethodGet || r.Method == http.MethodOptions
}

// JWTMiddleware validates the bearer token on non-public requests and stores
// the claims in the request context.
func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("token rejected", slog.String("error", err.Error()))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware throttles mutating requests per staff account, falling
// back to the remote address for anonymous ones.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				key = claims.UserID
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records the outcome of circulation mutations and of
// rejected requests.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}

			rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			switch {
			case rec.status == http.StatusUnauthorized || rec.status == http.StatusForbidden:
				auditLog.LogDenied(r.Context(), userID, http.StatusText(rec.status))
			case rec.status >= http.StatusBadRequest:
			case r.Method == http.MethodPost && r.URL.Path == "/api/loans":
				auditLog.LogLoanCreated(r.Context(), userID, "")
			case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/return"):
				auditLog.LogBookReturned(r.Context(), userID, loanIDFromReturnPath(r.URL.Path))
			case r.Method == http.MethodDelete:
				auditLog.LogAction(r.Context(), userID, "delete", resourceFromPath(r.URL.Path), "", "success", "")
			}
		})
	}
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *auditRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// loanIDFromReturnPath extracts {id} from /api/loans/{id}/return.
func loanIDFromReturnPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "/api/loans/"), "/return")
	if strings.Contains(trimmed, "/") {
		return ""
	}
	return trimmed
}

func resourceFromPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/books"):
		return "book"
	case strings.HasPrefix(path, "/api/members"):
		return "member"
	default:
		return "api"
	}
}

// GetClaimsFromContext returns the validated claims, or nil.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
