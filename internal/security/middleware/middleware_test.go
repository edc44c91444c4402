package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/circulation/internal/security/audit"
	"github.com/yourorg/circulation/internal/security/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The CORS handler sits inside the JWT gate, so preflights must be treated as
// public or a browser can never reach a mutating endpoint cross-origin.
func TestJWTMiddlewareLetsPreflightThrough(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "circulation")

	cors := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTMiddleware(tm, discardLogger())(cors)

	for _, path := range []string{"/api/books", "/api/members", "/api/loans", "/api/loans/7/return"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code, "preflight for %s must bypass the token check", path)
		assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestJWTMiddlewareStillGuardsMutations(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "circulation")
	handler := JWTMiddleware(tm, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "reads stay open")
}

func TestAuditMiddlewareRecordsOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		status int
		want   []string
	}{
		{
			name:   "loan created",
			method: http.MethodPost,
			path:   "/api/loans",
			status: http.StatusCreated,
			want:   []string{`"action":"create"`, `"resource":"loan"`, `"status":"success"`},
		},
		{
			name:   "book returned",
			method: http.MethodPut,
			path:   "/api/loans/42/return",
			status: http.StatusOK,
			want:   []string{`"action":"return"`, `"resource_id":"42"`, `"status":"success"`},
		},
		{
			name:   "book deleted",
			method: http.MethodDelete,
			path:   "/api/books/3",
			status: http.StatusNoContent,
			want:   []string{`"action":"delete"`, `"resource":"book"`},
		},
		{
			name:   "denied request",
			method: http.MethodPost,
			path:   "/api/register",
			status: http.StatusForbidden,
			want:   []string{`"action":"access_denied"`, `"status":"denied"`, `"details":"Forbidden"`},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			auditLog := audit.NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

			handler := AuditMiddleware(auditLog)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))

			require.Equal(t, tc.status, rr.Code)
			for _, fragment := range tc.want {
				assert.Contains(t, buf.String(), fragment)
			}
		})
	}
}

func TestAuditMiddlewareSkipsFailedMutations(t *testing.T) {
	var buf bytes.Buffer
	auditLog := audit.NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	handler := AuditMiddleware(auditLog)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/loans", nil))

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, buf.String(), "a rejected mutation leaves no success line")
}
