package audit

import (
	"context"
	"log/slog"
	"time"
)

// RequestIDKey is the context key under which the request-ID middleware
// stores the id, so audit lines can be correlated with request logs.
type RequestIDKey struct{}

// Logger emits an audit trail of circulation mutations: who did what to
// which record. It writes structured log lines rather than a separate store.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID, ok := ctx.Value(RequestIDKey{}).(string); ok {
		requestID = reqID
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLoanCreated(ctx context.Context, userID, loanID string) {
	al.LogAction(ctx, userID, "create", "loan", loanID, "success", "")
}

func (al *Logger) LogBookReturned(ctx context.Context, userID, loanID string) {
	al.LogAction(ctx, userID, "return", "loan", loanID, "success", "")
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
