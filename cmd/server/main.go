package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/circulation/internal/activity"
	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/featureflags"
	"github.com/yourorg/circulation/internal/handler"
	"github.com/yourorg/circulation/internal/infrastructure/logger"
	"github.com/yourorg/circulation/internal/infrastructure/redis"
	"github.com/yourorg/circulation/internal/observability/metrics"
	"github.com/yourorg/circulation/internal/observability/tracing"
	"github.com/yourorg/circulation/internal/reliability/retry"
	"github.com/yourorg/circulation/internal/repository"
	"github.com/yourorg/circulation/internal/security"
	"github.com/yourorg/circulation/internal/security/audit"
	"github.com/yourorg/circulation/internal/security/auth"
	"github.com/yourorg/circulation/internal/security/middleware"
	"github.com/yourorg/circulation/internal/security/ratelimit"
	"github.com/yourorg/circulation/internal/service"
	"github.com/yourorg/circulation/internal/worker"
	"github.com/yourorg/circulation/pkg/cache"
	"github.com/yourorg/circulation/pkg/config"
	"github.com/yourorg/circulation/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting circulation server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, "circulation", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Postgres comes up slower than the app in most deployments, so connect
	// with backoff instead of crash-looping.
	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect postgres",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &database.Config{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				User:     cfg.DBUser,
				Password: cfg.DBPassword,
				Database: cfg.DBName,
				SSLMode:  cfg.DBSSLMode,
			}, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories.
	var bookRepo domain.BookRepository = repository.NewPostgresBookRepository(pool.GetDB(), log)
	memberRepo := repository.NewPostgresMemberRepository(pool.GetDB(), log)
	loanRepo := repository.NewPostgresLoanRepository(pool.GetDB(), log)
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)

	// Redis is optional: without it the book reads go straight to Postgres.
	var redisClient *redis.Client
	if cfg.RedisURL != "" && !featureflags.Enabled("disable_book_cache") {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, book cache disabled", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			bookRepo = repository.NewCachedBookRepository(bookRepo, redisClient, log)
			log.Info("book cache enabled")
		}
	}

	// Services.
	hub := activity.NewHub(log)
	bookService := service.NewBookService(bookRepo, cache.New(), log)
	memberService := service.NewMemberService(memberRepo, log)
	loanService := service.NewLoanService(bookRepo, memberRepo, loanRepo, hub, log, nil)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "circulation")
	authService := service.NewAuthService(userRepo, tokenManager, log)
	authzService := security.NewAuthorizationService(log)

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer rateLimiter.Stop()
	auditLogger := audit.NewLogger(log)

	// Handlers.
	bookHandler := handler.NewBookHandler(bookService, authzService, log)
	memberHandler := handler.NewMemberHandler(memberService, authzService, log)
	loanHandler := handler.NewLoanHandler(loanService, log)
	authHandler := handler.NewAuthHandler(authService, rateLimiter, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)
	activityHandler := handler.NewActivityHandler(hub, log, cfg.CORSAllowedOrigins)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.HandleFunc("POST /api/register", authHandler.Register)
	mux.HandleFunc("POST /api/users/password", authHandler.ChangePassword)

	mux.HandleFunc("GET /api/books", bookHandler.List)
	mux.HandleFunc("GET /api/books/available", bookHandler.Available)
	mux.HandleFunc("GET /api/books/{id}", bookHandler.Get)
	mux.HandleFunc("POST /api/books", bookHandler.Create)
	mux.HandleFunc("PUT /api/books/{id}", bookHandler.Update)
	mux.HandleFunc("DELETE /api/books/{id}", bookHandler.Delete)
	mux.HandleFunc("GET /api/books/{id}/loans", loanHandler.BookLoans)

	mux.HandleFunc("GET /api/members", memberHandler.List)
	mux.HandleFunc("GET /api/members/{id}", memberHandler.Get)
	mux.HandleFunc("POST /api/members", memberHandler.Create)
	mux.HandleFunc("PUT /api/members/{id}", memberHandler.Update)
	mux.HandleFunc("DELETE /api/members/{id}", memberHandler.Delete)
	mux.HandleFunc("GET /api/members/{id}/loans", loanHandler.MemberLoans)

	mux.HandleFunc("POST /api/loans", loanHandler.Create)
	mux.HandleFunc("GET /api/loans", loanHandler.List)
	mux.HandleFunc("GET /api/loans/active", loanHandler.Active)
	mux.HandleFunc("GET /api/loans/overdue", loanHandler.Overdue)
	mux.HandleFunc("GET /api/loans/{id}", loanHandler.Get)
	mux.HandleFunc("PUT /api/loans/{id}/return", loanHandler.Return)

	mux.Handle("GET /ws/activity", activityHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// CORS honoring configured origins.
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain: request ID -> metrics -> JWT -> rate limit -> audit -> body
	// validation -> CORS -> mux, the whole thing wrapped for tracing. JWT
	// runs before rate limiting and audit so both can key on the account.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(tokenManager, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(
						middleware.ValidateJSONContentType(log)(handlerWithCORS),
					),
				),
			),
		),
		log,
	)
	tracedHandler := otelhttp.NewHandler(rootHandler, "circulation.http")

	if !featureflags.Enabled("disable_stats_worker") {
		statsWorker := worker.NewStatsWorker(loanRepo, log, cfg.StatsInterval)
		go statsWorker.Start(ctx)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      tracedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for
// traceability. The audit logger reads it back out of the context.
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), audit.RequestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
