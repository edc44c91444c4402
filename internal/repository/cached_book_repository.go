package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/infrastructure/redis"
	"github.com/yourorg/circulation/internal/observability/metrics"
	"github.com/yourorg/circulation/internal/reliability/circuitbreaker"
)

const bookCacheTTL = 5 * time.Minute

// CachedBookRepository is a read-through Redis cache in front of another
// BookRepository. Every write path invalidates the cached record before
// delegating, so a cached book can be stale by at most the TTL and never
// survives its own mutation. A circuit breaker keeps a dead Redis from
// slowing the catalog down: while open, reads go straight to the inner store.
type CachedBookRepository struct {
	inner   domain.BookRepository
	redis   *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewCachedBookRepository wraps inner with a Redis read-through cache.
func NewCachedBookRepository(inner domain.BookRepository, redisClient *redis.Client, logger *slog.Logger) *CachedBookRepository {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.New(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("book cache breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &CachedBookRepository{
		inner:   inner,
		redis:   redisClient,
		breaker: breaker,
		logger:  logger,
	}
}

// GetByID serves from Redis when possible, falling back to the inner store.
func (r *CachedBookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	key := bookCacheKey(id)

	if r.breaker.AllowRequest() {
		data, err := r.redis.Get(ctx, key)
		if err == nil {
			var book domain.Book
			if err := json.Unmarshal([]byte(data), &book); err == nil {
				r.breaker.RecordSuccess()
				metrics.ObserveCacheLookup("hit")
				return &book, nil
			}
			// Unreadable entry; drop it and fall through.
			_ = r.redis.Delete(ctx, key)
		} else if redis.IsMiss(err) {
			r.breaker.RecordSuccess()
			metrics.ObserveCacheLookup("miss")
		} else {
			r.breaker.RecordFailure()
			metrics.ObserveCacheLookup("error")
			r.logger.Debug("book cache read failed", slog.Int64("book_id", id), slog.String("error", err.Error()))
		}
	} else {
		metrics.ObserveCacheLookup("bypass")
	}

	book, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.storeInCache(ctx, book)
	return book, nil
}

// Save invalidates the cached record and delegates.
func (r *CachedBookRepository) Save(ctx context.Context, book *domain.Book) error {
	if book.ID != 0 {
		r.invalidate(ctx, book.ID)
	}
	return r.inner.Save(ctx, book)
}

// Delete invalidates the cached record and delegates.
func (r *CachedBookRepository) Delete(ctx context.Context, id int64) error {
	r.invalidate(ctx, id)
	return r.inner.Delete(ctx, id)
}

// List delegates; collection reads are not cached.
func (r *CachedBookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	return r.inner.List(ctx)
}

// ListAvailable delegates; collection reads are not cached.
func (r *CachedBookRepository) ListAvailable(ctx context.Context) ([]*domain.Book, error) {
	return r.inner.ListAvailable(ctx)
}

// SearchByTitle delegates; collection reads are not cached.
func (r *CachedBookRepository) SearchByTitle(ctx context.Context, title string) ([]*domain.Book, error) {
	return r.inner.SearchByTitle(ctx, title)
}

// CompareAndSetAvailable invalidates the cached record before the flip so no
// reader can observe the pre-flip flag after the store has moved on.
func (r *CachedBookRepository) CompareAndSetAvailable(ctx context.Context, id int64, expected, desired bool) error {
	r.invalidate(ctx, id)
	return r.inner.CompareAndSetAvailable(ctx, id, expected, desired)
}

func (r *CachedBookRepository) storeInCache(ctx context.Context, book *domain.Book) {
	if !r.breaker.AllowRequest() {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, bookCacheKey(book.ID), string(data), bookCacheTTL); err != nil {
		r.breaker.RecordFailure()
		r.logger.Debug("book cache write failed", slog.Int64("book_id", book.ID), slog.String("error", err.Error()))
		return
	}
	r.breaker.RecordSuccess()
}

func (r *CachedBookRepository) invalidate(ctx context.Context, id int64) {
	if !r.breaker.AllowRequest() {
		return
	}
	if err := r.redis.Delete(ctx, bookCacheKey(id)); err != nil {
		r.breaker.RecordFailure()
		r.logger.Warn("book cache invalidation failed", slog.Int64("book_id", id), slog.String("error", err.Error()))
		return
	}
	r.breaker.RecordSuccess()
}

func bookCacheKey(id int64) string {
	return fmt.Sprintf("book:%d", id)
}
