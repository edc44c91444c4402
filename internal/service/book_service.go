package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/pkg/cache"
)

// searchCacheTTL bounds how stale a cached title search may get before the
// catalog is queried again.
const searchCacheTTL = 30 * time.Second

// BookService handles catalog CRUD. It never touches the availability flag;
// that belongs to the loan service.
type BookService struct {
	books       domain.BookRepository
	searchCache *cache.Cache
	logger      *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(books domain.BookRepository, searchCache *cache.Cache, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		books:       books,
		searchCache: searchCache,
		logger:      logger,
	}
}

// BookInput carries the mutable fields of a book.
type BookInput struct {
	Title  string
	Author string
	Genre  string
}

func (in BookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(in.Author) == "" {
		return fmt.Errorf("author is required")
	}
	if strings.TrimSpace(in.Genre) == "" {
		return fmt.Errorf("genre is required")
	}
	return nil
}

// ListBooks returns the whole catalog.
func (s *BookService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.books.List(ctx)
}

// GetBook returns one book, or ErrBookNotFound.
func (s *BookService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	return s.books.GetByID(ctx, id)
}

// CreateBook adds a book to the catalog. New books are always available.
func (s *BookService) CreateBook(ctx context.Context, in BookInput) (*domain.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:     in.Title,
		Author:    in.Author,
		Genre:     in.Genre,
		Available: true,
	}
	if err := s.books.Save(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.invalidateSearches()
	s.logger.Info("book created", slog.Int64("book_id", book.ID), slog.String("title", book.Title))
	return book, nil
}

// UpdateBook replaces title, author and genre. Availability is untouched.
func (s *BookService) UpdateBook(ctx context.Context, id int64, in BookInput) (*domain.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	book.Title = in.Title
	book.Author = in.Author
	book.Genre = in.Genre

	if err := s.books.Save(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.invalidateSearches()
	s.logger.Info("book updated", slog.Int64("book_id", id))
	return book, nil
}

// DeleteBook removes a book. Loan history referencing the book is left in
// place; the ledger stores ids, not embedded copies.
func (s *BookService) DeleteBook(ctx context.Context, id int64) error {
	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSearches()
	s.logger.Info("book deleted", slog.Int64("book_id", id))
	return nil
}

// AvailableBooks returns books that can be loaned right now.
func (s *BookService) AvailableBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.books.ListAvailable(ctx)
}

// SearchBooks finds books whose title contains the query, case-insensitively.
// Results are cached briefly; any catalog write clears the cache.
func (s *BookService) SearchBooks(ctx context.Context, title string) ([]*domain.Book, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(title))
	if s.searchCache != nil {
		if v, ok := s.searchCache.Get(key); ok {
			return v.([]*domain.Book), nil
		}
	}

	books, err := s.books.SearchByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	if s.searchCache != nil {
		s.searchCache.Set(key, books, searchCacheTTL)
	}
	return books, nil
}

func (s *BookService) invalidateSearches() {
	if s.searchCache != nil {
		s.searchCache.Invalidate("search:")
	}
}
