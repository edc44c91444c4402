package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/circulation/internal/domain"
)

// PostgresBookRepository implements domain.BookRepository using PostgreSQL.
type PostgresBookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBookRepository creates a new book repository.
func NewPostgresBookRepository(db *sql.DB, logger *slog.Logger) *PostgresBookRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBookRepository{db: db, logger: logger}
}

// GetByID retrieves a book by ID.
func (r *PostgresBookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	b := &domain.Book{}
	query := `
		SELECT id, title, author, genre, available
		FROM books
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return b, nil
}

// Save inserts a new book (assigning its ID) or updates the mutable fields of
// an existing one. The availability flag is excluded from updates; it moves
// only through CompareAndSetAvailable.
func (r *PostgresBookRepository) Save(ctx context.Context, book *domain.Book) error {
	if book.ID == 0 {
		query := `
			INSERT INTO books (title, author, genre, available)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		if err := r.db.QueryRowContext(ctx, query, book.Title, book.Author, book.Genre, book.Available).Scan(&book.ID); err != nil {
			return fmt.Errorf("failed to insert book: %w", err)
		}
		return nil
	}

	query := `
		UPDATE books
		SET title = $1, author = $2, genre = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, book.Title, book.Author, book.Genre, book.ID)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// Delete removes a book.
func (r *PostgresBookRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// List returns the whole catalog.
func (r *PostgresBookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	query := `
		SELECT id, title, author, genre, available
		FROM books
		ORDER BY id
	`
	return r.queryBooks(ctx, query)
}

// ListAvailable returns books whose availability flag is set.
func (r *PostgresBookRepository) ListAvailable(ctx context.Context) ([]*domain.Book, error) {
	query := `
		SELECT id, title, author, genre, available
		FROM books
		WHERE available
		ORDER BY id
	`
	return r.queryBooks(ctx, query)
}

// SearchByTitle returns books whose title contains the query, ignoring case.
func (r *PostgresBookRepository) SearchByTitle(ctx context.Context, title string) ([]*domain.Book, error) {
	query := `
		SELECT id, title, author, genre, available
		FROM books
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY id
	`
	return r.queryBooks(ctx, query, title)
}

// CompareAndSetAvailable flips the availability flag only if it still holds
// the expected value. The single UPDATE with the flag in the WHERE clause is
// what makes concurrent flips safe at the store level.
func (r *PostgresBookRepository) CompareAndSetAvailable(ctx context.Context, id int64, expected, desired bool) error {
	query := `
		UPDATE books
		SET available = $1
		WHERE id = $2 AND available = $3
	`
	res, err := r.db.ExecContext(ctx, query, desired, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Nothing matched: either the book is gone or the flag moved.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrAvailabilityConflict
}

func (r *PostgresBookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]*domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var out []*domain.Book
	for rows.Next() {
		b := &domain.Book{}
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Available); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
