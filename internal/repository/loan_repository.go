package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/circulation/internal/domain"
)

// PostgresLoanRepository implements domain.LoanRepository using PostgreSQL.
// A partial unique index on loans(book_id) WHERE return_date IS NULL backs
// the single-active-loan invariant at the storage level, independently of the
// loan service's own serialization.
type PostgresLoanRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresLoanRepository creates a new loan repository.
func NewPostgresLoanRepository(db *sql.DB, logger *slog.Logger) *PostgresLoanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLoanRepository{db: db, logger: logger}
}

// GetByID retrieves a loan by ID.
func (r *PostgresLoanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE id = $1
	`
	l, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return l, nil
}

// Save inserts a new loan (assigning its ID) or updates the dates of an
// existing one. Book and member references never change after insert.
func (r *PostgresLoanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	if loan.ID == 0 {
		query := `
			INSERT INTO loans (book_id, member_id, loan_date, return_date)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		err := r.db.QueryRowContext(ctx, query, loan.BookID, loan.MemberID, loan.LoanDate, nullableTime(loan.ReturnDate)).Scan(&loan.ID)
		if err != nil {
			if isUniqueViolation(err) {
				// The partial unique index caught a second active loan.
				return domain.ErrBookAlreadyLoaned
			}
			return fmt.Errorf("failed to insert loan: %w", err)
		}
		return nil
	}

	query := `
		UPDATE loans
		SET loan_date = $1, return_date = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, loan.LoanDate, nullableTime(loan.ReturnDate), loan.ID)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

// FindActiveByBook returns the single unreturned loan for a book, or nil.
func (r *PostgresLoanRepository) FindActiveByBook(ctx context.Context, bookID int64) (*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE book_id = $1 AND return_date IS NULL
	`
	l, err := scanLoan(r.db.QueryRowContext(ctx, query, bookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active loan: %w", err)
	}
	return l, nil
}

// FindByBook returns the full loan history of a book.
func (r *PostgresLoanRepository) FindByBook(ctx context.Context, bookID int64) ([]*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE book_id = $1
		ORDER BY loan_date, id
	`
	return r.queryLoans(ctx, query, bookID)
}

// FindByMember returns the full loan history of a member.
func (r *PostgresLoanRepository) FindByMember(ctx context.Context, memberID int64) ([]*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE member_id = $1
		ORDER BY loan_date, id
	`
	return r.queryLoans(ctx, query, memberID)
}

// FindActive returns every loan without a return date.
func (r *PostgresLoanRepository) FindActive(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE return_date IS NULL
		ORDER BY loan_date, id
	`
	return r.queryLoans(ctx, query)
}

// FindOverdue returns active loans with a loan date strictly before the cutoff.
func (r *PostgresLoanRepository) FindOverdue(ctx context.Context, before time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE return_date IS NULL AND loan_date < $1
		ORDER BY loan_date, id
	`
	return r.queryLoans(ctx, query, before)
}

// FindByLoanDateBetween returns loans whose loan date falls inside [from, to].
func (r *PostgresLoanRepository) FindByLoanDateBetween(ctx context.Context, from, to time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT id, book_id, member_id, loan_date, return_date
		FROM loans
		WHERE loan_date BETWEEN $1 AND $2
		ORDER BY loan_date, id
	`
	return r.queryLoans(ctx, query, from, to)
}

func (r *PostgresLoanRepository) queryLoans(ctx context.Context, query string, args ...any) ([]*domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var out []*domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*domain.Loan, error) {
	l := &domain.Loan{}
	var returnDate sql.NullTime
	if err := row.Scan(&l.ID, &l.BookID, &l.MemberID, &l.LoanDate, &returnDate); err != nil {
		return nil, err
	}
	if returnDate.Valid {
		t := returnDate.Time
		l.ReturnDate = &t
	}
	return l, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
