package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/yourorg/circulation/internal/domain"
)

// pqUniqueViolation is the Postgres error code for a unique constraint hit.
const pqUniqueViolation = "23505"

// PostgresMemberRepository implements domain.MemberRepository using PostgreSQL.
type PostgresMemberRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMemberRepository creates a new member repository.
func NewPostgresMemberRepository(db *sql.DB, logger *slog.Logger) *PostgresMemberRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMemberRepository{db: db, logger: logger}
}

// GetByID retrieves a member by ID.
func (r *PostgresMemberRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	m := &domain.Member{}
	query := `
		SELECT id, name, address, email, phone
		FROM members
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Name, &m.Address, &m.Email, &m.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetByEmail retrieves a member by email.
func (r *PostgresMemberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	m := &domain.Member{}
	query := `
		SELECT id, name, address, email, phone
		FROM members
		WHERE email = $1
	`
	err := r.db.QueryRowContext(ctx, query, email).Scan(&m.ID, &m.Name, &m.Address, &m.Email, &m.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return m, nil
}

// Save inserts a new member (assigning its ID) or updates an existing one.
// The unique index on email backs the service-level check; a violation comes
// back as ErrDuplicateEmail.
func (r *PostgresMemberRepository) Save(ctx context.Context, member *domain.Member) error {
	if member.ID == 0 {
		query := `
			INSERT INTO members (name, address, email, phone)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		err := r.db.QueryRowContext(ctx, query, member.Name, member.Address, member.Email, member.Phone).Scan(&member.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to insert member: %w", err)
		}
		return nil
	}

	query := `
		UPDATE members
		SET name = $1, address = $2, email = $3, phone = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, member.Name, member.Address, member.Email, member.Phone, member.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

// Delete removes a member.
func (r *PostgresMemberRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

// List returns all members.
func (r *PostgresMemberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	query := `
		SELECT id, name, address, email, phone
		FROM members
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []*domain.Member
	for rows.Next() {
		m := &domain.Member{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Address, &m.Email, &m.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
