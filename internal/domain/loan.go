package domain

import (
	"context"
	"time"
)

// Loan binds one book to one member for a period of time. A nil ReturnDate
// means the loan is still active; once set it never changes again.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"bookId"`
	MemberID   int64      `json:"memberId"`
	LoanDate   time.Time  `json:"loanDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// Active reports whether the book has not been returned yet.
func (l *Loan) Active() bool {
	return l.ReturnDate == nil
}

// LoanRepository defines data access for the loan ledger. Find methods return
// empty results (nil slice, or nil loan for FindActiveByBook) when nothing
// matches; only GetByID distinguishes a missing record with ErrLoanNotFound.
type LoanRepository interface {
	GetByID(ctx context.Context, id int64) (*Loan, error)
	// Save inserts the loan (assigning its ID) when ID is zero, otherwise
	// updates loan and return dates.
	Save(ctx context.Context, loan *Loan) error
	// FindActiveByBook returns the single unreturned loan for a book, or nil.
	FindActiveByBook(ctx context.Context, bookID int64) (*Loan, error)
	FindByBook(ctx context.Context, bookID int64) ([]*Loan, error)
	FindByMember(ctx context.Context, memberID int64) ([]*Loan, error)
	FindActive(ctx context.Context) ([]*Loan, error)
	// FindOverdue returns active loans whose loan date is strictly before the
	// given cutoff.
	FindOverdue(ctx context.Context, before time.Time) ([]*Loan, error)
	FindByLoanDateBetween(ctx context.Context, from, to time.Time) ([]*Loan, error)
}
