package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/circulation/internal/activity"
	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/observability/metrics"
)

// loanPeriodDays is the fixed policy for when an active loan counts as
// overdue. It is not configuration.
const loanPeriodDays = 30

// LoanService is the loan lifecycle engine. It is the only component that
// writes Book.Available or Loan.ReturnDate; the repositories it consumes are
// plain storage with no business rules of their own.
//
// CreateLoan and ReturnBook are serialized per book id through a keyed mutex,
// so the validate-then-write sequence behaves as if it ran under mutual
// exclusion for that book. The catalog CAS is the commit point: even if a
// second writer slipped past validation it would lose the CAS.
type LoanService struct {
	books   domain.BookRepository
	members domain.MemberRepository
	loans   domain.LoanRepository
	locks   *keyedMutex
	events  *activity.Hub
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoanService creates a loan service. The events hub may be nil; now
// defaults to time.Now so tests can pin the clock.
func NewLoanService(
	books domain.BookRepository,
	members domain.MemberRepository,
	loans domain.LoanRepository,
	events *activity.Hub,
	logger *slog.Logger,
	now func() time.Time,
) *LoanService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &LoanService{
		books:   books,
		members: members,
		loans:   loans,
		locks:   newKeyedMutex(),
		events:  events,
		logger:  logger,
		now:     now,
	}
}

// CreateLoan lends a book to a member. loanDate is optional; when nil the
// current date is used. Validation is fail-fast: book exists, book available,
// member exists, no active loan for the book. The loan insert and the
// availability flip commit together or not at all.
func (s *LoanService) CreateLoan(ctx context.Context, bookID, memberID int64, loanDate *time.Time) (*domain.Loan, error) {
	unlock := s.locks.Lock(bookID)
	defer unlock()

	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		metrics.ObserveLoanCreated(createResult(err))
		return nil, err
	}
	if !book.Available {
		metrics.ObserveLoanCreated("conflict")
		return nil, domain.ErrBookUnavailable
	}

	if _, err := s.members.GetByID(ctx, memberID); err != nil {
		metrics.ObserveLoanCreated(createResult(err))
		return nil, err
	}

	// The flag and the ledger must never disagree, so the ledger is checked
	// even though the flag already passed.
	active, err := s.loans.FindActiveByBook(ctx, bookID)
	if err != nil {
		metrics.ObserveLoanCreated("error")
		return nil, fmt.Errorf("check active loan: %w", err)
	}
	if active != nil {
		metrics.ObserveLoanCreated("conflict")
		return nil, domain.ErrBookAlreadyLoaned
	}

	when := s.now()
	if loanDate != nil {
		when = *loanDate
	}

	// Commit point. A concurrent writer that somehow passed validation loses
	// here and surfaces as a Conflict.
	if err := s.books.CompareAndSetAvailable(ctx, bookID, true, false); err != nil {
		if errors.Is(err, domain.ErrAvailabilityConflict) {
			metrics.ObserveLoanCreated("conflict")
			return nil, domain.ErrBookUnavailable
		}
		metrics.ObserveLoanCreated("error")
		return nil, fmt.Errorf("mark book unavailable: %w", err)
	}

	loan := &domain.Loan{
		BookID:   bookID,
		MemberID: memberID,
		LoanDate: when,
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		// Put the flag back so catalog and ledger stay in lock-step.
		if rbErr := s.books.CompareAndSetAvailable(ctx, bookID, false, true); rbErr != nil {
			s.logger.Error("availability rollback failed",
				slog.Int64("book_id", bookID),
				slog.String("error", rbErr.Error()),
			)
		}
		metrics.ObserveLoanCreated("error")
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	s.logger.Info("loan created",
		slog.Int64("loan_id", loan.ID),
		slog.Int64("book_id", bookID),
		slog.Int64("member_id", memberID),
		slog.Time("loan_date", when),
	)
	metrics.ObserveLoanCreated("success")
	s.publish(activity.EventLoanCreated, loan)

	return loan, nil
}

// createResult picks the metrics label for a lookup failure during CreateLoan.
// Only genuine missing records count as not_found; storage trouble is an error.
func createResult(err error) string {
	if domain.IsNotFound(err) {
		return "not_found"
	}
	return "error"
}

// ReturnBook closes a loan and makes the book available again. A missing loan
// yields a nil loan and nil error (nothing to report, not a failure); a loan
// that was already returned is a conflict and its return date is untouched.
func (s *LoanService) ReturnBook(ctx context.Context, loanID int64) (*domain.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if errors.Is(err, domain.ErrLoanNotFound) {
		metrics.ObserveLoanReturned("not_found")
		return nil, nil
	}
	if err != nil {
		metrics.ObserveLoanReturned("error")
		return nil, err
	}

	unlock := s.locks.Lock(loan.BookID)
	defer unlock()

	// Re-read under the lock; a concurrent return may have won the race.
	loan, err = s.loans.GetByID(ctx, loanID)
	if errors.Is(err, domain.ErrLoanNotFound) {
		metrics.ObserveLoanReturned("not_found")
		return nil, nil
	}
	if err != nil {
		metrics.ObserveLoanReturned("error")
		return nil, err
	}
	if loan.ReturnDate != nil {
		metrics.ObserveLoanReturned("conflict")
		return nil, domain.ErrLoanAlreadyReturned
	}

	returned := s.now()
	loan.ReturnDate = &returned
	if err := s.loans.Save(ctx, loan); err != nil {
		loan.ReturnDate = nil
		metrics.ObserveLoanReturned("error")
		return nil, fmt.Errorf("update loan: %w", err)
	}

	if err := s.books.CompareAndSetAvailable(ctx, loan.BookID, false, true); err != nil {
		// Undo the return so the pair commits together or not at all. The
		// flag cannot legitimately change under the per-book lock, so any
		// failure here is storage trouble, not a lost race.
		loan.ReturnDate = nil
		if rbErr := s.loans.Save(ctx, loan); rbErr != nil {
			s.logger.Error("loan rollback failed",
				slog.Int64("loan_id", loanID),
				slog.String("error", rbErr.Error()),
			)
		}
		metrics.ObserveLoanReturned("error")
		return nil, fmt.Errorf("mark book available: %w", err)
	}

	s.logger.Info("book returned",
		slog.Int64("loan_id", loan.ID),
		slog.Int64("book_id", loan.BookID),
		slog.Time("return_date", returned),
	)
	metrics.ObserveLoanReturned("success")
	metrics.ObserveLoanDuration(returned.Sub(loan.LoanDate))
	s.publish(activity.EventBookReturned, loan)

	return loan, nil
}

// ActiveLoans returns all loans without a return date.
func (s *LoanService) ActiveLoans(ctx context.Context) ([]*domain.Loan, error) {
	return s.loans.FindActive(ctx)
}

// OverdueLoans returns active loans whose loan date is strictly more than the
// loan period before the current date. The cutoff is computed at call time.
func (s *LoanService) OverdueLoans(ctx context.Context) ([]*domain.Loan, error) {
	cutoff := s.now().AddDate(0, 0, -loanPeriodDays)
	return s.loans.FindOverdue(ctx, cutoff)
}

// MemberLoans returns the full loan history of a member, active and returned.
func (s *LoanService) MemberLoans(ctx context.Context, memberID int64) ([]*domain.Loan, error) {
	return s.loans.FindByMember(ctx, memberID)
}

// BookLoans returns the full loan history of a book, active and returned.
func (s *LoanService) BookLoans(ctx context.Context, bookID int64) ([]*domain.Loan, error) {
	return s.loans.FindByBook(ctx, bookID)
}

// LoanByID returns a single loan, or ErrLoanNotFound.
func (s *LoanService) LoanByID(ctx context.Context, id int64) (*domain.Loan, error) {
	return s.loans.GetByID(ctx, id)
}

// LoansBetween returns loans whose loan date falls inside [from, to].
func (s *LoanService) LoansBetween(ctx context.Context, from, to time.Time) ([]*domain.Loan, error) {
	return s.loans.FindByLoanDateBetween(ctx, from, to)
}

func (s *LoanService) publish(eventType string, loan *domain.Loan) {
	if s.events == nil {
		return
	}
	s.events.Publish(activity.Event{
		Type:     eventType,
		LoanID:   loan.ID,
		BookID:   loan.BookID,
		MemberID: loan.MemberID,
		At:       s.now(),
	})
}
