package domain

import "errors"

// Not-found errors: a referenced record does not exist. Surfaced to the
// caller, never retried.
var (
	ErrBookNotFound   = errors.New("book not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrLoanNotFound   = errors.New("loan not found")
	ErrUserNotFound   = errors.New("user not found")
)

// Conflict errors: a business rule blocked the operation. The caller may
// retry only after conditions change.
var (
	ErrBookUnavailable     = errors.New("book is not available")
	ErrBookAlreadyLoaned   = errors.New("book is already on loan")
	ErrLoanAlreadyReturned = errors.New("loan was already returned")
	ErrDuplicateEmail      = errors.New("email is already in use")
	// ErrAvailabilityConflict is returned by the catalog CAS when the flag no
	// longer holds the expected value, i.e. a concurrent writer got there first.
	ErrAvailabilityConflict = errors.New("availability flag changed concurrently")
)

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConflict reports whether err is one of the conflict errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBookUnavailable) ||
		errors.Is(err, ErrBookAlreadyLoaned) ||
		errors.Is(err, ErrLoanAlreadyReturned) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrAvailabilityConflict)
}
