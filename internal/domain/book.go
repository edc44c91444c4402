package domain

import "context"

// Book represents a single physical copy in the catalog.
type Book struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Genre     string `json:"genre"`
	Available bool   `json:"available"`
}

// BookRepository defines data access for the catalog. It carries no business
// rules: availability transitions go through CompareAndSetAvailable only, and
// only the loan service calls it.
type BookRepository interface {
	GetByID(ctx context.Context, id int64) (*Book, error)
	// Save inserts the book (assigning its ID) when ID is zero, otherwise
	// updates title, author and genre. The availability flag is deliberately
	// out of Save's reach.
	Save(ctx context.Context, book *Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Book, error)
	ListAvailable(ctx context.Context) ([]*Book, error)
	SearchByTitle(ctx context.Context, title string) ([]*Book, error)
	// CompareAndSetAvailable atomically flips the availability flag from
	// expected to desired. Returns ErrAvailabilityConflict if the flag no
	// longer holds the expected value, ErrBookNotFound if the book is gone.
	CompareAndSetAvailable(ctx context.Context, id int64, expected, desired bool) error
}
