package domain

import "context"

// Member represents a registered library member.
type Member struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// MemberRepository defines data access for membership records.
type MemberRepository interface {
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	// Save inserts the member (assigning its ID) when ID is zero, otherwise
	// updates all mutable fields. Returns ErrDuplicateEmail when the email is
	// already taken by another member.
	Save(ctx context.Context, member *Member) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Member, error)
}
