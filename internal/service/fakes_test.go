package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/circulation/internal/domain"
)

// In-memory repositories for service tests. They mirror the Postgres
// implementations closely enough to exercise the services, including real
// compare-and-set semantics on the availability flag.

type bookStore struct {
	mu      sync.Mutex
	nextID  int64
	books   map[int64]*domain.Book
	failGet error // when set, GetByID returns this instead of reading
}

func newBookStore() *bookStore {
	return &bookStore{books: make(map[int64]*domain.Book)}
}

func (s *bookStore) add(title, author, genre string, available bool) *domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	book := &domain.Book{ID: s.nextID, Title: title, Author: author, Genre: genre, Available: available}
	s.books[book.ID] = book
	return cloneBook(book)
}

func (s *bookStore) GetByID(_ context.Context, id int64) (*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	book, ok := s.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return cloneBook(book), nil
}

func (s *bookStore) Save(_ context.Context, book *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book.ID == 0 {
		s.nextID++
		book.ID = s.nextID
		s.books[book.ID] = cloneBook(book)
		return nil
	}
	existing, ok := s.books[book.ID]
	if !ok {
		return domain.ErrBookNotFound
	}
	existing.Title = book.Title
	existing.Author = book.Author
	existing.Genre = book.Genre
	return nil
}

func (s *bookStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *bookStore) List(_ context.Context) ([]*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(*domain.Book) bool { return true }), nil
}

func (s *bookStore) ListAvailable(_ context.Context) ([]*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(b *domain.Book) bool { return b.Available }), nil
}

func (s *bookStore) SearchByTitle(_ context.Context, title string) ([]*domain.Book, error) {
	needle := strings.ToLower(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(b *domain.Book) bool {
		return strings.Contains(strings.ToLower(b.Title), needle)
	}), nil
}

func (s *bookStore) CompareAndSetAvailable(_ context.Context, id int64, expected, desired bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return domain.ErrBookNotFound
	}
	if book.Available != expected {
		return domain.ErrAvailabilityConflict
	}
	book.Available = desired
	return nil
}

func (s *bookStore) collect(match func(*domain.Book) bool) []*domain.Book {
	var out []*domain.Book
	for _, b := range s.books {
		if match(b) {
			out = append(out, cloneBook(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneBook(b *domain.Book) *domain.Book {
	c := *b
	return &c
}

type memberStore struct {
	mu      sync.Mutex
	nextID  int64
	members map[int64]*domain.Member
}

func newMemberStore() *memberStore {
	return &memberStore{members: make(map[int64]*domain.Member)}
}

func (s *memberStore) add(name, email string) *domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := &domain.Member{ID: s.nextID, Name: name, Address: "1 Main St", Email: email, Phone: "555-0100"}
	s.members[m.ID] = m
	c := *m
	return &c
}

func (s *memberStore) GetByID(_ context.Context, id int64) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (s *memberStore) GetByEmail(_ context.Context, email string) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Email == email {
			c := *m
			return &c, nil
		}
	}
	return nil, domain.ErrMemberNotFound
}

func (s *memberStore) Save(_ context.Context, member *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Email == member.Email && m.ID != member.ID {
			return domain.ErrDuplicateEmail
		}
	}
	if member.ID == 0 {
		s.nextID++
		member.ID = s.nextID
	} else if _, ok := s.members[member.ID]; !ok {
		return domain.ErrMemberNotFound
	}
	c := *member
	s.members[member.ID] = &c
	return nil
}

func (s *memberStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return domain.ErrMemberNotFound
	}
	delete(s.members, id)
	return nil
}

func (s *memberStore) List(_ context.Context) ([]*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Member
	for _, m := range s.members {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type loanStore struct {
	mu       sync.Mutex
	nextID   int64
	loans    map[int64]*domain.Loan
	failSave error // when set, Save returns this instead of writing
}

func newLoanStore() *loanStore {
	return &loanStore{loans: make(map[int64]*domain.Loan)}
}

func (s *loanStore) GetByID(_ context.Context, id int64) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return cloneLoan(loan), nil
}

func (s *loanStore) Save(_ context.Context, loan *domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	if loan.ID == 0 {
		s.nextID++
		loan.ID = s.nextID
	}
	s.loans[loan.ID] = cloneLoan(loan)
	return nil
}

func (s *loanStore) FindActiveByBook(_ context.Context, bookID int64) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.loans {
		if l.BookID == bookID && l.ReturnDate == nil {
			return cloneLoan(l), nil
		}
	}
	return nil, nil
}

func (s *loanStore) FindByBook(_ context.Context, bookID int64) ([]*domain.Loan, error) {
	return s.collect(func(l *domain.Loan) bool { return l.BookID == bookID }), nil
}

func (s *loanStore) FindByMember(_ context.Context, memberID int64) ([]*domain.Loan, error) {
	return s.collect(func(l *domain.Loan) bool { return l.MemberID == memberID }), nil
}

func (s *loanStore) FindActive(_ context.Context) ([]*domain.Loan, error) {
	return s.collect(func(l *domain.Loan) bool { return l.ReturnDate == nil }), nil
}

func (s *loanStore) FindOverdue(_ context.Context, before time.Time) ([]*domain.Loan, error) {
	return s.collect(func(l *domain.Loan) bool {
		return l.ReturnDate == nil && l.LoanDate.Before(before)
	}), nil
}

func (s *loanStore) FindByLoanDateBetween(_ context.Context, from, to time.Time) ([]*domain.Loan, error) {
	return s.collect(func(l *domain.Loan) bool {
		return !l.LoanDate.Before(from) && !l.LoanDate.After(to)
	}), nil
}

func (s *loanStore) collect(match func(*domain.Loan) bool) []*domain.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Loan
	for _, l := range s.loans {
		if match(l) {
			out = append(out, cloneLoan(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneLoan(l *domain.Loan) *domain.Loan {
	c := *l
	if l.ReturnDate != nil {
		t := *l.ReturnDate
		c.ReturnDate = &t
	}
	return &c
}

type userStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[int64]*domain.User)}
}

func (s *userStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *userStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *userStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	c := *user
	s.users[user.ID] = &c
	return nil
}
