package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/circulation/internal/domain"
)

// MemberService handles membership CRUD and enforces email uniqueness on top
// of whatever constraint the store itself carries.
type MemberService struct {
	members domain.MemberRepository
	logger  *slog.Logger
}

// NewMemberService creates a new member service.
func NewMemberService(members domain.MemberRepository, logger *slog.Logger) *MemberService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberService{members: members, logger: logger}
}

// MemberInput carries the mutable fields of a member.
type MemberInput struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

func (in MemberInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	return nil
}

// ListMembers returns all members.
func (s *MemberService) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	return s.members.List(ctx)
}

// GetMember returns one member, or ErrMemberNotFound.
func (s *MemberService) GetMember(ctx context.Context, id int64) (*domain.Member, error) {
	return s.members.GetByID(ctx, id)
}

// GetMemberByEmail returns the member registered under the given email.
func (s *MemberService) GetMemberByEmail(ctx context.Context, email string) (*domain.Member, error) {
	return s.members.GetByEmail(ctx, email)
}

// CreateMember registers a new member. The email must not be in use.
func (s *MemberService) CreateMember(ctx context.Context, in MemberInput) (*domain.Member, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.members.GetByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	member := &domain.Member{
		Name:    in.Name,
		Address: in.Address,
		Email:   in.Email,
		Phone:   in.Phone,
	}
	if err := s.members.Save(ctx, member); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}

	s.logger.Info("member created", slog.Int64("member_id", member.ID), slog.String("email", member.Email))
	return member, nil
}

// UpdateMember replaces a member's fields. Changing the email re-checks
// uniqueness against other members.
func (s *MemberService) UpdateMember(ctx context.Context, id int64, in MemberInput) (*domain.Member, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if member.Email != in.Email {
		other, err := s.members.GetByEmail(ctx, in.Email)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, domain.ErrDuplicateEmail
		}
	}

	member.Name = in.Name
	member.Address = in.Address
	member.Email = in.Email
	member.Phone = in.Phone

	if err := s.members.Save(ctx, member); err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}

	s.logger.Info("member updated", slog.Int64("member_id", id))
	return member, nil
}

// DeleteMember removes a member. Loan history referencing the member stays.
func (s *MemberService) DeleteMember(ctx context.Context, id int64) error {
	if err := s.members.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("member deleted", slog.Int64("member_id", id))
	return nil
}
