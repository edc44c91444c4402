package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/circulation/internal/domain"
)

func validMemberInput() MemberInput {
	return MemberInput{
		Name:    "Ada Lovelace",
		Address: "12 Analytical Way",
		Email:   "ada@example.com",
		Phone:   "555-0100",
	}
}

func TestCreateMember(t *testing.T) {
	svc := NewMemberService(newMemberStore(), nil)

	member, err := svc.CreateMember(context.Background(), validMemberInput())
	require.NoError(t, err)
	assert.NotZero(t, member.ID)
	assert.Equal(t, "ada@example.com", member.Email)
}

func TestCreateMemberRejectsDuplicateEmail(t *testing.T) {
	svc := NewMemberService(newMemberStore(), nil)

	_, err := svc.CreateMember(context.Background(), validMemberInput())
	require.NoError(t, err)

	in := validMemberInput()
	in.Name = "Someone Else"
	_, err = svc.CreateMember(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestCreateMemberValidatesInput(t *testing.T) {
	svc := NewMemberService(newMemberStore(), nil)

	for _, mutate := range []func(*MemberInput){
		func(in *MemberInput) { in.Name = "" },
		func(in *MemberInput) { in.Address = " " },
		func(in *MemberInput) { in.Email = "" },
		func(in *MemberInput) { in.Phone = "" },
	} {
		in := validMemberInput()
		mutate(&in)
		_, err := svc.CreateMember(context.Background(), in)
		assert.Error(t, err)
	}
}

func TestUpdateMemberEmailUniqueness(t *testing.T) {
	store := newMemberStore()
	svc := NewMemberService(store, nil)
	ada := store.add("Ada", "ada@example.com")
	grace := store.add("Grace", "grace@example.com")

	// Taking another member's email is rejected.
	in := validMemberInput()
	in.Email = grace.Email
	_, err := svc.UpdateMember(context.Background(), ada.ID, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	// Keeping your own email is fine.
	in = validMemberInput()
	updated, err := svc.UpdateMember(context.Background(), ada.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)

	// Moving to an unused email is fine.
	in.Email = "countess@example.com"
	updated, err = svc.UpdateMember(context.Background(), ada.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "countess@example.com", updated.Email)
}

func TestUpdateMemberNotFound(t *testing.T) {
	svc := NewMemberService(newMemberStore(), nil)
	_, err := svc.UpdateMember(context.Background(), 999, validMemberInput())
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestGetMemberByEmail(t *testing.T) {
	store := newMemberStore()
	svc := NewMemberService(store, nil)
	store.add("Ada", "ada@example.com")

	member, err := svc.GetMemberByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", member.Name)

	_, err = svc.GetMemberByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestDeleteMember(t *testing.T) {
	store := newMemberStore()
	svc := NewMemberService(store, nil)
	ada := store.add("Ada", "ada@example.com")

	require.NoError(t, svc.DeleteMember(context.Background(), ada.ID))
	err := svc.DeleteMember(context.Background(), ada.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}
