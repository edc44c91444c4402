package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/security/auth"
)

func newAuthFixture() (*AuthService, *userStore, *auth.TokenManager) {
	users := newUserStore()
	tokens := auth.NewTokenManager("test-secret", "circulation")
	return NewAuthService(users, tokens, nil), users, tokens
}

func TestRegisterIssuesValidToken(t *testing.T) {
	svc, _, tokens := newAuthFixture()

	result, err := svc.Register(context.Background(), "staff@library.org", "Staff", "longenough", "")
	require.NoError(t, err)
	assert.NotZero(t, result.UserID)

	claims, err := tokens.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "staff@library.org", claims.Email)
	assert.Equal(t, "librarian", claims.Role, "role defaults to librarian")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), "", "Staff", "longenough", "")
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), "staff@library.org", "Staff", "short", "")
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), "staff@library.org", "Staff", "longenough", "superuser")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), "staff@library.org", "Staff", "longenough", "")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "staff@library.org", "Other", "longenough", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestLogin(t *testing.T) {
	svc, users, tokens := newAuthFixture()

	_, err := svc.Register(context.Background(), "staff@library.org", "Staff", "longenough", "admin")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "staff@library.org", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "admin", result.Role)
	assert.Equal(t, "Bearer", result.TokenType)

	claims, err := tokens.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	// Wrong password and unknown user read the same from outside.
	_, wrongPass := svc.Login(context.Background(), "staff@library.org", "wrongpassword")
	_, unknown := svc.Login(context.Background(), "nobody@library.org", "longenough")
	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.Equal(t, wrongPass.Error(), unknown.Error())

	// A deactivated account cannot log in.
	user, err := users.GetByEmail(context.Background(), "staff@library.org")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, users.Update(context.Background(), user))

	_, err = svc.Login(context.Background(), "staff@library.org", "longenough")
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newAuthFixture()

	result, err := svc.Register(context.Background(), "staff@library.org", "Staff", "longenough", "")
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), result.UserID, "wrongpassword", "evenlonger1")
	assert.Error(t, err)

	err = svc.ChangePassword(context.Background(), result.UserID, "longenough", "tiny")
	assert.Error(t, err)

	err = svc.ChangePassword(context.Background(), result.UserID, "longenough", "evenlonger1")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "staff@library.org", "longenough")
	assert.Error(t, err, "old password must stop working")

	_, err = svc.Login(context.Background(), "staff@library.org", "evenlonger1")
	assert.NoError(t, err)
}
