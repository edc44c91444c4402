package security

import (
	"fmt"
	"log/slog"
)

// Role represents a staff role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
)

// Permission represents an action permission.
type Permission string

const (
	PermCirculate     Permission = "circulate"      // create loans, take returns
	PermManageCatalog Permission = "manage_catalog" // create/update/delete books
	PermManageMembers Permission = "manage_members" // create/update/delete members
	PermManageUsers   Permission = "manage_users"   // register staff accounts
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermCirculate,
		PermManageCatalog,
		PermManageMembers,
		PermManageUsers,
	},
	RoleLibrarian: {
		PermCirculate,
		PermManageCatalog,
		PermManageMembers,
	},
}

// AuthorizationService answers "may this role do that".
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates an authorization service.
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{logger: logger}
}

// ValidatePermission returns an error when the role lacks the permission.
func (s *AuthorizationService) ValidatePermission(role Role, perm Permission) error {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return nil
		}
	}
	s.logger.Warn("permission denied",
		slog.String("role", string(role)),
		slog.String("permission", string(perm)),
	)
	return fmt.Errorf("role %q lacks permission %q", role, perm)
}
