package accesscontrol

import (
	"fmt"
	"strings"

	"nightmap/internal/domain/shared"
)

var ErrProfileNotFound = fmt.Errorf("%w: profile", shared.ErrNotFound)

// Role is the closed set of roles a profile can hold.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleModerator, RoleUser:
		return r, nil
	}
	return "", shared.Wrap(shared.ErrValidation, "unknown role %q", s)
}

// CanAdjudicate reports whether the role may approve or reject submissions.
func (r Role) CanAdjudicate() bool {
	return r == RoleAdmin || r == RoleModerator
}

// CanManageRoles is reserved for admins.
func (r Role) CanManageRoles() bool {
	return r == RoleAdmin
}

// CanRunSync is reserved for admins.
func (r Role) CanRunSync() bool {
	return r == RoleAdmin
}
