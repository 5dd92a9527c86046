package protocol

import "fmt"

// Role is a user's permission level. Encoded as a JSON number.
type Role uint8

const (
	RoleAdmin Role = iota
	RoleModerator
	RoleUser
)

// String returns the lowercase role name as used in JWT claims.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleModerator:
		return "moderator"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseRole converts a role name back to its Role value.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "moderator":
		return RoleModerator, nil
	case "user":
		return RoleUser, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
