package auth

import (
	"errors"
	"strings"
)

var (
	// ErrMissingRole indicates a missing required role.
	ErrMissingRole = errors.New("missing required role")
	// ErrAuthenticationRequired indicates an anonymous principal.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// Requirement is the role gate of an endpoint. The zero value requires nothing.
type Requirement struct {
	roles []Role
}

// Require gates on a single role.
func Require(role Role) Requirement {
	return Requirement{roles: []Role{role}}
}

// RequireAny gates on membership in a set of roles.
func RequireAny(roles ...Role) Requirement {
	return Requirement{roles: append([]Role(nil), roles...)}
}

// None reports whether no role is required.
func (r Requirement) None() bool {
	return len(r.roles) == 0
}

// Roles returns a copy of the accepted roles.
func (r Requirement) Roles() []Role {
	return append([]Role(nil), r.roles...)
}

// Accepts reports whether role satisfies the requirement without the admin bypass.
func (r Requirement) Accepts(role Role) bool {
	for _, item := range r.roles {
		if item == role {
			return true
		}
	}
	return false
}

func (r Requirement) String() string {
	if r.None() {
		return "-"
	}
	parts := make([]string, len(r.roles))
	for i, role := range r.roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, "|")
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed   bool
	Anonymous bool
	Reason    string
}

// Err returns nil for an allow decision.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Anonymous:
		return ErrAuthenticationRequired
	default:
		return ErrMissingRole
	}
}

// Authorize decides whether principal may call an endpoint gated by required.
// A nil principal is anonymous. Administrators pass every gate.
func Authorize(required Requirement, principal *Principal) Decision {
	if required.None() {
		return Decision{Allowed: true}
	}
	if principal == nil {
		return Decision{Anonymous: true, Reason: "authentication required"}
	}
	if principal.Role == RoleAdmin {
		return Decision{Allowed: true}
	}
	if required.Accepts(principal.Role) {
		return Decision{Allowed: true}
	}
	if len(required.roles) == 1 {
		return Decision{Reason: "access denied: " + string(required.roles[0]) + " privileges required"}
	}
	return Decision{Reason: "access denied: one of " + required.String() + " required"}
}

// HasRole reports whether a principal has the given role.
func HasRole(principal *Principal, role Role) bool {
	if principal == nil || role == "" {
		return false
	}
	return principal.Role == role
}

// HasAnyRole reports whether a principal has any of the provided roles.
func HasAnyRole(principal *Principal, roles ...Role) bool {
	if principal == nil || len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if HasRole(principal, role) {
			return true
		}
	}
	return false
}
