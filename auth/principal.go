package auth

import "strings"

// Role is the school role carried by a principal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known school roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Principal is the authenticated user as returned by the school API.
type Principal struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role"`
	Active    bool   `json:"is_active"`
}

// DisplayName returns the full name, falling back to the email.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name != "" {
		return name
	}
	return p.Email
}

// Clone returns a copy that shares nothing with p.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
