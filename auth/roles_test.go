package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizeRules(t *testing.T) {
	teacher := &Principal{ID: 2, Role: RoleTeacher}
	student := &Principal{ID: 3, Role: RoleStudent}

	tests := []struct {
		name      string
		required  Requirement
		principal *Principal
		allowed   bool
		anonymous bool
	}{
		{name: "no requirement anonymous", required: Requirement{}, principal: nil, allowed: true},
		{name: "no requirement teacher", required: Requirement{}, principal: teacher, allowed: true},
		{name: "anonymous denied", required: Require(RoleTeacher), principal: nil, anonymous: true},
		{name: "single role match", required: Require(RoleTeacher), principal: teacher, allowed: true},
		{name: "single role mismatch", required: Require(RoleAdmin), principal: teacher},
		{name: "set member", required: RequireAny(RoleTeacher, RoleAdmin), principal: teacher, allowed: true},
		{name: "set non member", required: RequireAny(RoleTeacher, RoleAdmin), principal: student},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Authorize(tt.required, tt.principal)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.Equal(t, tt.anonymous, decision.Anonymous)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
				assert.Error(t, decision.Err())
			} else {
				assert.NoError(t, decision.Err())
			}
		})
	}
}

func TestAdministratorBypassesEveryRequirement(t *testing.T) {
	admin := &Principal{ID: 1, Role: RoleAdmin}
	requirements := []Requirement{
		{},
		Require(RoleAdmin),
		Require(RoleTeacher),
		Require(RoleStudent),
		RequireAny(RoleTeacher, RoleStudent),
		RequireAny(Role("librarian")),
	}
	for _, required := range requirements {
		assert.True(t, Authorize(required, admin).Allowed, "requirement %s", required)
	}
}

func TestDecisionErrors(t *testing.T) {
	assert.ErrorIs(t, Authorize(Require(RoleTeacher), nil).Err(), ErrAuthenticationRequired)
	assert.ErrorIs(t, Authorize(Require(RoleAdmin), &Principal{Role: RoleTeacher}).Err(), ErrMissingRole)
}

func TestRoleHelpers(t *testing.T) {
	principal := &Principal{Role: RoleTeacher}

	assert.True(t, HasRole(principal, RoleTeacher))
	assert.False(t, HasRole(principal, RoleAdmin))
	assert.False(t, HasRole(nil, RoleTeacher))
	assert.True(t, HasAnyRole(principal, RoleAdmin, RoleTeacher))
	assert.False(t, HasAnyRole(principal, RoleAdmin, RoleStudent))
}

func TestRequirementAccessors(t *testing.T) {
	req := RequireAny(RoleTeacher, RoleAdmin)
	roles := req.Roles()
	roles[0] = RoleStudent

	assert.Equal(t, []Role{RoleTeacher, RoleAdmin}, req.Roles())
	assert.Equal(t, "teacher|admin", req.String())
	assert.Equal(t, "-", Requirement{}.String())
	assert.True(t, Requirement{}.None())
}

func TestPrincipalDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&Principal{FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "ada@school.test", (&Principal{Email: "ada@school.test"}).DisplayName())
	assert.Equal(t, "", (*Principal)(nil).DisplayName())

	original := &Principal{ID: 1, Role: RoleTeacher}
	clone := original.Clone()
	clone.Role = RoleAdmin
	assert.Equal(t, RoleTeacher, original.Role)
}
