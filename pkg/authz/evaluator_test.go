package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	e := NewEvaluator()
	req := Requirement{Resource: "residents", Scope: "GET"}

	tests := []struct {
		name    string
		claims  Claims
		granted bool
		reason  string
	}{
		{
			name:    "matching grant",
			claims:  Claims{Subject: "u1", Grants: []Grant{{Resource: "residents", Scopes: []string{"GET"}}}},
			granted: true, reason: ReasonGrant,
		},
		{
			name: "grant wins over other claims",
			claims: Claims{
				Grants:      []Grant{{Resource: "Residents", Scopes: []string{"get"}}},
				Permissions: []string{"staff#DELETE"},
				Roles:       []string{"viewer"},
			},
			granted: true, reason: ReasonGrant,
		},
		{
			name:    "grant for other scope",
			claims:  Claims{Grants: []Grant{{Resource: "residents", Scopes: []string{"POST"}}}},
			granted: false, reason: ReasonNoMatch,
		},
		{
			name:    "hash permission",
			claims:  Claims{Permissions: []string{"residents#get"}},
			granted: true, reason: ReasonPermission,
		},
		{
			name:    "colon permission",
			claims:  Claims{Permissions: []string{"RESIDENTS:GET"}},
			granted: true, reason: ReasonPermission,
		},
		{
			name:    "non matching coarse permission",
			claims:  Claims{Permissions: []string{"residents:POST", "staff#GET", "residents"}},
			granted: false, reason: ReasonNoMatch,
		},
		{
			name:    "admin role",
			claims:  Claims{Roles: []string{"user", "ROLE_ADMIN"}},
			granted: true, reason: ReasonAdminRole,
		},
		{
			name:    "admin role case insensitive",
			claims:  Claims{Roles: []string{"Admin"}},
			granted: true, reason: ReasonAdminRole,
		},
		{
			name:    "nothing",
			claims:  Claims{Subject: "u2", Roles: []string{"resident"}},
			granted: false, reason: ReasonNoMatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.claims, req)
			assert.Equal(t, tt.granted, d.Granted)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, req, d.Requirement)
			assert.Equal(t, tt.claims.Subject, d.PrincipalID)
		})
	}
}

func TestAdminBypassesAnyRequirement(t *testing.T) {
	e := NewEvaluator()
	admin := Claims{Roles: []string{"admin"}}
	for _, res := range []string{"residents", "staff", "invoices", "vouchers"} {
		for _, scope := range []string{"GET", "POST", "PUT", "DELETE", "PATCH"} {
			assert.True(t, e.Evaluate(admin, Requirement{res, scope}).Granted, res+" "+scope)
		}
	}
}

func TestCustomAdminRoles(t *testing.T) {
	e := NewEvaluator("building-manager")
	assert.True(t, e.Evaluate(Claims{Roles: []string{"building-manager"}}, Requirement{"staff", "DELETE"}).Granted)
	assert.False(t, e.Evaluate(Claims{Roles: []string{"admin"}}, Requirement{"staff", "DELETE"}).Granted)
}

func TestSplitPermission(t *testing.T) {
	for in, want := range map[string][2]string{
		"residents#GET":     {"residents", "GET"},
		"urn:res:x#GET":     {"urn:res:x", "GET"},
		"residents:GET":     {"residents", "GET"},
		"urn:residents:GET": {"urn:residents", "GET"},
	} {
		res, scope, ok := splitPermission(in)
		assert.True(t, ok, in)
		assert.Equal(t, want[0], res, in)
		assert.Equal(t, want[1], scope, in)
	}
	for _, in := range []string{"", "residents", "#GET", "residents#", ":GET", "residents:"} {
		_, _, ok := splitPermission(in)
		assert.False(t, ok, in)
	}
}
