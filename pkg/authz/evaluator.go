// Package authz decides whether a principal may invoke a protected endpoint.
package authz

import (
	"strings"
)

// Requirement is the (resource, scope) pair an endpoint demands.
type Requirement struct {
	Resource string `json:"resource"`
	Scope    string `json:"scope"`
}

// Grant is one structured fine-grained grant from the token.
type Grant struct {
	Resource string
	Scopes   []string
}

// Claims is the authorization-relevant view of an authenticated principal.
type Claims struct {
	Subject     string
	BuildingID  string
	Grants      []Grant
	Permissions []string // flat "resource#scope" or "resource:scope"
	Roles       []string
}

// Decision outcome reasons.
const (
	ReasonGrant      = "grant"
	ReasonPermission = "permission"
	ReasonAdminRole  = "admin_role"
	ReasonNoMatch    = "no_match"
)

// Decision is the result of one evaluation. It is never persisted.
type Decision struct {
	Requirement
	PrincipalID string
	Granted     bool
	Reason      string
}

// DefaultAdminRoles are the role names that bypass fine-grained checks.
var DefaultAdminRoles = []string{"admin", "ROLE_admin", "ROLE_ADMIN"}

// Evaluator renders decisions. It holds no mutable state.
type Evaluator struct {
	adminRoles []string
}

// NewEvaluator returns an evaluator treating adminRoles as bypass roles,
// or DefaultAdminRoles when none are given.
func NewEvaluator(adminRoles ...string) *Evaluator {
	if len(adminRoles) == 0 {
		adminRoles = DefaultAdminRoles
	}
	return &Evaluator{adminRoles: append([]string(nil), adminRoles...)}
}

// Evaluate checks, in order: structured grants, flat permission strings, admin
// roles. The first match grants; otherwise the request is denied.
func (e *Evaluator) Evaluate(c Claims, req Requirement) Decision {
	d := Decision{Requirement: req, PrincipalID: c.Subject}
	switch {
	case hasGrant(c.Grants, req):
		d.Granted, d.Reason = true, ReasonGrant
	case hasPermission(c.Permissions, req):
		d.Granted, d.Reason = true, ReasonPermission
	case e.isAdmin(c.Roles):
		d.Granted, d.Reason = true, ReasonAdminRole
	default:
		d.Reason = ReasonNoMatch
	}
	return d
}

func hasGrant(grants []Grant, req Requirement) bool {
	for _, g := range grants {
		if !strings.EqualFold(g.Resource, req.Resource) {
			continue
		}
		for _, s := range g.Scopes {
			if strings.EqualFold(s, req.Scope) {
				return true
			}
		}
	}
	return false
}

func hasPermission(perms []string, req Requirement) bool {
	for _, p := range perms {
		res, scope, ok := splitPermission(p)
		if ok && strings.EqualFold(res, req.Resource) && strings.EqualFold(scope, req.Scope) {
			return true
		}
	}
	return false
}

func splitPermission(p string) (resource, scope string, ok bool) {
	p = strings.TrimSpace(p)
	if res, scope, found := strings.Cut(p, "#"); found {
		return res, scope, res != "" && scope != ""
	}
	if i := strings.LastIndex(p, ":"); i > 0 && i < len(p)-1 {
		return p[:i], p[i+1:], true
	}
	return "", "", false
}

func (e *Evaluator) isAdmin(roles []string) bool {
	for _, r := range roles {
		for _, a := range e.adminRoles {
			if strings.EqualFold(r, a) {
				return true
			}
		}
	}
	return false
}
