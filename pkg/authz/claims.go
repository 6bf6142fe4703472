package authz

import (
	"encoding/json"
	"fmt"
	"strings"

	jmes "github.com/jmespath/go-jmespath"
	"github.com/mitchellh/mapstructure"
)

// DefaultRolePaths locate role arrays in Keycloak style tokens.
var DefaultRolePaths = []string{"roles", "realm_access.roles", "resource_access.backend.roles"}

// RolePaths is a compiled list of role claim locations.
type RolePaths []*jmes.JMESPath

// CompileRolePaths compiles JMESPath expressions; blank entries are ignored.
func CompileRolePaths(exprs ...string) (RolePaths, error) {
	var out RolePaths
	for _, e := range exprs {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		p, err := jmes.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("role claim path %q: %w", e, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// grantClaim accepts the naming variants seen in authorization.permissions entries.
type grantClaim struct {
	RSName        string   `mapstructure:"rsname"`
	ResourceName  string   `mapstructure:"resource_name"`
	ResourceCamel string   `mapstructure:"resourceName"`
	Scopes        []string `mapstructure:"scopes"`
	Scope         string   `mapstructure:"scope"`
}

func (g grantClaim) grant() Grant {
	name := g.RSName
	if name == "" {
		name = g.ResourceName
	}
	if name == "" {
		name = g.ResourceCamel
	}
	scopes := g.Scopes
	if g.Scope != "" {
		scopes = append(scopes, g.Scope)
	}
	return Grant{Resource: name, Scopes: scopes}
}

// ClaimsFromMap extracts Claims from a decoded token payload. Malformed
// authorization entries are skipped rather than failing authentication.
func ClaimsFromMap(m map[string]any, roles RolePaths) Claims {
	c := Claims{
		Subject:    stringClaim(m["sub"]),
		BuildingID: stringClaim(m["building_id"]),
	}
	c.Grants = grantsFrom(m["authorization"])
	c.Permissions = stringsClaim(m["permissions"])
	for _, p := range roles {
		v, err := p.Search(m)
		if err != nil || v == nil {
			continue
		}
		c.Roles = append(c.Roles, stringsClaim(v)...)
	}
	return c
}

func grantsFrom(v any) []Grant {
	var authz map[string]any
	switch t := v.(type) {
	case map[string]any:
		authz = t
	case string:
		// some issuers serialize the claim as a JSON string
		if err := json.Unmarshal([]byte(t), &authz); err != nil {
			return nil
		}
	default:
		return nil
	}
	raw, _ := authz["permissions"].([]any)
	out := make([]Grant, 0, len(raw))
	for _, entry := range raw {
		var gc grantClaim
		if err := mapstructure.Decode(entry, &gc); err != nil {
			continue
		}
		if g := gc.grant(); g.Resource != "" {
			out = append(out, g)
		}
	}
	return out
}

func stringClaim(v any) string {
	s, _ := v.(string)
	return s
}

func stringsClaim(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(strings.ReplaceAll(t, ",", " "))
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
