// Package permissions keeps the process-wide view of which (resource, scope)
// pairs the identity server protects.
package permissions

import (
	"sort"
	"strings"

	"bldgate/pkg/iam"
)

// Pair is a normalized (resource, scope) pair: lower-case resource, upper-case scope.
type Pair struct {
	Resource string `json:"resource"`
	Scope    string `json:"scope"`
}

// NewPair normalizes resource and scope.
func NewPair(resource, scope string) Pair {
	return Pair{
		Resource: strings.ToLower(strings.TrimSpace(resource)),
		Scope:    strings.ToUpper(strings.TrimSpace(scope)),
	}
}

// Set is an immutable set of protected pairs. The zero value is empty.
type Set struct {
	m map[Pair]struct{}
}

// NewSet builds a set from pairs, normalizing each one.
func NewSet(pairs ...Pair) Set {
	m := make(map[Pair]struct{}, len(pairs))
	for _, p := range pairs {
		p = NewPair(p.Resource, p.Scope)
		if p.Resource == "" || p.Scope == "" {
			continue
		}
		m[p] = struct{}{}
	}
	return Set{m: m}
}

// FromResources flattens identity server resources into a set.
func FromResources(res []iam.Resource) Set {
	var pairs []Pair
	for _, r := range res {
		for _, s := range r.Scopes {
			pairs = append(pairs, Pair{Resource: r.Name, Scope: s.Name})
		}
	}
	return NewSet(pairs...)
}

// Contains reports whether the normalized pair is protected.
func (s Set) Contains(resource, scope string) bool {
	_, ok := s.m[NewPair(resource, scope)]
	return ok
}

func (s Set) Len() int { return len(s.m) }

// Pairs lists the set in sorted order.
func (s Set) Pairs() []Pair {
	out := make([]Pair, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

func isEmpty(s Set) bool { return s.Len() == 0 }
