package authz

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Endpoint is one registered (method, route pattern) with its authorization metadata.
type Endpoint struct {
	Method     string
	Pattern    string
	Controller string
	// Resource defaults to the lower-cased controller name.
	Resource          string
	SkipAuthorization bool
}

// Requirement returns the (resource, scope) pair the endpoint demands.
func (e Endpoint) Requirement() Requirement {
	return Requirement{Resource: e.Resource, Scope: strings.ToUpper(e.Method)}
}

// EndpointOption adjusts an Endpoint at registration.
type EndpointOption func(*Endpoint)

// SkipAuthorization marks an endpoint as never checked by the gate.
func SkipAuthorization() EndpointOption {
	return func(e *Endpoint) { e.SkipAuthorization = true }
}

// WithResource overrides the resource derived from the controller name.
func WithResource(name string) EndpointOption {
	return func(e *Endpoint) { e.Resource = strings.ToLower(name) }
}

// RouteTable maps (method, route pattern) to endpoints. It is filled while the
// router is built and only read afterwards.
type RouteTable struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

func NewRouteTable() *RouteTable {
	return &RouteTable{endpoints: map[string]Endpoint{}}
}

func routeKey(method, pattern string) string {
	return strings.ToUpper(method) + " " + pattern
}

// Add registers an endpoint. Registering the same method and pattern twice panics.
func (t *RouteTable) Add(method, pattern, controller string, opts ...EndpointOption) Endpoint {
	e := Endpoint{
		Method:     strings.ToUpper(method),
		Pattern:    pattern,
		Controller: controller,
		Resource:   strings.ToLower(controller),
	}
	for _, o := range opts {
		o(&e)
	}
	k := routeKey(method, pattern)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.endpoints[k]; dup {
		panic(fmt.Sprintf("authz: duplicate route %s", k))
	}
	t.endpoints[k] = e
	return e
}

// Lookup finds the endpoint for method and chi route pattern.
func (t *RouteTable) Lookup(method, pattern string) (Endpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.endpoints[routeKey(method, pattern)]
	return e, ok
}

// Endpoints lists every registration ordered by pattern then method.
func (t *RouteTable) Endpoints() []Endpoint {
	t.mu.RLock()
	out := make([]Endpoint, 0, len(t.endpoints))
	for _, e := range t.endpoints {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}
