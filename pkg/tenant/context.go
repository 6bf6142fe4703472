// Package tenant holds the request-scoped tenant (building schema) binding.
//
// A *Context is created empty for every inbound request, bound exactly once by the
// tenant middleware, and read by data access code through CurrentSchema. It travels
// inside context.Context; nothing in this package is process-global.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"bldgate/pkg/tenants"
)

var (
	// ErrInvalidTenant is returned for an empty, malformed, unknown or inactive schema.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrNoTenantBound is returned when the schema is read before it was set.
	ErrNoTenantBound = errors.New("no tenant bound")
	// ErrSchemaAlreadySet is returned when a bound holder is re-bound to another schema.
	ErrSchemaAlreadySet = errors.New("tenant schema already set")
)

var schemaPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

// Context is the per-request tenant holder.
type Context struct {
	reg tenants.Registry

	mu     sync.RWMutex
	schema string
	entry  tenants.Entry
}

// NewContext returns an unbound holder validating against reg.
func NewContext(reg tenants.Registry) *Context {
	return &Context{reg: reg}
}

// SetSchema validates schema against the registry and binds it. Binding the same
// schema twice is a no-op; binding a different one returns ErrSchemaAlreadySet.
func (c *Context) SetSchema(ctx context.Context, schema string) error {
	schema = strings.TrimSpace(schema)
	if schema == "" || !schemaPattern.MatchString(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, schema)
	}

	c.mu.RLock()
	bound := c.schema
	c.mu.RUnlock()
	if bound != "" {
		if bound == schema {
			return nil
		}
		return fmt.Errorf("%w: %q (bound %q)", ErrSchemaAlreadySet, schema, bound)
	}

	// registry lookup happens outside the lock
	e, err := c.reg.Lookup(ctx, schema)
	switch {
	case errors.Is(err, tenants.ErrNotFound):
		return fmt.Errorf("%w: %q not registered", ErrInvalidTenant, schema)
	case err != nil:
		return fmt.Errorf("resolve tenant %q: %w", schema, err)
	case !e.Active:
		return fmt.Errorf("%w: %q inactive", ErrInvalidTenant, schema)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schema != "" && c.schema != schema {
		return fmt.Errorf("%w: %q (bound %q)", ErrSchemaAlreadySet, schema, c.schema)
	}
	c.schema = schema
	c.entry = e
	return nil
}

// CurrentSchema returns the bound schema or ErrNoTenantBound.
func (c *Context) CurrentSchema() (string, error) {
	if c == nil {
		return "", ErrNoTenantBound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.schema == "" {
		return "", ErrNoTenantBound
	}
	return c.schema, nil
}

// Entry returns the registry entry of the bound building.
func (c *Context) Entry() (tenants.Entry, bool) {
	if c == nil {
		return tenants.Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.schema != ""
}

type ctxKey struct{}

// Attach stores c in ctx.
func Attach(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the holder attached to ctx, or nil.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(ctxKey{}).(*Context)
	return c
}

// CurrentSchema is shorthand for FromContext(ctx).CurrentSchema().
func CurrentSchema(ctx context.Context) (string, error) {
	return FromContext(ctx).CurrentSchema()
}
