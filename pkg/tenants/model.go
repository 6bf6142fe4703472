package tenants

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no building is registered under a schema.
var ErrNotFound = errors.New("tenant not found")

// StatusActive is the registry status value for an active building.
const StatusActive = 1

// Entry is one building in the global (non tenant-scoped) registry.
type Entry struct {
	ID         string // uuid
	Code       string // short building code (BLD01)
	SchemaName string // data partition discriminator (bld-01)
	Name       string // display name
	Active     bool
}

// Registry looks up buildings by schema name.
type Registry interface {
	// Lookup returns the entry for schema or ErrNotFound.
	Lookup(ctx context.Context, schema string) (Entry, error)
	// ListActive returns every active building, ordered by schema name.
	ListActive(ctx context.Context) ([]Entry, error)
}
