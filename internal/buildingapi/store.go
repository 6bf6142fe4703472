package buildingapi

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record does not exist in the bound tenant.
var ErrNotFound = errors.New("not found")

type Resident struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Staff struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Store is the tenant-scoped data access used by the handlers. Every method
// reads the tenant from ctx and fails with tenant.ErrNoTenantBound when none is
// bound; implementations never remember a schema across calls.
type Store interface {
	ListResidents(ctx context.Context) ([]Resident, error)
	GetResident(ctx context.Context, id string) (Resident, error)
	ListStaff(ctx context.Context) ([]Staff, error)
	CreateStaff(ctx context.Context, s Staff) (Staff, error)
	DeleteStaff(ctx context.Context, id string) error
	// IdentityInUse reports whether a resident or staff member uses email or phone.
	IdentityInUse(ctx context.Context, email, phone string) (bool, error)
}
