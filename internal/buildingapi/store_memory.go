package buildingapi

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bldgate/pkg/tenant"
)

type memTenant struct {
	residents map[string]Resident
	staff     map[string]Staff
}

// MemoryStore partitions records by tenant schema in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	bySchema map[string]*memTenant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySchema: map[string]*memTenant{}}
}

// Seed adds records to schema, bypassing tenant binding. Intended for dev and tests.
func (s *MemoryStore) Seed(schema string, residents []Resident, staff []Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.partition(schema)
	for _, r := range residents {
		t.residents[r.ID] = r
	}
	for _, st := range staff {
		t.staff[st.ID] = st
	}
}

func (s *MemoryStore) partition(schema string) *memTenant {
	t, ok := s.bySchema[schema]
	if !ok {
		t = &memTenant{residents: map[string]Resident{}, staff: map[string]Staff{}}
		s.bySchema[schema] = t
	}
	return t
}

// view runs fn on the partition of the tenant bound to ctx.
func (s *MemoryStore) view(ctx context.Context, write bool, fn func(t *memTenant) error) error {
	schema, err := tenant.CurrentSchema(ctx)
	if err != nil {
		return err
	}
	if write {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if _, ok := s.bySchema[schema]; !ok {
			return fn(&memTenant{})
		}
	}
	return fn(s.partition(schema))
}

func (s *MemoryStore) ListResidents(ctx context.Context) ([]Resident, error) {
	var out []Resident
	err := s.view(ctx, false, func(t *memTenant) error {
		for _, r := range t.residents {
			out = append(out, r)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (s *MemoryStore) GetResident(ctx context.Context, id string) (Resident, error) {
	var r Resident
	err := s.view(ctx, false, func(t *memTenant) error {
		var ok bool
		if r, ok = t.residents[id]; !ok {
			return ErrNotFound
		}
		return nil
	})
	return r, err
}

func (s *MemoryStore) ListStaff(ctx context.Context) ([]Staff, error) {
	var out []Staff
	err := s.view(ctx, false, func(t *memTenant) error {
		for _, st := range t.staff {
			out = append(out, st)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (s *MemoryStore) CreateStaff(ctx context.Context, st Staff) (Staff, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	err := s.view(ctx, true, func(t *memTenant) error {
		t.staff[st.ID] = st
		return nil
	})
	return st, err
}

func (s *MemoryStore) DeleteStaff(ctx context.Context, id string) error {
	return s.view(ctx, true, func(t *memTenant) error {
		if _, ok := t.staff[id]; !ok {
			return ErrNotFound
		}
		delete(t.staff, id)
		return nil
	})
}

func (s *MemoryStore) IdentityInUse(ctx context.Context, email, phone string) (bool, error) {
	var inUse bool
	match := func(e, p string) bool {
		return (email != "" && strings.EqualFold(e, email)) || (phone != "" && p == phone)
	}
	err := s.view(ctx, false, func(t *memTenant) error {
		for _, r := range t.residents {
			if match(r.Email, r.Phone) {
				inUse = true
				return nil
			}
		}
		for _, st := range t.staff {
			if match(st.Email, st.Phone) {
				inUse = true
				return nil
			}
		}
		return nil
	})
	return inUse, err
}
