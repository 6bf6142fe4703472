package modelcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"bldgate/pkg/tenant"
)

// ErrUnknownEntity is returned by Model.Table for an unmapped entity.
var ErrUnknownEntity = errors.New("unknown entity")

// Mapping maps logical entity names to unqualified table names.
type Mapping map[string]string

// Model is the compiled mapping for one Key. It is immutable once built.
type Model struct {
	Key    Key
	tables map[string]string
}

// Table returns the quoted, schema-qualified table for entity.
func (m *Model) Table(entity string) (string, error) {
	t, ok := m.tables[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return t, nil
}

// SearchPath is the quoted schema identifier for set_config('search_path', ...).
func (m *Model) SearchPath() string {
	return pgx.Identifier{m.Key.Schema}.Sanitize()
}

// Entities lists mapped entity names in sorted order.
func (m *Model) Entities() []string {
	out := make([]string, 0, len(m.tables))
	for e := range m.tables {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Compile builds the model for key from mapping.
func Compile(key Key, mapping Mapping) *Model {
	m := &Model{Key: key, tables: make(map[string]string, len(mapping))}
	for entity, table := range mapping {
		m.tables[entity] = pgx.Identifier{key.Schema, table}.Sanitize()
	}
	return m
}

// Cache holds compiled models, one per tenant schema, shared by all requests.
type Cache struct {
	storeType string
	mapping   Mapping

	mu     sync.RWMutex
	models map[Key]*Model
	group  singleflight.Group

	compiles atomic.Int64
}

// New returns an empty cache compiling mapping for storeType.
func New(storeType string, mapping Mapping) *Cache {
	cp := make(Mapping, len(mapping))
	for k, v := range mapping {
		cp[k] = v
	}
	return &Cache{storeType: storeType, mapping: cp, models: map[Key]*Model{}}
}

// For returns the model for schema, compiling it on first use.
func (c *Cache) For(schema string) *Model {
	key := KeyFor(c.storeType, schema)
	c.mu.RLock()
	m, ok := c.models[key]
	c.mu.RUnlock()
	if ok {
		return m
	}
	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		m, ok := c.models[key]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}
		m = Compile(key, c.mapping)
		c.compiles.Add(1)
		c.mu.Lock()
		c.models[key] = m
		c.mu.Unlock()
		return m, nil
	})
	return v.(*Model)
}

// ForContext returns the model for the tenant bound to ctx.
func (c *Cache) ForContext(ctx context.Context) (*Model, error) {
	schema, err := tenant.CurrentSchema(ctx)
	if err != nil {
		return nil, err
	}
	return c.For(schema), nil
}

// Compilations reports how many models have been compiled.
func (c *Cache) Compilations() int64 { return c.compiles.Load() }

// Len reports how many models are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
