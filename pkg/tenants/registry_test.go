package tenants

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryFromEnvJSON(t *testing.T) {
	t.Setenv("TENANT_SEED_JSON", `[
		{"id":"a","code":"BLD01","schema_name":"bld-01","building_name":"Tower A","status":1},
		{"id":"b","code":"BLD02","schema_name":"bld-02","building_name":"Tower B","status":0}
	]`)
	reg, err := NewMemoryRegistryFromEnv(nil)
	require.NoError(t, err)

	e, err := reg.Lookup(context.Background(), "bld-01")
	require.NoError(t, err)
	assert.True(t, e.Active)
	assert.Equal(t, "Tower A", e.Name)

	e, err = reg.Lookup(context.Background(), "bld-02")
	require.NoError(t, err)
	assert.False(t, e.Active)

	_, err = reg.Lookup(context.Background(), "bld-09")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := reg.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bld-01", active[0].SchemaName)
}

func TestMemoryRegistryFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: c
  code: BLD03
  schema_name: bld-03
  building_name: Tower C
  status: 1
- id: d
  code: BLD04
  schema_name: bld-04
  building_name: Tower D
  status: 1
`), 0o600))
	t.Setenv("TENANT_SEED_JSON", "")
	t.Setenv("TENANT_SEED_FILE", path)

	reg, err := NewMemoryRegistryFromEnv(nil)
	require.NoError(t, err)
	active, err := reg.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "bld-03", active[0].SchemaName)
	assert.Equal(t, "bld-04", active[1].SchemaName)
}

func TestMemoryRegistryDevDefault(t *testing.T) {
	t.Setenv("TENANT_SEED_JSON", "")
	t.Setenv("TENANT_SEED_FILE", "")
	reg, err := NewMemoryRegistryFromEnv(nil)
	require.NoError(t, err)
	e, err := reg.Lookup(context.Background(), "building")
	require.NoError(t, err)
	assert.True(t, e.Active)
}

type countingRegistry struct {
	Registry
	lookups atomic.Int32
}

func (c *countingRegistry) Lookup(ctx context.Context, schema string) (Entry, error) {
	c.lookups.Add(1)
	return c.Registry.Lookup(ctx, schema)
}

func TestCachedRegistry(t *testing.T) {
	mem := NewMemoryRegistry(nil, Entry{ID: "a", SchemaName: "bld-01", Active: true})
	inner := &countingRegistry{Registry: mem}
	reg := NewCachedRegistry(inner, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e, err := reg.Lookup(ctx, "bld-01")
		require.NoError(t, err)
		assert.Equal(t, "a", e.ID)
	}
	assert.EqualValues(t, 1, inner.lookups.Load())

	// misses are not cached
	_, err := reg.Lookup(ctx, "bld-02")
	assert.ErrorIs(t, err, ErrNotFound)
	mem.Put(Entry{ID: "b", SchemaName: "bld-02", Active: true})
	e, err := reg.Lookup(ctx, "bld-02")
	require.NoError(t, err)
	assert.Equal(t, "b", e.ID)

	reg.Purge()
	_, err = reg.Lookup(ctx, "bld-01")
	require.NoError(t, err)
	assert.EqualValues(t, 4, inner.lookups.Load())
}

func TestCachedRegistryZeroTTLDisablesCaching(t *testing.T) {
	mem := NewMemoryRegistry(nil, Entry{ID: "a", SchemaName: "bld-01", Active: true})
	inner := &countingRegistry{Registry: mem}
	reg := NewCachedRegistry(inner, 16, 0)
	ctx := context.Background()

	e, err := reg.Lookup(ctx, "bld-01")
	require.NoError(t, err)
	assert.True(t, e.Active)

	mem.Put(Entry{ID: "a", SchemaName: "bld-01", Active: false})
	e, err = reg.Lookup(ctx, "bld-01")
	require.NoError(t, err)
	assert.False(t, e.Active, "deactivation is visible on the next lookup")
	assert.EqualValues(t, 2, inner.lookups.Load())
	reg.Purge()
}

func TestCachedRegistryDeactivationBoundedByTTL(t *testing.T) {
	mem := NewMemoryRegistry(nil, Entry{ID: "a", SchemaName: "bld-01", Active: true})
	reg := NewCachedRegistry(mem, 16, 20*time.Millisecond)
	ctx := context.Background()

	_, err := reg.Lookup(ctx, "bld-01")
	require.NoError(t, err)
	mem.Put(Entry{ID: "a", SchemaName: "bld-01", Active: false})
	require.Eventually(t, func() bool {
		e, err := reg.Lookup(ctx, "bld-01")
		return err == nil && !e.Active
	}, 2*time.Second, 10*time.Millisecond)
}
