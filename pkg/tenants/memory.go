package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// seedEntry is the on-disk / env shape of a registry row.
type seedEntry struct {
	ID         string `json:"id" yaml:"id"`
	Code       string `json:"code" yaml:"code"`
	SchemaName string `json:"schema_name" yaml:"schema_name"`
	Name       string `json:"building_name" yaml:"building_name"`
	Status     int    `json:"status" yaml:"status"`
}

func (s seedEntry) entry() Entry {
	return Entry{ID: s.ID, Code: s.Code, SchemaName: s.SchemaName, Name: s.Name, Active: s.Status == StatusActive}
}

// MemoryRegistry is an in-process Registry used for dev and tests.
type MemoryRegistry struct {
	log      *zap.SugaredLogger
	mu       sync.RWMutex
	bySchema map[string]Entry
}

// NewMemoryRegistry returns a registry holding the given entries.
func NewMemoryRegistry(log *zap.SugaredLogger, entries ...Entry) *MemoryRegistry {
	m := &MemoryRegistry{log: log, bySchema: map[string]Entry{}}
	for _, e := range entries {
		m.bySchema[e.SchemaName] = e
	}
	return m
}

// NewMemoryRegistryFromEnv seeds a registry from TENANT_SEED_JSON, or TENANT_SEED_FILE (YAML),
// falling back to a single active dev building.
func NewMemoryRegistryFromEnv(log *zap.SugaredLogger) (*MemoryRegistry, error) {
	m := NewMemoryRegistry(log)
	if seed := os.Getenv("TENANT_SEED_JSON"); seed != "" {
		var entries []seedEntry
		if err := json.Unmarshal([]byte(seed), &entries); err != nil {
			return nil, fmt.Errorf("parse TENANT_SEED_JSON: %w", err)
		}
		m.load(entries)
		return m, nil
	}
	if path := os.Getenv("TENANT_SEED_FILE"); path != "" {
		if err := m.LoadYAML(path); err != nil {
			return nil, err
		}
		return m, nil
	}
	m.Put(Entry{
		ID: "00000000-0000-0000-0000-000000000001", Code: "DEV", SchemaName: "building",
		Name: "Development building", Active: true,
	})
	return m, nil
}

// LoadYAML merges entries from a YAML list file into the registry.
func (m *MemoryRegistry) LoadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tenant seed %s: %w", path, err)
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse tenant seed %s: %w", path, err)
	}
	m.load(entries)
	return nil
}

func (m *MemoryRegistry) load(entries []seedEntry) {
	for _, s := range entries {
		m.Put(s.entry())
	}
	if m.log != nil {
		m.log.Infow("tenant registry seeded", "count", len(entries))
	}
}

// Put adds or replaces an entry.
func (m *MemoryRegistry) Put(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySchema[e.SchemaName] = e
}

func (m *MemoryRegistry) Lookup(ctx context.Context, schema string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.bySchema[schema]; ok {
		return e, nil
	}
	return Entry{}, ErrNotFound
}

func (m *MemoryRegistry) ListActive(ctx context.Context) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.bySchema))
	for _, e := range m.bySchema {
		if e.Active {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SchemaName < out[j].SchemaName })
	return out, nil
}
