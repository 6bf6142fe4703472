// Package modelcache keeps one compiled, schema-qualified data model per tenant.
package modelcache

import "fmt"

// Key identifies a compiled model. Equal (StoreType, Schema) pairs are equal keys,
// so Key can be used directly as a map key.
type Key struct {
	StoreType string
	Schema    string
}

// KeyFor derives the cache key for a store type and tenant schema. It is pure and
// safe to call from any goroutine.
func KeyFor(storeType, schema string) Key {
	return Key{StoreType: storeType, Schema: schema}
}

// String renders the key unambiguously; schemas containing separators cannot collide.
func (k Key) String() string {
	return fmt.Sprintf("%q/%q", k.StoreType, k.Schema)
}
