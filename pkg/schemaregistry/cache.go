package schemaregistry

import "github.com/datazip-inc/kinspect/pkg/avro"

type cacheEntry struct {
	schema *avro.Schema
	err    *DecodeError
}

// SchemaCache memoizes registry lookups by schema id. Ids are immutable in
// the registry so a resolved schema is kept for the cache's lifetime; failed
// lookups stay until PurgeErrors. It grows with every distinct id seen, which
// is bounded by the process lifetime of one inspection run. Not safe for
// concurrent use: each decoder owns its own cache.
type SchemaCache struct {
	entries map[uint32]cacheEntry
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{entries: make(map[uint32]cacheEntry)}
}

// Get returns the cached schema or cached error for id.
func (c *SchemaCache) Get(id uint32) (*avro.Schema, *DecodeError, bool) {
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil, false
	}
	return entry.schema, entry.err, true
}

func (c *SchemaCache) StoreSchema(id uint32, schema *avro.Schema) {
	c.entries[id] = cacheEntry{schema: schema}
}

// StoreError records a failed lookup and returns the error tagged as cached.
func (c *SchemaCache) StoreError(id uint32, err *DecodeError) *DecodeError {
	cached := err.asCached()
	c.entries[id] = cacheEntry{err: cached}
	return cached
}

// PurgeErrors drops every failed entry and reports how many were removed.
func (c *SchemaCache) PurgeErrors() int {
	purged := 0
	for id, entry := range c.entries {
		if entry.err != nil {
			delete(c.entries, id)
			purged++
		}
	}
	return purged
}

func (c *SchemaCache) Len() int {
	return len(c.entries)
}
