package schemaregistry

import (
	"context"
	"fmt"

	"github.com/datazip-inc/kinspect/pkg/avro"
)

// SchemaFetcher resolves a schema id against a registry.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, id uint32) (*avro.Schema, *DecodeError)
}

// Decoder turns registry framed bytes into avro values. A decoder owns its
// cache; keys and values each get their own decoder.
type Decoder struct {
	fetcher SchemaFetcher
	cache   *SchemaCache
}

func NewDecoder(fetcher SchemaFetcher) *Decoder {
	return &Decoder{
		fetcher: fetcher,
		cache:   NewSchemaCache(),
	}
}

// Decode classifies b and decodes it. Absent input yields avro.Null, opaque
// input yields avro.Bytes holding b. A failed schema lookup is remembered:
// later messages with the same id get the same error without a request.
func (d *Decoder) Decode(ctx context.Context, b []byte) (avro.Value, *DecodeError) {
	wire := ParseWireFormat(b)
	switch wire.Kind {
	case Absent:
		return avro.Null{}, nil
	case Opaque:
		return avro.Bytes(wire.Payload), nil
	}

	schema, derr := d.schema(ctx, wire.SchemaID)
	if derr != nil {
		return nil, derr
	}

	value, err := avro.Decode(schema, wire.Payload)
	if err != nil {
		return nil, NewError(PayloadDecode, fmt.Sprintf("payload does not match schema %d", wire.SchemaID), err)
	}
	return value, nil
}

func (d *Decoder) schema(ctx context.Context, id uint32) (*avro.Schema, *DecodeError) {
	if schema, cachedErr, ok := d.cache.Get(id); ok {
		return schema, cachedErr
	}

	schema, derr := d.fetcher.FetchSchema(ctx, id)
	if derr != nil {
		return nil, d.cache.StoreError(id, derr)
	}
	d.cache.StoreSchema(id, schema)
	return schema, nil
}

// PurgeFailedEntries forgets failed schema lookups so the next message with
// one of those ids queries the registry again. Resolved schemas are kept.
func (d *Decoder) PurgeFailedEntries() int {
	return d.cache.PurgeErrors()
}
