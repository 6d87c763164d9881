package avro

import (
	"fmt"

	hamba "github.com/hamba/avro/v2"
	"github.com/linkedin/goavro/v2"
)

// Schema pairs the goavro codec used for binary decoding with the typed
// schema tree used to rebuild structure the codec's native form drops
// (record field order, enum positions, union branches).
type Schema struct {
	raw   string
	codec *goavro.Codec
	tree  hamba.Schema
}

// ParseSchema parses an Avro schema document. Both representations must
// accept it.
func ParseSchema(raw string) (*Schema, error) {
	codec, err := goavro.NewCodec(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	// fresh cache per schema: two registry ids may reuse a record name with
	// different definitions
	tree, err := hamba.ParseWithCache(raw, "", &hamba.SchemaCache{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse avro schema: %w", err)
	}

	return &Schema{
		raw:   raw,
		codec: codec,
		tree:  tree,
	}, nil
}

// String returns the schema as registered.
func (s *Schema) String() string {
	return s.raw
}

// Canonical returns the parsing canonical form.
func (s *Schema) Canonical() string {
	return s.codec.CanonicalSchema()
}

// Tree exposes the typed schema.
func (s *Schema) Tree() hamba.Schema {
	return s.tree
}
