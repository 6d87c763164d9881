package consumer

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/kinspect/pkg/avro"
	"github.com/datazip-inc/kinspect/pkg/schemaregistry"
)

// Deserializer turns a message key or value into a JSON-marshalable value.
// A nil input is a null key or value.
type Deserializer interface {
	Deserialize(ctx context.Context, b []byte) (any, error)
}

// FailurePurger is implemented by deserializers that remember failed
// schema lookups.
type FailurePurger interface {
	PurgeFailedEntries() int
}

// RawDeserializer emits JSON payloads as JSON and anything else that is
// valid UTF-8 as a string.
type RawDeserializer struct{}

func (RawDeserializer) Deserialize(_ context.Context, b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, b); err == nil && compacted.Len() > 0 {
		return json.RawMessage(compacted.Bytes()), nil
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	return nil, fmt.Errorf("%d bytes are neither JSON nor UTF-8 text", len(b))
}

// AvroDeserializer decodes registry framed Avro. Bytes without the registry
// header are rendered like RawDeserializer does, or as a base64 string when
// they are not text.
type AvroDeserializer struct {
	decoder *schemaregistry.Decoder
}

func NewAvroDeserializer(decoder *schemaregistry.Decoder) *AvroDeserializer {
	return &AvroDeserializer{decoder: decoder}
}

func (a *AvroDeserializer) Deserialize(ctx context.Context, b []byte) (any, error) {
	if schemaregistry.ParseWireFormat(b).Kind == schemaregistry.Opaque {
		if v, err := (RawDeserializer{}).Deserialize(ctx, b); err == nil {
			return v, nil
		}
		// []byte marshals to base64
		return append([]byte(nil), b...), nil
	}

	value, derr := a.decoder.Decode(ctx, b)
	if derr != nil {
		return nil, derr
	}

	mapped, err := avro.ToJSON(value)
	if err != nil {
		return nil, schemaregistry.NewError(schemaregistry.UnsupportedValue, "decoded value has no JSON form", err)
	}
	return mapped, nil
}

func (a *AvroDeserializer) PurgeFailedEntries() int {
	return a.decoder.PurgeFailedEntries()
}
