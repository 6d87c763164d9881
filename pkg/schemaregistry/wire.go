package schemaregistry

import "encoding/binary"

const (
	magicByte  byte = 0x00
	headerSize      = 5
)

// WireKind tells how a key or value was framed on the topic.
type WireKind int

const (
	// Absent is a null key or value.
	Absent WireKind = iota
	// Opaque bytes do not carry the registry header and pass through as is.
	Opaque
	// Encoded bytes carry the magic byte and a schema id ahead of an avro
	// payload.
	Encoded
)

// WireFormat is a classified key or value.
type WireFormat struct {
	Kind     WireKind
	SchemaID uint32
	// Payload is the avro datum for Encoded, the full input for Opaque.
	Payload []byte
}

// ParseWireFormat classifies b. Anything that is not a magic byte followed
// by a 4 byte big-endian schema id and at least zero payload bytes is
// opaque, never an error.
func ParseWireFormat(b []byte) WireFormat {
	if b == nil {
		return WireFormat{Kind: Absent}
	}
	if len(b) < headerSize || b[0] != magicByte {
		return WireFormat{Kind: Opaque, Payload: b}
	}
	return WireFormat{
		Kind:     Encoded,
		SchemaID: binary.BigEndian.Uint32(b[1:headerSize]),
		Payload:  b[headerSize:],
	}
}
