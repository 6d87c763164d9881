package types

import (
	"fmt"
	"strings"
)

type DeserializerKind string

const (
	RawDeserializer  DeserializerKind = "raw"
	AvroDeserializer DeserializerKind = "avro"
)

// ParseDeserializerKind accepts raw, string (an alias of raw) and avro.
func ParseDeserializerKind(s string) (DeserializerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "string":
		return RawDeserializer, nil
	case "avro":
		return AvroDeserializer, nil
	default:
		return "", fmt.Errorf("unknown deserializer %q, expected raw or avro", s)
	}
}
