package schemaregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWireFormat(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		expected WireFormat
	}{
		{
			name:     "nil",
			input:    nil,
			expected: WireFormat{Kind: Absent},
		},
		{
			name:     "empty",
			input:    []byte{},
			expected: WireFormat{Kind: Opaque, Payload: []byte{}},
		},
		{
			name:     "four_bytes_with_magic",
			input:    []byte{0x00, 0x00, 0x00, 0x07},
			expected: WireFormat{Kind: Opaque, Payload: []byte{0x00, 0x00, 0x00, 0x07}},
		},
		{
			name:     "wrong_magic",
			input:    []byte{0x01, 0x00, 0x00, 0x00, 0x07, 0x02},
			expected: WireFormat{Kind: Opaque, Payload: []byte{0x01, 0x00, 0x00, 0x00, 0x07, 0x02}},
		},
		{
			name:     "plain_text",
			input:    []byte("hello world"),
			expected: WireFormat{Kind: Opaque, Payload: []byte("hello world")},
		},
		{
			name:     "schema_id_7",
			input:    []byte{0x00, 0x00, 0x00, 0x00, 0x07, 0x02, 0x61},
			expected: WireFormat{Kind: Encoded, SchemaID: 7, Payload: []byte{0x02, 0x61}},
		},
		{
			name:     "header_only",
			input:    []byte{0x00, 0x00, 0x00, 0x01, 0x00},
			expected: WireFormat{Kind: Encoded, SchemaID: 256, Payload: []byte{}},
		},
		{
			name:     "max_schema_id",
			input:    []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0x00},
			expected: WireFormat{Kind: Encoded, SchemaID: 4294967295, Payload: []byte{0x00}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseWireFormat(tc.input))
		})
	}
}

func TestParseWireFormat_ShortInputIsNeverEncoded(t *testing.T) {
	for size := 0; size <= 4; size++ {
		input := make([]byte, size)
		assert.Equal(t, Opaque, ParseWireFormat(input).Kind, "size %d", size)
	}
	for first := 1; first < 256; first++ {
		input := []byte{byte(first), 0, 0, 0, 1, 2}
		assert.Equal(t, Opaque, ParseWireFormat(input).Kind, "first byte %d", first)
	}
}
