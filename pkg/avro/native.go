package avro

import (
	"fmt"

	hamba "github.com/hamba/avro/v2"
)

type logicalSchema interface {
	Logical() hamba.LogicalSchema
}

// Decode decodes one binary datum against the schema. Trailing bytes after
// the datum are ignored.
func Decode(schema *Schema, payload []byte) (Value, error) {
	native, _, err := schema.codec.NativeFromBinary(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode avro payload: %w", err)
	}

	return fromNative(schema.tree, native)
}

// fromNative walks the typed schema alongside goavro's native form.
func fromNative(s hamba.Schema, native interface{}) (Value, error) {
	if ls, ok := s.(logicalSchema); ok && ls.Logical() != nil {
		return Logical{Type: string(ls.Logical().Type()), Native: native}, nil
	}

	switch s.Type() {
	case hamba.Ref:
		return fromNative(s.(*hamba.RefSchema).Schema(), native)
	case hamba.Null:
		if native != nil {
			return nil, mismatch(s, native)
		}
		return Null{}, nil
	case hamba.Boolean:
		v, ok := native.(bool)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Boolean(v), nil
	case hamba.Int:
		v, ok := native.(int32)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Int(v), nil
	case hamba.Long:
		v, ok := native.(int64)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Long(v), nil
	case hamba.Float:
		v, ok := native.(float32)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Float(v), nil
	case hamba.Double:
		v, ok := native.(float64)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Double(v), nil
	case hamba.String:
		v, ok := native.(string)
		if !ok {
			return nil, mismatch(s, native)
		}
		return String(v), nil
	case hamba.Bytes:
		v, ok := native.([]byte)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Bytes(v), nil
	case hamba.Fixed:
		v, ok := native.([]byte)
		if !ok {
			return nil, mismatch(s, native)
		}
		return Fixed{Name: s.(*hamba.FixedSchema).FullName(), Bytes: v}, nil
	case hamba.Enum:
		return enumFromNative(s.(*hamba.EnumSchema), native)
	case hamba.Array:
		items, ok := native.([]interface{})
		if !ok {
			return nil, mismatch(s, native)
		}
		itemSchema := s.(*hamba.ArraySchema).Items()
		out := make(Array, 0, len(items))
		for idx, item := range items {
			v, err := fromNative(itemSchema, item)
			if err != nil {
				return nil, fmt.Errorf("array item %d: %w", idx, err)
			}
			out = append(out, v)
		}
		return out, nil
	case hamba.Map:
		entries, ok := native.(map[string]interface{})
		if !ok {
			return nil, mismatch(s, native)
		}
		valueSchema := s.(*hamba.MapSchema).Values()
		out := make(Map, len(entries))
		for key, entry := range entries {
			v, err := fromNative(valueSchema, entry)
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	case hamba.Record, hamba.Error:
		return recordFromNative(s.(*hamba.RecordSchema), native)
	case hamba.Union:
		return unionFromNative(s.(*hamba.UnionSchema), native)
	default:
		return nil, fmt.Errorf("unknown avro schema type %s", s.Type())
	}
}

func enumFromNative(s *hamba.EnumSchema, native interface{}) (Value, error) {
	symbol, ok := native.(string)
	if !ok {
		return nil, mismatch(s, native)
	}
	for idx, candidate := range s.Symbols() {
		if candidate == symbol {
			return Enum{Index: idx, Symbol: symbol}, nil
		}
	}
	return nil, fmt.Errorf("symbol %q is not part of enum %s", symbol, s.FullName())
}

func recordFromNative(s *hamba.RecordSchema, native interface{}) (Value, error) {
	fields, ok := native.(map[string]interface{})
	if !ok {
		return nil, mismatch(s, native)
	}

	record := Record{Name: s.FullName(), Fields: make([]Field, 0, len(s.Fields()))}
	for _, field := range s.Fields() {
		v, err := fromNative(field.Type(), fields[field.Name()])
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", s.FullName(), field.Name(), err)
		}
		record.Fields = append(record.Fields, Field{Name: field.Name(), Value: v})
	}
	return record, nil
}

// goavro encodes a non-null union datum as a single-entry map keyed by the
// branch name, and the null branch as nil.
func unionFromNative(s *hamba.UnionSchema, native interface{}) (Value, error) {
	if native == nil {
		for idx, branch := range s.Types() {
			if branch.Type() == hamba.Null {
				return Union{Index: idx, Value: Null{}}, nil
			}
		}
		return nil, fmt.Errorf("null datum for union without a null branch")
	}

	wrapped, ok := native.(map[string]interface{})
	if !ok || len(wrapped) != 1 {
		return nil, mismatch(s, native)
	}

	for name, inner := range wrapped {
		for idx, branch := range s.Types() {
			if branchName(branch) != name {
				continue
			}
			v, err := fromNative(branch, inner)
			if err != nil {
				return nil, fmt.Errorf("union branch %s: %w", name, err)
			}
			return Union{Index: idx, Value: v}, nil
		}
		return nil, fmt.Errorf("union has no branch named %q", name)
	}
	return nil, mismatch(s, native)
}

// branchName mirrors the names goavro uses for union branches.
func branchName(s hamba.Schema) string {
	if ref, ok := s.(*hamba.RefSchema); ok {
		return ref.Schema().FullName()
	}
	if named, ok := s.(hamba.NamedSchema); ok {
		return named.FullName()
	}
	if ls, ok := s.(logicalSchema); ok && ls.Logical() != nil {
		return string(s.Type()) + "." + string(ls.Logical().Type())
	}
	return string(s.Type())
}

func mismatch(s hamba.Schema, native interface{}) error {
	return fmt.Errorf("decoded %T does not match schema type %s", native, s.Type())
}
