package avro

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"
)

// UnsupportedKindError is returned by ToJSON for value kinds that have no
// JSON mapping.
type UnsupportedKindError struct {
	Kind Kind
	Path string
}

func (e *UnsupportedKindError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unsupported avro value kind %s", e.Kind)
	}
	return fmt.Sprintf("unsupported avro value kind %s at %s", e.Kind, e.Path)
}

// OrderedObject is a JSON object that marshals its members in insertion
// order.
type OrderedObject struct {
	Keys   []string
	Values map[string]interface{}
}

func newOrderedObject(size int) *OrderedObject {
	return &OrderedObject{
		Keys:   make([]string, 0, size),
		Values: make(map[string]interface{}, size),
	}
}

func (o *OrderedObject) set(key string, value interface{}) {
	if _, exists := o.Values[key]; !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// MarshalJSON implements json.Marshaler.
func (o *OrderedObject) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for idx, key := range o.Keys {
		if idx > 0 {
			b.WriteByte(',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal object key %s: %w", key, err)
		}
		b.Write(keyBytes)
		b.WriteByte(':')

		valBytes, err := json.Marshal(o.Values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
		}
		b.Write(valBytes)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// ToJSON maps a decoded value onto JSON-marshalable Go values. Records keep
// field order, map entries are sorted by key, enums become their symbol and
// unions are flattened to their branch value. Any failure aborts the whole
// mapping.
func ToJSON(v Value) (interface{}, error) {
	return toJSON(v, "$")
}

func toJSON(v Value, path string) (interface{}, error) {
	switch val := v.(type) {
	case Null:
		return nil, nil
	case Boolean:
		return bool(val), nil
	case String:
		return string(val), nil
	case Int:
		return int32(val), nil
	case Long:
		return int64(val), nil
	case Float:
		// JSON has no NaN or infinity
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return float32(val), nil
	case Double:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return float64(val), nil
	case Array:
		out := make([]interface{}, 0, len(val))
		for idx, item := range val {
			mapped, err := toJSON(item, fmt.Sprintf("%s[%d]", path, idx))
			if err != nil {
				return nil, err
			}
			out = append(out, mapped)
		}
		return out, nil
	case Map:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out := newOrderedObject(len(val))
		for _, key := range keys {
			mapped, err := toJSON(val[key], path+"."+key)
			if err != nil {
				return nil, err
			}
			out.set(key, mapped)
		}
		return out, nil
	case Enum:
		return val.Symbol, nil
	case Union:
		return toJSON(val.Value, path)
	case Record:
		out := newOrderedObject(len(val.Fields))
		for _, field := range val.Fields {
			mapped, err := toJSON(field.Value, path+"."+field.Name)
			if err != nil {
				return nil, err
			}
			out.set(field.Name, mapped)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing avro value at %s", path)
	default:
		return nil, &UnsupportedKindError{Kind: v.Kind(), Path: path}
	}
}
