package avro

// Kind identifies the shape of a decoded Avro value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindFixed
	KindArray
	KindMap
	KindEnum
	KindUnion
	KindRecord
	KindLogical
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBoolean: "boolean",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindBytes:   "bytes",
	KindFixed:   "fixed",
	KindArray:   "array",
	KindMap:     "map",
	KindEnum:    "enum",
	KindUnion:   "union",
	KindRecord:  "record",
	KindLogical: "logical",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a decoded Avro datum. The set of implementations is closed to
// this package.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	Null    struct{}
	Boolean bool
	Int     int32
	Long    int64
	Float   float32
	Double  float64
	String  string
	Bytes   []byte
	Array   []Value
	Map     map[string]Value
)

// Fixed is a fixed-size byte sequence of a named fixed type.
type Fixed struct {
	Name  string
	Bytes []byte
}

// Enum carries both the symbol position and its name.
type Enum struct {
	Index  int
	Symbol string
}

// Union holds the resolved branch; Index is its position in the union.
type Union struct {
	Index int
	Value Value
}

// Field is one record field; Record keeps schema declaration order.
type Field struct {
	Name  string
	Value Value
}

type Record struct {
	Name   string
	Fields []Field
}

// Logical is any value annotated with a logical type (timestamp-millis,
// decimal, date, uuid, ...). Native is whatever the codec produced.
type Logical struct {
	Type   string
	Native interface{}
}

func (Null) Kind() Kind    { return KindNull }
func (Boolean) Kind() Kind { return KindBoolean }
func (Int) Kind() Kind     { return KindInt }
func (Long) Kind() Kind    { return KindLong }
func (Float) Kind() Kind   { return KindFloat }
func (Double) Kind() Kind  { return KindDouble }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (Fixed) Kind() Kind   { return KindFixed }
func (Array) Kind() Kind   { return KindArray }
func (Map) Kind() Kind     { return KindMap }
func (Enum) Kind() Kind    { return KindEnum }
func (Union) Kind() Kind   { return KindUnion }
func (Record) Kind() Kind  { return KindRecord }
func (Logical) Kind() Kind { return KindLogical }

func (Null) sealed()    {}
func (Boolean) sealed() {}
func (Int) sealed()     {}
func (Long) sealed()    {}
func (Float) sealed()   {}
func (Double) sealed()  {}
func (String) sealed()  {}
func (Bytes) sealed()   {}
func (Fixed) sealed()   {}
func (Array) sealed()   {}
func (Map) sealed()     {}
func (Enum) sealed()    {}
func (Union) sealed()   {}
func (Record) sealed()  {}
func (Logical) sealed() {}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}
