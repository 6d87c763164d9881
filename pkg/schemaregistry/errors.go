package schemaregistry

import "fmt"

// Kind classifies a decode failure.
type Kind int

const (
	URLConstruction Kind = iota + 1
	Network
	UnexpectedStatus
	InvalidResponse
	SchemaParse
	PayloadDecode
	UnsupportedValue
)

func (k Kind) String() string {
	switch k {
	case URLConstruction:
		return "url construction"
	case Network:
		return "network"
	case UnexpectedStatus:
		return "unexpected status"
	case InvalidResponse:
		return "invalid response"
	case SchemaParse:
		return "schema parse"
	case PayloadDecode:
		return "payload decode"
	case UnsupportedValue:
		return "unsupported value"
	default:
		return "unknown"
	}
}

// DecodeError is the classified failure of a registry lookup or payload
// decode. Only Network errors are retriable. Cached is set on errors served
// from, or stored into, a decoder's schema cache.
type DecodeError struct {
	Kind      Kind
	Message   string
	Status    int
	Retriable bool
	Cached    bool
	Cause     error
}

func NewError(kind Kind, message string, cause error) *DecodeError {
	return &DecodeError{
		Kind:      kind,
		Message:   message,
		Retriable: kind == Network,
		Cause:     cause,
	}
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func (e *DecodeError) asCached() *DecodeError {
	cached := *e
	cached.Cached = true
	return &cached
}
