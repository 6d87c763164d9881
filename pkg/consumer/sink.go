package consumer

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/kinspect/types"
)

// Sink receives decoded records. A *RecordEncodingError means only that
// record was lost; any other error means the sink is unusable.
type Sink interface {
	Write(record types.Record) error
}

// RecordEncodingError reports a record that cannot be rendered. Nothing was
// written for it.
type RecordEncodingError struct {
	Partition int32
	Offset    int64
	Err       error
}

func (e *RecordEncodingError) Error() string {
	return fmt.Sprintf("failed to marshal record at partition %d offset %d: %s", e.Partition, e.Offset, e.Err)
}

func (e *RecordEncodingError) Unwrap() error {
	return e.Err
}

// JSONLineSink writes each record as one JSON line with a single write.
type JSONLineSink struct {
	w io.Writer
}

func NewJSONLineSink(w io.Writer) *JSONLineSink {
	return &JSONLineSink{w: w}
}

func (s *JSONLineSink) Write(record types.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return &RecordEncodingError{Partition: record.Partition, Offset: record.Offset, Err: err}
	}
	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}
