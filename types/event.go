package types

import "fmt"

type EventKind int

const (
	// EventData carries one message.
	EventData EventKind = iota
	// EventEndOfPartition reports that a partition reached the high
	// watermark captured at start.
	EventEndOfPartition
	// EventError is a non fatal transport failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventEndOfPartition:
		return "end_of_partition"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is what a transport delivers to the consumption loop.
type Event struct {
	Kind      EventKind
	Partition int32
	// Offset is the next offset to read, set on EventEndOfPartition.
	Offset  int64
	Message *KafkaMessage
	Err     error
}

func DataEvent(msg *KafkaMessage) Event {
	return Event{Kind: EventData, Partition: msg.Partition, Message: msg}
}

func EndOfPartitionEvent(partition int32, offset int64) Event {
	return Event{Kind: EventEndOfPartition, Partition: partition, Offset: offset}
}

func ErrorEvent(partition int32, err error) Event {
	return Event{Kind: EventError, Partition: partition, Err: err}
}
