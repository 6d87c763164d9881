package types

import "time"

// KafkaMessage is one message as fetched from a partition.
type KafkaMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// TimestampMillis is the message timestamp in epoch milliseconds, or -1 when
// the broker did not provide one.
func (m *KafkaMessage) TimestampMillis() int64 {
	if m.Time.IsZero() {
		return -1
	}
	return m.Time.UnixMilli()
}

// Record is one line of output.
type Record struct {
	Key       any    `json:"key"`
	Value     any    `json:"value"`
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
	Timestamp int64  `json:"timestamp"`
}

func NewRecord(msg *KafkaMessage, key, value any) Record {
	return Record{
		Key:       key,
		Value:     value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.TimestampMillis(),
	}
}
