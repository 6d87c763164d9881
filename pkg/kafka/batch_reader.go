package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/datazip-inc/kinspect/utils/logger"
)

// batchReader fetches one partition straight from its leader. Unlike
// *kafka.Reader it exposes the position of the fetch cursor, which moves past
// the tail of every record batch even when that tail produced no message
// (transaction markers, compacted records).
type batchReader struct {
	dialer    *kafka.Dialer
	brokers   []string
	topic     string
	partition int
	maxBytes  int

	conn     *kafka.Conn
	batch    *kafka.Batch
	position int64
}

func newBatchReader(dialer *kafka.Dialer, brokers []string, topic string, partition int, maxBytes int, offset int64) *batchReader {
	return &batchReader{
		dialer:    dialer,
		brokers:   brokers,
		topic:     topic,
		partition: partition,
		maxBytes:  maxBytes,
		position:  offset,
	}
}

// Position is the next offset the partition can produce.
func (r *batchReader) Position() int64 {
	return r.position
}

// FetchMessage returns the next message at or after Position. An empty
// fetch is retried until ctx is done.
func (r *batchReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return kafka.Message{}, err
		}

		if r.batch == nil {
			if err := r.fetch(ctx); err != nil {
				return kafka.Message{}, err
			}
		}

		msg, err := r.batch.ReadMessage()
		r.advance(r.batch.Offset())
		if err == nil {
			return msg, nil
		}

		closeErr := r.batch.Close()
		r.batch = nil
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		if !errors.Is(err, io.EOF) {
			r.closeConn()
			return kafka.Message{}, err
		}
		if closeErr != nil {
			r.closeConn()
			return kafka.Message{}, closeErr
		}
	}
}

// fetch opens a batch at Position, dialing the leader first if needed. The
// broker waits for data at most until ctx's deadline.
func (r *batchReader) fetch(ctx context.Context) error {
	if r.conn == nil {
		conn, err := r.dial(ctx)
		if err != nil {
			return err
		}
		if _, err := conn.Seek(r.position, kafka.SeekAbsolute|kafka.SeekDontCheck); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to seek partition %d to %d: %w", r.partition, r.position, err)
		}
		r.conn = conn
	}

	maxWait := time.Second
	if deadline, ok := ctx.Deadline(); ok {
		// leave the broker room to answer an empty fetch before the socket
		// deadline hits
		maxWait = time.Until(deadline) * 4 / 5
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
	}
	if maxWait < time.Millisecond {
		return context.DeadlineExceeded
	}

	r.batch = r.conn.ReadBatchWith(kafka.ReadBatchConfig{
		MinBytes: 1,
		MaxBytes: r.maxBytes,
		MaxWait:  maxWait,
	})
	return nil
}

func (r *batchReader) dial(ctx context.Context) (*kafka.Conn, error) {
	var lastErr error
	for _, broker := range r.brokers {
		conn, err := r.dialer.DialLeader(ctx, "tcp", broker, r.topic, r.partition)
		if err == nil {
			return conn, nil
		}
		logger.Debugf("failed to reach leader of partition %d through %s: %s", r.partition, broker, err)
		lastErr = err
	}
	return nil, fmt.Errorf("failed to dial leader of partition %d: %w", r.partition, lastErr)
}

func (r *batchReader) advance(offset int64) {
	if offset > r.position {
		r.position = offset
	}
}

func (r *batchReader) closeConn() {
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

func (r *batchReader) Close() error {
	if r.batch != nil {
		_ = r.batch.Close()
		r.batch = nil
	}
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
