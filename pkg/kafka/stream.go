package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
)

const errorBackoff = 500 * time.Millisecond

// PartitionReader reads a single partition in offset order.
type PartitionReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	// Position is the next offset the partition can produce. It moves past
	// records that are never delivered, such as transaction markers.
	Position() int64
	Close() error
}

type StreamConfig struct {
	Topic       string
	IdleTimeout time.Duration
	NewReader   func(*types.PartitionSnapshot) (PartitionReader, error)
}

// Stream reads every partition from its low watermark up to the high
// watermark captured at start and fans the results into one channel. Each
// partition ends with exactly one EventEndOfPartition unless the stream is
// stopped first.
type Stream struct {
	config StreamConfig
	events chan types.Event
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	readers []PartitionReader

	done     chan struct{}
	closeErr error
}

func NewStream(parent context.Context, config StreamConfig, snapshots []*types.PartitionSnapshot) *Stream {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = constants.DefaultIdleTimeout
	}

	ctx, cancel := context.WithCancel(parent)
	group, groupCtx := errgroup.WithContext(ctx)
	s := &Stream{
		config: config,
		events: make(chan types.Event, constants.DefaultEventBuffer),
		cancel: cancel,
		group:  group,
		done:   make(chan struct{}),
	}

	for _, snapshot := range snapshots {
		snapshot := *snapshot
		group.Go(func() error {
			return s.readPartition(groupCtx, &snapshot)
		})
	}

	go func() {
		defer close(s.done)
		defer close(s.events)
		defer cancel()

		if err := group.Wait(); err != nil {
			s.closeErr = multierror.Append(s.closeErr, err)
		}
		if err := s.closeReaders(); err != nil {
			s.closeErr = multierror.Append(s.closeErr, err)
		}
	}()

	return s
}

// Events delivers data, end of partition and error events. It is closed
// after every partition goroutine returned.
func (s *Stream) Events() <-chan types.Event {
	return s.events
}

// Stop cancels all partition reads. Events already queued stay readable.
func (s *Stream) Stop() {
	s.cancel()
}

// Wait blocks until the stream shut down and returns reader close errors.
func (s *Stream) Wait() error {
	<-s.done
	return s.closeErr
}

func (s *Stream) readPartition(ctx context.Context, snapshot *types.PartitionSnapshot) error {
	if snapshot.Empty() {
		logger.Debugf("%s of topic %s has no data", snapshot, s.config.Topic)
		s.emit(ctx, types.EndOfPartitionEvent(snapshot.Partition, snapshot.High))
		return nil
	}

	reader, err := s.config.NewReader(snapshot)
	if err != nil {
		// without a reader the partition can never complete, so the whole
		// stream is torn down
		err = fmt.Errorf("partition %d: %w", snapshot.Partition, err)
		s.emit(ctx, types.ErrorEvent(snapshot.Partition, err))
		return err
	}
	s.track(reader)

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, s.config.IdleTimeout)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()

		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// transaction markers and compaction gaps move the position
				// without producing a message at High-1
				if position := reader.Position(); position >= snapshot.High {
					s.emit(ctx, types.EndOfPartitionEvent(snapshot.Partition, position))
					return nil
				}
				continue
			}

			if !s.emit(ctx, types.ErrorEvent(snapshot.Partition, fmt.Errorf("fetch from partition %d: %w", snapshot.Partition, err))) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}

		if msg.Offset >= snapshot.High {
			// written after the run started
			s.emit(ctx, types.EndOfPartitionEvent(snapshot.Partition, snapshot.High))
			return nil
		}

		if !s.emit(ctx, types.DataEvent(toMessage(msg))) {
			return nil
		}

		if msg.Offset+1 >= snapshot.High {
			s.emit(ctx, types.EndOfPartitionEvent(snapshot.Partition, msg.Offset+1))
			return nil
		}
	}
}

func (s *Stream) emit(ctx context.Context, event types.Event) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) track(reader PartitionReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readers = append(s.readers, reader)
}

func (s *Stream) closeReaders() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var multErr error
	for _, reader := range s.readers {
		if err := reader.Close(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}
	s.readers = nil
	if multErr != nil {
		logger.Warnf("failed to close partition readers: %s", multErr)
	}
	return multErr
}

func toMessage(msg kafka.Message) *types.KafkaMessage {
	return &types.KafkaMessage{
		Topic:     msg.Topic,
		Partition: int32(msg.Partition),
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}
}
