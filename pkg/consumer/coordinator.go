package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
)

// Transport is the message source of a bounded run.
type Transport interface {
	Partitions(ctx context.Context, topic string) ([]int32, error)
	Watermarks(ctx context.Context, topic string, partitions []int32) ([]*types.PartitionSnapshot, error)
	// Subscribe delivers events for every partition starting at its low
	// watermark. The channel closes after Stop, or once every partition
	// reported its end.
	Subscribe(ctx context.Context, topic string, snapshots []*types.PartitionSnapshot) (<-chan types.Event, error)
	Stop()
}

type Options struct {
	Topic     string
	Transport Transport
	Key       Deserializer
	Value     Deserializer
	Sink      Sink
	// FailFast aborts the run on the first record that cannot be decoded
	// instead of skipping it.
	FailFast bool
	// PurgeSignal, when set, makes the loop drop cached schema lookup
	// failures of both deserializers between two events.
	PurgeSignal <-chan struct{}
}

// Summary describes a finished run.
type Summary struct {
	Partitions          int
	PartitionsCompleted int
	Records             int64
	DecodeFailures      int64
	TransportErrors     int64
}

// Coordinator consumes a topic from the low watermarks captured at start up
// to the high watermarks captured at start, then stops.
type Coordinator struct {
	opts    Options
	tracker *Tracker
	summary Summary
	aborted error
}

func NewCoordinator(opts Options) (*Coordinator, error) {
	switch {
	case opts.Topic == "":
		return nil, errors.New("topic is required")
	case opts.Transport == nil:
		return nil, errors.New("transport is required")
	case opts.Key == nil || opts.Value == nil:
		return nil, errors.New("key and value deserializers are required")
	case opts.Sink == nil:
		return nil, errors.New("sink is required")
	}
	return &Coordinator{opts: opts}, nil
}

// Run captures watermarks, subscribes and processes events until every
// partition reported its end or ctx is done. Startup failures are returned
// before anything is consumed.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	if c.tracker != nil {
		return c.summary, errors.New("coordinator already ran")
	}

	partitions, err := c.opts.Transport.Partitions(ctx, c.opts.Topic)
	if err != nil {
		return c.summary, fmt.Errorf("failed to resolve partitions of topic %s: %w", c.opts.Topic, err)
	}

	snapshots, err := c.opts.Transport.Watermarks(ctx, c.opts.Topic, partitions)
	if err != nil {
		return c.summary, fmt.Errorf("failed to capture watermarks of topic %s: %w", c.opts.Topic, err)
	}
	for _, snapshot := range snapshots {
		logger.Debugf("captured %s", snapshot)
	}

	c.tracker = NewTracker(snapshots)
	c.summary.Partitions = len(snapshots)
	if c.tracker.AllCompleted() {
		c.tracker.Stopped()
		return c.summary, nil
	}

	events, err := c.opts.Transport.Subscribe(ctx, c.opts.Topic, snapshots)
	if err != nil {
		return c.summary, fmt.Errorf("failed to subscribe to topic %s: %w", c.opts.Topic, err)
	}
	logger.Infof("reading %d partitions of topic %s", len(snapshots), c.opts.Topic)

	c.loop(ctx, events)
	c.tracker.Stopped()

	switch {
	case c.aborted != nil:
		return c.summary, c.aborted
	case c.tracker.AllCompleted():
		return c.summary, nil
	case ctx.Err() != nil:
		return c.summary, ctx.Err()
	default:
		return c.summary, fmt.Errorf("transport closed with %d of %d partitions incomplete", c.tracker.Remaining(), c.summary.Partitions)
	}
}

// State is the run state; Stopped once Run returned.
func (c *Coordinator) State() types.RunState {
	if c.tracker == nil {
		return types.Running
	}
	return c.tracker.State()
}

// loop drains events until the transport closes the channel. After a stop
// has been requested the loop keeps draining what is already in flight.
func (c *Coordinator) loop(ctx context.Context, events <-chan types.Event) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, event)
		case <-c.opts.PurgeSignal:
			c.purgeFailedLookups()
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, event types.Event) {
	switch event.Kind {
	case types.EventData:
		if c.aborted != nil {
			return
		}
		c.processMessage(ctx, event.Message)
	case types.EventEndOfPartition:
		newly, stop, err := c.tracker.Complete(event.Partition)
		if err != nil {
			logger.Warnf("%s", err)
			return
		}
		if !newly {
			return
		}
		c.summary.PartitionsCompleted++
		snapshot, _ := c.tracker.Snapshot(event.Partition)
		logger.Infof("reached end of partition [%d] at offset %d", event.Partition, snapshot.High)
		if stop && c.aborted == nil {
			logger.Debugf("all %d partitions completed, stopping", c.summary.Partitions)
			c.opts.Transport.Stop()
		}
	case types.EventError:
		c.summary.TransportErrors++
		logger.Warnf("transport error on partition [%d]: %s", event.Partition, event.Err)
	default:
		logger.Warnf("ignoring unknown event %s", event.Kind)
	}
}

func (c *Coordinator) processMessage(ctx context.Context, msg *types.KafkaMessage) {
	record, err := c.decode(ctx, msg)
	if err != nil {
		c.decodeFailed(msg, err)
		return
	}

	if err := c.opts.Sink.Write(record); err != nil {
		var encodingErr *RecordEncodingError
		if errors.As(err, &encodingErr) {
			c.decodeFailed(msg, err)
			return
		}
		c.abort(err)
		return
	}
	c.summary.Records++
}

// decodeFailed skips msg, or aborts the run in fail fast mode.
func (c *Coordinator) decodeFailed(msg *types.KafkaMessage, err error) {
	c.summary.DecodeFailures++
	if c.opts.FailFast {
		c.abort(fmt.Errorf("failed to decode partition [%d] offset %d: %w", msg.Partition, msg.Offset, err))
		return
	}
	logger.Errorf("skipping partition [%d] offset %d: %s", msg.Partition, msg.Offset, err)
}

func (c *Coordinator) decode(ctx context.Context, msg *types.KafkaMessage) (types.Record, error) {
	key, err := c.opts.Key.Deserialize(ctx, msg.Key)
	if err != nil {
		return types.Record{}, fmt.Errorf("key: %w", err)
	}
	value, err := c.opts.Value.Deserialize(ctx, msg.Value)
	if err != nil {
		return types.Record{}, fmt.Errorf("value: %w", err)
	}
	return types.NewRecord(msg, key, value), nil
}

func (c *Coordinator) abort(err error) {
	if c.aborted == nil {
		c.aborted = err
		c.opts.Transport.Stop()
	}
}

func (c *Coordinator) purgeFailedLookups() {
	purged := 0
	for _, d := range []Deserializer{c.opts.Key, c.opts.Value} {
		if purger, ok := d.(FailurePurger); ok {
			purged += purger.PurgeFailedEntries()
		}
	}
	logger.Infof("purged %d failed schema lookups", purged)
}
