package consumer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/kinspect/pkg/avro"
	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
)

const topic = "orders"

// fakeTransport replays a fixed list of events. The channel closes on the
// first Stop, or right after the replay when closeEarly is set.
type fakeTransport struct {
	snapshots     []*types.PartitionSnapshot
	events        []types.Event
	closeEarly    bool
	partitionsErr error
	watermarksErr error
	// live, when set, is handed out by Subscribe instead of the replay
	live          chan types.Event

	ch        chan types.Event
	stopCalls int
	once      sync.Once
}

func (f *fakeTransport) Partitions(_ context.Context, _ string) ([]int32, error) {
	if f.partitionsErr != nil {
		return nil, f.partitionsErr
	}
	out := make([]int32, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, s.Partition)
	}
	return out, nil
}

func (f *fakeTransport) Watermarks(_ context.Context, _ string, _ []int32) ([]*types.PartitionSnapshot, error) {
	if f.watermarksErr != nil {
		return nil, f.watermarksErr
	}
	return f.snapshots, nil
}

func (f *fakeTransport) Subscribe(_ context.Context, _ string, _ []*types.PartitionSnapshot) (<-chan types.Event, error) {
	if f.live != nil {
		f.ch = f.live
		return f.ch, nil
	}
	f.ch = make(chan types.Event, len(f.events))
	for _, event := range f.events {
		f.ch <- event
	}
	if f.closeEarly {
		f.once.Do(func() { close(f.ch) })
	}
	return f.ch, nil
}

func (f *fakeTransport) Stop() {
	f.stopCalls++
	f.once.Do(func() { close(f.ch) })
}

func data(partition int32, offset int64, key, value string) types.Event {
	msg := &types.KafkaMessage{Topic: topic, Partition: partition, Offset: offset}
	if key != "" {
		msg.Key = []byte(key)
	}
	if value != "" {
		msg.Value = []byte(value)
	}
	return types.DataEvent(msg)
}

type failingDeserializer struct {
	fail   string
	purged int
}

func (d *failingDeserializer) Deserialize(ctx context.Context, b []byte) (any, error) {
	if string(b) == d.fail {
		return nil, errors.New("cannot decode " + d.fail)
	}
	return RawDeserializer{}.Deserialize(ctx, b)
}

func (d *failingDeserializer) PurgeFailedEntries() int {
	d.purged++
	return 2
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })
	return &buf
}

func newCoordinator(t *testing.T, transport Transport, out io.Writer, mutate ...func(*Options)) *Coordinator {
	t.Helper()
	opts := Options{
		Topic:     topic,
		Transport: transport,
		Key:       RawDeserializer{},
		Value:     RawDeserializer{},
		Sink:      NewJSONLineSink(out),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := NewCoordinator(opts)
	require.NoError(t, err)
	return c
}

func TestCoordinator_ReadsToHighWatermark(t *testing.T) {
	logs := captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 10, High: 12}},
		events: []types.Event{
			data(0, 10, "k1", "v1"),
			data(0, 11, "k2", "v2"),
			types.EndOfPartitionEvent(0, 12),
		},
	}
	var out bytes.Buffer
	c := newCoordinator(t, transport, &out)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		`{"key":"k1","value":"v1","topic":"orders","partition":0,"offset":10,"timestamp":-1}`+"\n"+
			`{"key":"k2","value":"v2","topic":"orders","partition":0,"offset":11,"timestamp":-1}`+"\n",
		out.String())
	assert.Equal(t, Summary{Partitions: 1, PartitionsCompleted: 1, Records: 2}, summary)
	assert.Equal(t, 1, transport.stopCalls)
	assert.Equal(t, types.Stopped, c.State())
	assert.Contains(t, logs.String(), "reached end of partition [0] at offset 12")
}

func TestCoordinator_EmptyPartitionNeedsNoData(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{
			{Partition: 0, Low: 0, High: 3},
			{Partition: 1, Low: 0, High: 0},
		},
		events: []types.Event{
			types.EndOfPartitionEvent(1, 0),
			data(0, 0, "", "a"),
			data(0, 1, "", "b"),
			data(0, 2, "", "c"),
			types.EndOfPartitionEvent(0, 3),
		},
	}
	var out bytes.Buffer

	summary, err := newCoordinator(t, transport, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Partitions: 2, PartitionsCompleted: 2, Records: 3}, summary)
	assert.Equal(t, 1, transport.stopCalls)
}

func TestCoordinator_StopsOnceAllPartitionsEnd(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{
			{Partition: 0, Low: 0, High: 3},
			{Partition: 1, Low: 0, High: 0},
			{Partition: 2, Low: 0, High: 1},
		},
		events: []types.Event{
			data(2, 0, "", "c"),
			types.EndOfPartitionEvent(2, 1),
			data(0, 0, "", "a"),
			types.EndOfPartitionEvent(2, 1),
			data(0, 1, "", "b"),
			data(0, 2, "", "c"),
			types.EndOfPartitionEvent(0, 3),
			types.EndOfPartitionEvent(1, 0),
			types.EndOfPartitionEvent(0, 3),
			types.EndOfPartitionEvent(1, 0),
		},
	}
	var out bytes.Buffer

	summary, err := newCoordinator(t, transport, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, transport.stopCalls)
	assert.Equal(t, int64(4), summary.Records)
	assert.Equal(t, 3, summary.PartitionsCompleted)
	assert.Equal(t, 4, strings.Count(out.String(), "\n"))
}

func TestCoordinator_NothingToRead(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{
			{Partition: 0, Low: 5, High: 5, Completed: true},
			{Partition: 1, Low: 0, High: 0, Completed: true},
		},
	}
	var out bytes.Buffer

	c := newCoordinator(t, transport, &out)
	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Equal(t, 2, summary.Partitions)
	assert.Nil(t, transport.ch, "nothing to subscribe to")
	assert.Equal(t, types.Stopped, c.State())
}

func TestCoordinator_SkipsUndecodableRecords(t *testing.T) {
	logs := captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 3}},
		events: []types.Event{
			data(0, 0, "", "good"),
			data(0, 1, "", "bad"),
			data(0, 2, "", "fine"),
			types.EndOfPartitionEvent(0, 3),
		},
	}
	var out bytes.Buffer
	c := newCoordinator(t, transport, &out, func(o *Options) {
		o.Value = &failingDeserializer{fail: "bad"}
	})

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Records)
	assert.Equal(t, int64(1), summary.DecodeFailures)
	assert.NotContains(t, out.String(), `"offset":1,`)
	assert.Contains(t, logs.String(), "skipping partition [0] offset 1")
}

// fixedDeserializer maps payloads to prepared values and leaves the rest to
// the raw deserializer.
type fixedDeserializer map[string]any

func (d fixedDeserializer) Deserialize(ctx context.Context, b []byte) (any, error) {
	if v, ok := d[string(b)]; ok {
		return v, nil
	}
	return RawDeserializer{}.Deserialize(ctx, b)
}

func TestCoordinator_UnencodableRecords(t *testing.T) {
	nan, err := avro.ToJSON(avro.Double(math.NaN()))
	require.NoError(t, err)

	testCases := []struct {
		name         string
		failFast     bool
		wantErr      bool
		wantRecords  int64
		wantFailures int64
		wantOutput   []string
	}{
		{
			name:         "skipped",
			wantRecords:  2,
			wantFailures: 1,
			wantOutput:   []string{`"value":null,"topic":"orders","partition":0,"offset":0,`, `"offset":2,`},
		},
		{
			name:         "fail_fast",
			failFast:     true,
			wantErr:      true,
			wantRecords:  1,
			wantFailures: 1,
			wantOutput:   []string{`"offset":0,`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logs := captureLogs(t)
			transport := &fakeTransport{
				snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 3}},
				events: []types.Event{
					data(0, 0, "", "avro-nan"),
					data(0, 1, "", "raw-nan"),
					data(0, 2, "", "fine"),
					types.EndOfPartitionEvent(0, 3),
				},
			}
			var out bytes.Buffer
			c := newCoordinator(t, transport, &out, func(o *Options) {
				o.Value = fixedDeserializer{"avro-nan": nan, "raw-nan": math.NaN()}
				o.FailFast = tc.failFast
			})

			summary, err := c.Run(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "offset 1")
			} else {
				require.NoError(t, err)
				assert.Contains(t, logs.String(), "skipping partition [0] offset 1")
			}
			assert.Equal(t, tc.wantRecords, summary.Records)
			assert.Equal(t, tc.wantFailures, summary.DecodeFailures)
			assert.NotContains(t, out.String(), `"offset":1,`)
			for _, want := range tc.wantOutput {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestCoordinator_SinkWriteFailureAborts(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 2}},
		events: []types.Event{
			data(0, 0, "", "v"),
			data(0, 1, "", "v"),
			types.EndOfPartitionEvent(0, 2),
		},
	}
	c := newCoordinator(t, transport, failingWriter{})

	summary, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, int64(0), summary.Records)
	assert.Equal(t, int64(0), summary.DecodeFailures)
	assert.Equal(t, 1, transport.stopCalls)
}

func TestCoordinator_FailFast(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 3}},
		events: []types.Event{
			data(0, 0, "", "good"),
			data(0, 1, "bad", "x"),
			data(0, 2, "", "never"),
			types.EndOfPartitionEvent(0, 3),
		},
	}
	var out bytes.Buffer
	c := newCoordinator(t, transport, &out, func(o *Options) {
		o.Key = &failingDeserializer{fail: "bad"}
		o.FailFast = true
	})

	summary, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 1")
	assert.Equal(t, int64(1), summary.Records)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	assert.Equal(t, 1, transport.stopCalls)
	assert.Equal(t, types.Stopped, c.State())
}

func TestCoordinator_TransportErrorsAreSoft(t *testing.T) {
	logs := captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 1}},
		events: []types.Event{
			types.ErrorEvent(0, errors.New("leader not available")),
			data(0, 0, "", "v"),
			types.EndOfPartitionEvent(0, 1),
		},
	}
	var out bytes.Buffer

	summary, err := newCoordinator(t, transport, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TransportErrors)
	assert.Equal(t, int64(1), summary.Records)
	assert.Contains(t, logs.String(), "leader not available")
}

func TestCoordinator_StartupFailures(t *testing.T) {
	testCases := []struct {
		name      string
		transport *fakeTransport
		expected  string
	}{
		{
			name:      "partitions",
			transport: &fakeTransport{partitionsErr: errors.New("unknown topic")},
			expected:  "unknown topic",
		},
		{
			name: "watermarks",
			transport: &fakeTransport{
				snapshots:     []*types.PartitionSnapshot{{Partition: 0, High: 1}},
				watermarksErr: errors.New("request timed out"),
			},
			expected: "request timed out",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			captureLogs(t)
			var out bytes.Buffer
			_, err := newCoordinator(t, tc.transport, &out).Run(context.Background())
			assert.ErrorContains(t, err, tc.expected)
			assert.Nil(t, tc.transport.ch)
			assert.Empty(t, out.String())
		})
	}
}

func TestCoordinator_TransportClosedEarly(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{
			{Partition: 0, Low: 0, High: 1},
			{Partition: 1, Low: 0, High: 1},
		},
		events: []types.Event{
			data(0, 0, "", "v"),
			types.EndOfPartitionEvent(0, 1),
		},
		closeEarly: true,
	}
	var out bytes.Buffer

	summary, err := newCoordinator(t, transport, &out).Run(context.Background())
	assert.ErrorContains(t, err, "1 of 2 partitions incomplete")
	assert.Equal(t, int64(1), summary.Records)
	assert.Equal(t, 0, transport.stopCalls)
}

func TestCoordinator_CancelledContext(t *testing.T) {
	captureLogs(t)
	transport := &fakeTransport{
		snapshots:  []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 5}},
		events:     []types.Event{data(0, 0, "", "v")},
		closeEarly: true,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer

	_, err := newCoordinator(t, transport, &out).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_PurgeSignal(t *testing.T) {
	logs := captureLogs(t)
	purge := make(chan struct{})
	key := &failingDeserializer{}
	value := &failingDeserializer{}
	transport := &fakeTransport{
		snapshots: []*types.PartitionSnapshot{{Partition: 0, Low: 0, High: 1}},
		live:      make(chan types.Event),
	}
	var out bytes.Buffer
	c := newCoordinator(t, transport, &out, func(o *Options) {
		o.Key = key
		o.Value = value
		o.PurgeSignal = purge
	})

	go func() {
		// the loop is the only receiver, so the purge is handled before
		// the end of partition
		purge <- struct{}{}
		transport.live <- types.EndOfPartitionEvent(0, 1)
	}()

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, key.purged)
	assert.Equal(t, 1, value.purged)
	assert.Contains(t, logs.String(), "purged 4 failed schema lookups")
}

func TestNewCoordinator_Validation(t *testing.T) {
	valid := Options{
		Topic:     topic,
		Transport: &fakeTransport{},
		Key:       RawDeserializer{},
		Value:     RawDeserializer{},
		Sink:      NewJSONLineSink(io.Discard),
	}
	_, err := NewCoordinator(valid)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Options){
		"topic":     func(o *Options) { o.Topic = "" },
		"transport": func(o *Options) { o.Transport = nil },
		"key":       func(o *Options) { o.Key = nil },
		"sink":      func(o *Options) { o.Sink = nil },
	} {
		opts := valid
		mutate(&opts)
		_, err := NewCoordinator(opts)
		assert.Error(t, err, name)
	}
}
