package kafka

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/kafka-go"
	"golang.org/x/crypto/ssh"

	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
)

// Client wraps the admin client used for metadata and offsets and starts
// partition streams for a bounded read.
type Client struct {
	config *Config
	dialer *kafka.Dialer
	admin  *kafka.Client
	tunnel *ssh.Client

	mu     sync.Mutex
	stream *Stream
}

// NewClient validates config and prepares the dialer. It does not contact
// the brokers; see Ping.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	var tunnel *ssh.Client
	if config.SSH != nil {
		var err error
		tunnel, err = config.SSH.SetupSSHConnection()
		if err != nil {
			return nil, fmt.Errorf("failed to open ssh tunnel: %v", err)
		}
		logger.Infof("tunnelling broker connections through %s", config.SSH.Host)
	}

	dialer, err := createDialer(config, tunnel)
	if err != nil {
		if tunnel != nil {
			_ = tunnel.Close()
		}
		return nil, fmt.Errorf("failed to create Kafka dialer: %v", err)
	}

	return &Client{
		config: config,
		dialer: dialer,
		admin: &kafka.Client{
			Addr:      kafka.TCP(config.Brokers()...),
			Timeout:   dialer.Timeout,
			Transport: createTransport(config, dialer),
		},
		tunnel: tunnel,
	}, nil
}

// Ping checks that at least one broker answers a metadata request.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.admin.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{}})
	if err != nil {
		return fmt.Errorf("failed to ping Kafka brokers: %v", err)
	}
	logger.Debugf("connected to cluster with %d brokers", len(resp.Brokers))
	return nil
}

// TopicMetadata fetches metadata for a topic
func (c *Client) TopicMetadata(ctx context.Context, topic string) (*kafka.Topic, error) {
	metadataResp, err := c.admin.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topic metadata for topic %s: %w", topic, err)
	}

	for _, t := range metadataResp.Topics {
		if t.Name == topic {
			if t.Error != nil {
				return nil, fmt.Errorf("topic %s not found in metadata: %v", topic, t.Error)
			}
			return &t, nil
		}
	}

	return nil, fmt.Errorf("topic %s not found in metadata", topic)
}

// Partitions lists the partition ids of topic in ascending order.
func (c *Client) Partitions(ctx context.Context, topic string) ([]int32, error) {
	detail, err := c.TopicMetadata(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(detail.Partitions) == 0 {
		return nil, fmt.Errorf("topic %s has no partitions", topic)
	}

	ids := make([]int32, 0, len(detail.Partitions))
	for _, p := range detail.Partitions {
		ids = append(ids, int32(p.ID))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Watermarks queries the low and high watermark of every partition once.
func (c *Client) Watermarks(ctx context.Context, topic string, partitions []int32) ([]*types.PartitionSnapshot, error) {
	offsetRequests := make([]kafka.OffsetRequest, 0, len(partitions)*2)
	for _, p := range partitions {
		offsetRequests = append(offsetRequests, kafka.FirstOffsetOf(int(p)), kafka.LastOffsetOf(int(p)))
	}

	offsetsResp, err := c.admin.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{topic: offsetRequests},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offsets for topic %s: %w", topic, err)
	}

	return snapshotsFromOffsets(topic, partitions, offsetsResp.Topics[topic])
}

func snapshotsFromOffsets(topic string, partitions []int32, offsets []kafka.PartitionOffsets) ([]*types.PartitionSnapshot, error) {
	byPartition := make(map[int32]kafka.PartitionOffsets, len(offsets))
	for _, o := range offsets {
		if o.Error != nil {
			return nil, fmt.Errorf("error in partition %d of topic %s: %v", o.Partition, topic, o.Error)
		}
		byPartition[int32(o.Partition)] = o
	}

	snapshots := make([]*types.PartitionSnapshot, 0, len(partitions))
	for _, p := range partitions {
		o, ok := byPartition[p]
		if !ok {
			return nil, fmt.Errorf("no offsets returned for partition %d of topic %s", p, topic)
		}
		if o.FirstOffset < 0 || o.LastOffset < o.FirstOffset {
			return nil, fmt.Errorf("invalid watermarks for partition %d of topic %s: low=%d high=%d", p, topic, o.FirstOffset, o.LastOffset)
		}
		snapshots = append(snapshots, &types.PartitionSnapshot{
			Partition: p,
			Low:       o.FirstOffset,
			High:      o.LastOffset,
		})
	}
	return snapshots, nil
}

// Subscribe starts one reader per partition at its captured low watermark.
// The returned channel closes once every partition finished or Stop was
// called.
func (c *Client) Subscribe(ctx context.Context, topic string, snapshots []*types.PartitionSnapshot) (<-chan types.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil, fmt.Errorf("already subscribed")
	}

	c.stream = NewStream(ctx, StreamConfig{
		Topic:       topic,
		IdleTimeout: c.config.IdleTimeout(),
		NewReader:   c.partitionReader(topic),
	}, snapshots)
	return c.stream.Events(), nil
}

// Stop asks the running stream to stop producing events.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Stop()
	}
}

// Close stops any running stream and releases the ssh tunnel.
func (c *Client) Close() error {
	c.Stop()

	var multErr error
	if c.stream != nil {
		if err := c.stream.Wait(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}
	if c.tunnel != nil {
		if err := c.tunnel.Close(); err != nil {
			multErr = multierror.Append(multErr, fmt.Errorf("failed to close ssh tunnel: %w", err))
		}
	}
	return multErr
}

func (c *Client) partitionReader(topic string) func(*types.PartitionSnapshot) (PartitionReader, error) {
	return func(snapshot *types.PartitionSnapshot) (PartitionReader, error) {
		return newBatchReader(c.dialer, c.config.Brokers(), topic, int(snapshot.Partition), c.config.MaxBytes, snapshot.Low), nil
	}
}
