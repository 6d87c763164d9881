package kafka

import (
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/kinspect/types"
)

func TestSnapshotsFromOffsets(t *testing.T) {
	offsets := []kafka.PartitionOffsets{
		{Partition: 1, FirstOffset: 0, LastOffset: 0},
		{Partition: 0, FirstOffset: 10, LastOffset: 12},
	}

	snapshots, err := snapshotsFromOffsets("orders", []int32{0, 1}, offsets)
	require.NoError(t, err)
	assert.Equal(t, []*types.PartitionSnapshot{
		{Partition: 0, Low: 10, High: 12},
		{Partition: 1, Low: 0, High: 0},
	}, snapshots)
}

func TestSnapshotsFromOffsets_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		offsets []kafka.PartitionOffsets
	}{
		{"partition_error", []kafka.PartitionOffsets{{Partition: 0, Error: errors.New("not leader")}}},
		{"missing_partition", []kafka.PartitionOffsets{}},
		{"inverted_watermarks", []kafka.PartitionOffsets{{Partition: 0, FirstOffset: 5, LastOffset: 2}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := snapshotsFromOffsets("orders", []int32{0}, tc.offsets)
			assert.Error(t, err)
		})
	}
}

func TestDescribeTopic(t *testing.T) {
	topic := kafka.Topic{
		Name: "orders",
		Partitions: []kafka.Partition{
			{ID: 1, Leader: kafka.Broker{ID: 2, Host: "b2", Port: 9092}, Replicas: []kafka.Broker{{ID: 2}, {ID: 1}}, Isr: []kafka.Broker{{ID: 2}}},
			{ID: 0, Leader: kafka.Broker{}},
		},
	}

	description := describeTopic(topic)
	assert.Equal(t, "orders", description.Name)
	require.Len(t, description.Partitions, 2)
	assert.Equal(t, 0, description.Partitions[0].ID)
	assert.Nil(t, description.Partitions[0].Leader)
	assert.Equal(t, &BrokerDescription{ID: 2, Host: "b2", Port: 9092}, description.Partitions[1].Leader)
	assert.Equal(t, []int{2, 1}, description.Partitions[1].Replicas)
	assert.Equal(t, []int{2}, description.Partitions[1].ISR)
}
