package kafka

import (
	"context"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"
)

type BrokerDescription struct {
	ID   int    `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

type PartitionDescription struct {
	ID       int                `json:"id"`
	Leader   *BrokerDescription `json:"leader,omitempty"`
	Replicas []int              `json:"replicas,omitempty"`
	ISR      []int              `json:"isr,omitempty"`
	Low      *int64             `json:"low,omitempty"`
	High     *int64             `json:"high,omitempty"`
}

type TopicDescription struct {
	Name       string                 `json:"name"`
	Internal   bool                   `json:"internal,omitempty"`
	Partitions []PartitionDescription `json:"partitions"`
}

// Describe lists every topic with its partition leaders. With a topic name
// only that topic is listed, with the current watermarks of each partition.
func (c *Client) Describe(ctx context.Context, topic string) ([]TopicDescription, error) {
	if topic != "" {
		detail, err := c.TopicMetadata(ctx, topic)
		if err != nil {
			return nil, err
		}

		ids := make([]int32, 0, len(detail.Partitions))
		for _, p := range detail.Partitions {
			ids = append(ids, int32(p.ID))
		}
		snapshots, err := c.Watermarks(ctx, topic, ids)
		if err != nil {
			return nil, err
		}

		description := describeTopic(*detail)
		for idx := range description.Partitions {
			for _, snapshot := range snapshots {
				if int(snapshot.Partition) == description.Partitions[idx].ID {
					low, high := snapshot.Low, snapshot.High
					description.Partitions[idx].Low = &low
					description.Partitions[idx].High = &high
				}
			}
		}
		return []TopicDescription{description}, nil
	}

	resp, err := c.admin.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %v", err)
	}

	descriptions := make([]TopicDescription, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if t.Error != nil {
			return nil, fmt.Errorf("failed to describe topic %s: %v", t.Name, t.Error)
		}
		descriptions = append(descriptions, describeTopic(t))
	}
	sort.Slice(descriptions, func(i, j int) bool { return descriptions[i].Name < descriptions[j].Name })
	return descriptions, nil
}

func describeTopic(t kafka.Topic) TopicDescription {
	description := TopicDescription{
		Name:       t.Name,
		Internal:   t.Internal,
		Partitions: make([]PartitionDescription, 0, len(t.Partitions)),
	}
	for _, p := range t.Partitions {
		partition := PartitionDescription{
			ID:       p.ID,
			Replicas: brokerIDs(p.Replicas),
			ISR:      brokerIDs(p.Isr),
		}
		// a leaderless partition reports an empty broker
		if p.Leader.Host != "" {
			partition.Leader = &BrokerDescription{ID: p.Leader.ID, Host: p.Leader.Host, Port: p.Leader.Port}
		}
		description.Partitions = append(description.Partitions, partition)
	}
	sort.Slice(description.Partitions, func(i, j int) bool {
		return description.Partitions[i].ID < description.Partitions[j].ID
	})
	return description
}

func brokerIDs(brokers []kafka.Broker) []int {
	if len(brokers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(brokers))
	for _, b := range brokers {
		ids = append(ids, b.ID)
	}
	return ids
}
