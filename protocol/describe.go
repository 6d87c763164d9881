package protocol

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/datazip-inc/kinspect/pkg/kafka"
	"github.com/datazip-inc/kinspect/utils/logger"
)

var describeTopic string

// describeCmd lists topics, or the partitions of one topic with their offsets
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe topics and partitions of the cluster",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		config, err = loadConfig()
		return err
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := kafka.NewClient(&config.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warnf("failed to close kafka client: %s", err)
			}
		}()

		topics, err := client.Describe(cmd.Context(), describeTopic)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(map[string]any{"topics": topics})
		if err != nil {
			return fmt.Errorf("failed to render description: %s", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	describeCmd.Flags().StringVarP(&describeTopic, "topic", "t", "", "(Optional) Only describe this topic, including partition offsets")
}
