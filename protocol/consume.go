package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/kinspect/pkg/consumer"
	"github.com/datazip-inc/kinspect/pkg/kafka"
	"github.com/datazip-inc/kinspect/pkg/schemaregistry"
	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
	"github.com/datazip-inc/kinspect/utils/safego"
)

var (
	topic       string
	keyFormat   string
	valueFormat string
	failFast    bool

	keyKind   types.DeserializerKind
	valueKind types.DeserializerKind
)

// consumeCmd prints every message of a topic that existed when it started
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Print a topic as JSON lines, from the earliest offsets to the end captured at start",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if topic == "" {
			return fmt.Errorf("--topic is required")
		}

		var err error
		if keyKind, err = types.ParseDeserializerKind(keyFormat); err != nil {
			return fmt.Errorf("invalid --key-deserializer: %s", err)
		}
		if valueKind, err = types.ParseDeserializerKind(valueFormat); err != nil {
			return fmt.Errorf("invalid --value-deserializer: %s", err)
		}

		if config, err = loadConfig(); err != nil {
			return err
		}
		return checkRegistryURL(config, keyKind, valueKind)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := kafka.NewClient(&config.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warnf("failed to close kafka client: %s", err)
			}
		}()

		purge := purgeOnHangup()
		defer signal.Reset(syscall.SIGHUP)

		coordinator, err := consumer.NewCoordinator(consumer.Options{
			Topic:       topic,
			Transport:   client,
			Key:         newDeserializer(keyKind, config),
			Value:       newDeserializer(valueKind, config),
			Sink:        consumer.NewJSONLineSink(cmd.OutOrStdout()),
			FailFast:    failFast,
			PurgeSignal: purge,
		})
		if err != nil {
			return err
		}

		summary, err := coordinator.Run(ctx)
		logger.Infof("emitted %d records from %d/%d partitions of topic %s, %d decode failures, %d transport errors",
			summary.Records, summary.PartitionsCompleted, summary.Partitions, topic, summary.DecodeFailures, summary.TransportErrors)
		if errors.Is(err, context.Canceled) {
			logger.Warnf("interrupted before reaching the end of topic %s", topic)
			return nil
		}
		return err
	},
}

// newDeserializer gives every avro deserializer its own registry client and
// schema cache.
func newDeserializer(kind types.DeserializerKind, cfg *Config) consumer.Deserializer {
	if kind == types.AvroDeserializer {
		client := schemaregistry.NewClient(cfg.SchemaRegistry)
		return consumer.NewAvroDeserializer(schemaregistry.NewDecoder(client))
	}
	return consumer.RawDeserializer{}
}

// purgeOnHangup turns SIGHUP into a request to forget failed schema lookups.
func purgeOnHangup() <-chan struct{} {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)

	purge := make(chan struct{}, 1)
	safego.Run(func() {
		for range hangup {
			select {
			case purge <- struct{}{}:
			default:
			}
		}
	})
	return purge
}

func init() {
	consumeCmd.Flags().StringVarP(&topic, "topic", "t", "", "(Required) Topic to read")
	consumeCmd.Flags().StringVarP(&keyFormat, "key-deserializer", "k", string(types.RawDeserializer), "Key deserializer: raw or avro")
	consumeCmd.Flags().StringVarP(&valueFormat, "value-deserializer", "v", string(types.RawDeserializer), "Value deserializer: raw or avro")
	consumeCmd.Flags().BoolVarP(&failFast, "fail-fast", "", false, "(Optional) Stop at the first message that cannot be decoded")
}
