package protocol

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/datazip-inc/kinspect/pkg/kafka"
	"github.com/datazip-inc/kinspect/pkg/schemaregistry"
	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils/logger"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to the brokers and the schema registry",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		config, err = loadConfig()
		return err
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		message := types.CommandOutput{
			Type: types.ConnectionStatusMessage,
			ConnectionStatus: []types.StatusRow{
				statusRow(config.Kafka.BootstrapServers, checkBrokers(cmd.Context(), &config.Kafka)),
			},
		}

		// the registry is only probed when one was asked for
		if registryConfigured(config) {
			client := schemaregistry.NewClient(config.SchemaRegistry)
			message.ConnectionStatus = append(message.ConnectionStatus,
				statusRow(config.SchemaRegistry.Endpoint, client.Validate(cmd.Context())))
		}

		out, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to render check result: %s", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func checkBrokers(ctx context.Context, cfg *kafka.Config) error {
	client, err := kafka.NewClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warnf("failed to close kafka client: %s", err)
		}
	}()
	return client.Ping(ctx)
}

func statusRow(target string, err error) types.StatusRow {
	row := types.StatusRow{Target: target, Status: types.ConnectionSucceed}
	if err != nil {
		logger.Errorf("connection check of %s failed: %s", target, err)
		row.Status = types.ConnectionFailed
		row.Message = err.Error()
	}
	return row
}
