package protocol

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/pkg/kafka"
	"github.com/datazip-inc/kinspect/pkg/schemaregistry"
	"github.com/datazip-inc/kinspect/types"
	"github.com/datazip-inc/kinspect/utils"
	"github.com/datazip-inc/kinspect/utils/logger"
)

// Config is the optional --config file. Flags and KINSPECT_* variables
// override what it sets.
type Config struct {
	Kafka          kafka.Config          `json:"kafka"`
	SchemaRegistry schemaregistry.Config `json:"schema_registry"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		SchemaRegistry: schemaregistry.Config{
			Endpoint:   constants.DefaultSchemaRegistryURL,
			MaxRetries: schemaregistry.DefaultMaxRetries,
		},
	}

	if configPath != "" {
		if err := utils.UnmarshalFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %s", err)
		}
	}

	if viper.IsSet(constants.BootstrapServers) {
		cfg.Kafka.BootstrapServers = viper.GetString(constants.BootstrapServers)
	}
	if cfg.Kafka.BootstrapServers == "" {
		logger.Debugf("no bootstrap servers given, using %s", constants.DefaultBootstrapServers)
		cfg.Kafka.BootstrapServers = constants.DefaultBootstrapServers
	}

	registry := &cfg.SchemaRegistry
	overlayString(constants.SchemaRegistryURL, &registry.Endpoint)
	overlayString(constants.RegistryUsername, &registry.Username)
	overlayString(constants.RegistryPassword, &registry.Password)
	overlayString(constants.RegistryBearerToken, &registry.BearerToken)
	if viper.IsSet(constants.RegistryTimeoutMs) {
		registry.TimeoutMs = viper.GetInt64(constants.RegistryTimeoutMs)
	}
	if viper.IsSet(constants.RegistryMaxRetries) {
		registry.MaxRetries = viper.GetInt(constants.RegistryMaxRetries)
	}

	if err := utils.Validate(registry); err != nil {
		return nil, fmt.Errorf("invalid schema registry config: %s", err)
	}
	return cfg, nil
}

func overlayString(key string, dest *string) {
	if viper.IsSet(key) {
		*dest = viper.GetString(key)
	}
}

// registryConfigured reports whether a registry url came from anywhere but
// the built-in default.
func registryConfigured(cfg *Config) bool {
	return viper.IsSet(constants.SchemaRegistryURL) || cfg.SchemaRegistry.Endpoint != constants.DefaultSchemaRegistryURL
}

// checkRegistryURL rejects a malformed registry url before anything is
// consumed, but only when one of the deserializers needs the registry.
func checkRegistryURL(cfg *Config, kinds ...types.DeserializerKind) error {
	for _, kind := range kinds {
		if kind != types.AvroDeserializer {
			continue
		}
		if _, err := schemaregistry.ParseBaseURL(cfg.SchemaRegistry.Endpoint); err != nil {
			return fmt.Errorf("invalid schema registry url %q: %s", cfg.SchemaRegistry.Endpoint, err)
		}
		return nil
	}
	return nil
}
