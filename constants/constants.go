package constants

import "time"

const (
	AppName = "kinspect"

	// viper keys, also readable from the environment with the KINSPECT_ prefix
	EnvPrefix     = "KINSPECT"
	EncryptionKey = "ENCRYPTION_KEY"
	LogLevel      = "LOG_LEVEL"
	LogDir        = "LOG_DIR"

	BootstrapServers    = "BOOTSTRAP_SERVERS"
	SchemaRegistryURL   = "SCHEMA_REGISTRY_URL"
	RegistryUsername    = "SCHEMA_REGISTRY_USERNAME"
	RegistryPassword    = "SCHEMA_REGISTRY_PASSWORD"
	RegistryBearerToken = "SCHEMA_REGISTRY_BEARER_TOKEN"
	RegistryTimeoutMs   = "SCHEMA_REGISTRY_TIMEOUT_MS"
	RegistryMaxRetries  = "SCHEMA_REGISTRY_MAX_RETRIES"

	DefaultBootstrapServers  = "localhost:9092"
	DefaultSchemaRegistryURL = "localhost:8081"
	DefaultDialTimeout       = 10 * time.Second
	DefaultIdleTimeout       = 5 * time.Second
	DefaultMaxBytes          = 10e6
	DefaultEventBuffer       = 256

	EncryptedEnvelopeKey = "encrypted_data"
)
