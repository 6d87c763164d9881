package protocol

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/utils"
	"github.com/datazip-inc/kinspect/utils/logger"
)

var (
	configPath    string
	encryptionKey string
	config        *Config

	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   constants.AppName,
	Short: "Inspect the contents of Kafka topics",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if encryptionKey != "" {
			viper.Set(constants.EncryptionKey, encryptionKey)
		}

		logger.Init(logger.Options{
			Level: viper.GetString(constants.LogLevel),
			Dir:   viper.GetString(constants.LogDir),
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
			return fmt.Errorf("'%s' is an invalid command. Use '%s --help' to display usage guide", args[0], constants.AppName)
		}

		return nil
	},
}

func CreateRootCommand() *cobra.Command {
	RootCmd.AddCommand(commands...)
	return RootCmd
}

// bindFlag exposes a persistent flag through viper so that KINSPECT_<key>
// can stand in for it.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func init() {
	commands = append(commands, consumeCmd, describeCmd, checkCmd)

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "", "", "(Optional) JSON or YAML file with broker security and schema registry settings")
	flags.StringVarP(&encryptionKey, "encryption-key", "", "", "(Optional) Decryption key for an encrypted config. Provide the ARN of a KMS key or a passphrase.")
	flags.String("log-level", "info", "(Optional) Diagnostic log level: debug, info, warn or error")
	flags.String("log-dir", "", "(Optional) Directory for a rotating copy of the diagnostic log")
	flags.StringP("bootstrap-servers", "b", "", "Comma separated list of brokers, host:port")
	flags.StringP("schema-registry", "r", "", "Schema registry url, used by the avro deserializer")
	flags.String("schema-registry-username", "", "(Optional) Schema registry basic auth user")
	flags.String("schema-registry-password", "", "(Optional) Schema registry basic auth password")
	flags.String("schema-registry-bearer-token", "", "(Optional) Schema registry bearer token, takes precedence over basic auth")
	flags.Int64("schema-registry-timeout-ms", 0, "(Optional) Timeout of a single registry request")
	flags.Int("schema-registry-max-retries", 0, "(Optional) Retries of a registry request after a network error or 5xx")

	bindFlag(constants.LogLevel, "log-level")
	bindFlag(constants.LogDir, "log-dir")
	bindFlag(constants.BootstrapServers, "bootstrap-servers")
	bindFlag(constants.SchemaRegistryURL, "schema-registry")
	bindFlag(constants.RegistryUsername, "schema-registry-username")
	bindFlag(constants.RegistryPassword, "schema-registry-password")
	bindFlag(constants.RegistryBearerToken, "schema-registry-bearer-token")
	bindFlag(constants.RegistryTimeoutMs, "schema-registry-timeout-ms")
	bindFlag(constants.RegistryMaxRetries, "schema-registry-max-retries")

	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}
