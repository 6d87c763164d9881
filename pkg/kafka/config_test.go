package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/utils"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"minimal", Config{BootstrapServers: "localhost:9092"}, false},
		{"missing_brokers", Config{}, true},
		{"only_commas", Config{BootstrapServers: " , "}, true},
		{"unknown_protocol", Config{BootstrapServers: "b:9092", Protocol: ProtocolConfig{SecurityProtocol: "KERBEROS"}}, true},
		{"sasl_without_mechanism", Config{BootstrapServers: "b:9092", Protocol: ProtocolConfig{SecurityProtocol: SecuritySASLSSL}}, true},
		{"unknown_mechanism", Config{BootstrapServers: "b:9092", Protocol: ProtocolConfig{SecurityProtocol: SecuritySASLSSL, SASLMechanism: "GSSAPI"}}, true},
		{"invalid_ssl", Config{BootstrapServers: "b:9092", SSL: &utils.SSLConfig{Mode: utils.SSLModeVerifyCA}}, true},
		{"invalid_ssh", Config{BootstrapServers: "b:9092", SSH: &utils.SSHConfig{Host: "bastion"}}, true},
		{"negative_max_bytes", Config{BootstrapServers: "b:9092", MaxBytes: -1}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	config := Config{BootstrapServers: "a:9092, b:9092"}
	require.NoError(t, config.Validate())

	assert.Equal(t, SecurityPlaintext, config.Protocol.SecurityProtocol)
	assert.Equal(t, constants.AppName, config.ClientID)
	assert.Equal(t, int(constants.DefaultMaxBytes), config.MaxBytes)
	assert.Equal(t, constants.DefaultIdleTimeout, config.IdleTimeout())
	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Brokers())
}

func TestCreateDialer(t *testing.T) {
	testCases := []struct {
		name     string
		protocol ProtocolConfig
		ssl      *utils.SSLConfig
		wantTLS  bool
		wantSASL string
		wantErr  bool
	}{
		{name: "plaintext", protocol: ProtocolConfig{SecurityProtocol: SecurityPlaintext}},
		{name: "ssl", protocol: ProtocolConfig{SecurityProtocol: SecuritySSL}, wantTLS: true},
		{name: "ssl_require", protocol: ProtocolConfig{SecurityProtocol: SecuritySSL}, ssl: &utils.SSLConfig{Mode: utils.SSLModeRequire}, wantTLS: true},
		{name: "ssl_disabled_conflict", protocol: ProtocolConfig{SecurityProtocol: SecuritySSL}, ssl: &utils.SSLConfig{Mode: utils.SSLModeDisable}, wantErr: true},
		{
			name:     "sasl_plain_jaas",
			protocol: ProtocolConfig{SecurityProtocol: SecuritySASLPlaintext, SASLMechanism: MechanismPlain, SASLJAASConfig: `org.apache.kafka.common.security.plain.PlainLoginModule required username="alice" password="secret";`},
			wantSASL: "PLAIN",
		},
		{
			name:     "sasl_ssl_scram_256",
			protocol: ProtocolConfig{SecurityProtocol: SecuritySASLSSL, SASLMechanism: MechanismScramSHA256, SASLUsername: "alice", SASLPassword: "secret"},
			wantTLS:  true,
			wantSASL: "SCRAM-SHA-256",
		},
		{
			name:     "sasl_scram_512",
			protocol: ProtocolConfig{SecurityProtocol: SecuritySASLPlaintext, SASLMechanism: MechanismScramSHA512, SASLUsername: "alice", SASLPassword: "secret"},
			wantSASL: "SCRAM-SHA-512",
		},
		{
			name:     "sasl_without_credentials",
			protocol: ProtocolConfig{SecurityProtocol: SecuritySASLPlaintext, SASLMechanism: MechanismPlain},
			wantErr:  true,
		},
		{
			name:     "sasl_bad_jaas",
			protocol: ProtocolConfig{SecurityProtocol: SecuritySASLPlaintext, SASLMechanism: MechanismPlain, SASLJAASConfig: "required;"},
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := &Config{BootstrapServers: "b:9092", Protocol: tc.protocol, SSL: tc.ssl, ClientID: "test"}
			dialer, err := createDialer(config, nil)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test", dialer.ClientID)
			assert.Equal(t, tc.wantTLS, dialer.TLS != nil)
			if tc.wantSASL == "" {
				assert.Nil(t, dialer.SASLMechanism)
			} else {
				require.NotNil(t, dialer.SASLMechanism)
				assert.Equal(t, tc.wantSASL, dialer.SASLMechanism.Name())
			}

			transport := createTransport(config, dialer)
			assert.Equal(t, dialer.TLS, transport.TLS)
			assert.Nil(t, transport.Dial)
		})
	}
}

func TestParseSASLJAAS(t *testing.T) {
	username, password, err := parseSASLJAAS(`username="bob" password="p@ss word"`)
	require.NoError(t, err)
	assert.Equal(t, "bob", username)
	assert.Equal(t, "p@ss word", password)

	mechanism, err := saslMechanism(ProtocolConfig{SASLMechanism: MechanismPlain, SASLUsername: "u", SASLPassword: "p"})
	require.NoError(t, err)
	assert.Equal(t, plain.Mechanism{Username: "u", Password: "p"}, mechanism)
}
