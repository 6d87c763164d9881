package kafka

import (
	"crypto/tls"
	"fmt"
	"regexp"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"golang.org/x/crypto/ssh"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/utils"
)

var jaasCredentials = regexp.MustCompile(`username="([^"]+)"\s+password="([^"]+)"`)

// createDialer creates a Kafka dialer with the appropriate security settings.
// tunnel is optional; when set every broker connection goes through it.
func createDialer(config *Config, tunnel *ssh.Client) (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		ClientID:  config.ClientID,
		Timeout:   constants.DefaultDialTimeout,
		DualStack: true,
	}
	if tunnel != nil {
		dialer.DialFunc = utils.TunnelDialer(tunnel)
	}

	switch config.Protocol.SecurityProtocol {
	case SecurityPlaintext:
		// No additional configuration needed
	case SecuritySSL:
		tlsConfig, err := brokerTLS(config)
		if err != nil {
			return nil, err
		}
		dialer.TLS = tlsConfig
	case SecuritySASLPlaintext, SecuritySASLSSL:
		mechanism, err := saslMechanism(config.Protocol)
		if err != nil {
			return nil, err
		}
		dialer.SASLMechanism = mechanism

		if config.Protocol.SecurityProtocol == SecuritySASLSSL {
			tlsConfig, err := brokerTLS(config)
			if err != nil {
				return nil, err
			}
			dialer.TLS = tlsConfig
		}
	default:
		return nil, fmt.Errorf("unsupported security protocol: %s", config.Protocol.SecurityProtocol)
	}

	return dialer, nil
}

// createTransport mirrors the dialer for the admin client.
func createTransport(config *Config, dialer *kafka.Dialer) *kafka.Transport {
	transport := &kafka.Transport{
		ClientID:    config.ClientID,
		DialTimeout: dialer.Timeout,
		SASL:        dialer.SASLMechanism,
		TLS:         dialer.TLS,
	}
	if dialer.DialFunc != nil {
		transport.Dial = dialer.DialFunc
	}
	return transport
}

func brokerTLS(config *Config) (*tls.Config, error) {
	if config.SSL == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	tlsConfig, err := config.SSL.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build tls config: %s", err)
	}
	if tlsConfig == nil {
		return nil, fmt.Errorf("ssl.mode %s conflicts with security protocol %s", config.SSL.Mode, config.Protocol.SecurityProtocol)
	}
	return tlsConfig, nil
}

func saslMechanism(protocol ProtocolConfig) (sasl.Mechanism, error) {
	username, password, err := saslCredentials(protocol)
	if err != nil {
		return nil, err
	}

	switch protocol.SASLMechanism {
	case MechanismPlain:
		return plain.Mechanism{
			Username: username,
			Password: password,
		}, nil
	case MechanismScramSHA256:
		mechanism, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-256 mechanism: %v", err)
		}
		return mechanism, nil
	case MechanismScramSHA512:
		mechanism, err := scram.Mechanism(scram.SHA512, username, password)
		if err != nil {
			return nil, fmt.Errorf("failed to create SCRAM-SHA-512 mechanism: %v", err)
		}
		return mechanism, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", protocol.SASLMechanism)
	}
}

// saslCredentials prefers explicit username/password over a JAAS line.
func saslCredentials(protocol ProtocolConfig) (string, string, error) {
	if protocol.SASLUsername != "" {
		return protocol.SASLUsername, protocol.SASLPassword, nil
	}
	return parseSASLJAAS(protocol.SASLJAASConfig)
}

// parseSASLJAAS extracts username and password from a JAAS login module line.
func parseSASLJAAS(jaasConfig string) (string, string, error) {
	if jaasConfig == "" {
		return "", "", fmt.Errorf("sasl credentials are required")
	}
	matches := jaasCredentials.FindStringSubmatch(jaasConfig)
	if len(matches) != 3 {
		return "", "", fmt.Errorf("invalid sasl_jaas_config")
	}
	return matches[1], matches[2], nil
}
