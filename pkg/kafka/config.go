package kafka

import (
	"fmt"
	"time"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/utils"
)

const (
	SecurityPlaintext     = "PLAINTEXT"
	SecuritySSL           = "SSL"
	SecuritySASLPlaintext = "SASL_PLAINTEXT"
	SecuritySASLSSL       = "SASL_SSL"

	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismScramSHA512 = "SCRAM-SHA-512"
)

// Config is everything needed to reach the brokers.
type Config struct {
	BootstrapServers string           `json:"bootstrap_servers" validate:"required"`
	Protocol         ProtocolConfig   `json:"protocol"`
	SSL              *utils.SSLConfig `json:"ssl,omitempty"`
	SSH              *utils.SSHConfig `json:"ssh,omitempty"`
	ClientID         string           `json:"client_id,omitempty"`
	// MaxBytes bounds a single fetch response.
	MaxBytes int `json:"max_bytes,omitempty" validate:"gte=0"`
	// IdleTimeoutMs is how long a partition may stay silent before its
	// reader position is compared against the captured high watermark.
	IdleTimeoutMs int64 `json:"idle_timeout_ms,omitempty" validate:"gte=0"`
}

type ProtocolConfig struct {
	SecurityProtocol string `json:"security_protocol,omitempty" validate:"omitempty,oneof=PLAINTEXT SSL SASL_PLAINTEXT SASL_SSL"`
	SASLMechanism    string `json:"sasl_mechanism,omitempty" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	SASLJAASConfig   string `json:"sasl_jaas_config,omitempty"`
	SASLUsername     string `json:"sasl_username,omitempty"`
	SASLPassword     string `json:"sasl_password,omitempty"`
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.Protocol.SecurityProtocol == "" {
		c.Protocol.SecurityProtocol = SecurityPlaintext
	}
	if c.ClientID == "" {
		c.ClientID = constants.AppName
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = constants.DefaultMaxBytes
	}
	if c.IdleTimeoutMs == 0 {
		c.IdleTimeoutMs = constants.DefaultIdleTimeout.Milliseconds()
	}

	if err := utils.Validate(c); err != nil {
		return err
	}
	if len(utils.SplitAndTrim(c.BootstrapServers)) == 0 {
		return fmt.Errorf("bootstrap_servers is required")
	}

	switch c.Protocol.SecurityProtocol {
	case SecuritySASLPlaintext, SecuritySASLSSL:
		if c.Protocol.SASLMechanism == "" {
			return fmt.Errorf("sasl_mechanism is required for %s", c.Protocol.SecurityProtocol)
		}
	}

	if c.SSL != nil {
		if err := c.SSL.Validate(); err != nil {
			return fmt.Errorf("invalid ssl config: %s", err)
		}
	}
	if c.SSH != nil {
		if err := c.SSH.Validate(); err != nil {
			return fmt.Errorf("invalid ssh config: %s", err)
		}
	}
	return nil
}

// Brokers is the bootstrap list.
func (c *Config) Brokers() []string {
	return utils.SplitAndTrim(c.BootstrapServers)
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}
