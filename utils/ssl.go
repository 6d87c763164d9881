package utils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

const (
	SSLModeRequire    = "require"
	SSLModeDisable    = "disable"
	SSLModeVerifyCA   = "verify-ca"
	SSLModeVerifyFull = "verify-full"

	Unknown = ""
)

// SSLConfig is the TLS setup for broker connections. Certificates and keys
// are inline PEM.
type SSLConfig struct {
	Mode       string `mapstructure:"mode,omitempty" json:"mode,omitempty" yaml:"mode,omitempty"`
	ServerCA   string `mapstructure:"server_ca,omitempty" json:"server_ca,omitempty" yaml:"server_ca,omitempty"`
	ClientCert string `mapstructure:"client_cert,omitempty" json:"client_cert,omitempty" yaml:"client_cert,omitempty"`
	ClientKey  string `mapstructure:"client_key,omitempty" json:"client_key,omitempty" yaml:"client_key,omitempty"`
}

// Validate returns err if the ssl configuration is invalid
func (sc *SSLConfig) Validate() error {
	if sc == nil {
		return errors.New("'ssl' config is required")
	}

	switch sc.Mode {
	case Unknown:
		return errors.New("'ssl.mode' is required parameter")
	case SSLModeDisable, SSLModeRequire:
	case SSLModeVerifyCA, SSLModeVerifyFull:
		if sc.ServerCA == "" {
			return errors.New("'ssl.server_ca' is required parameter")
		}
	default:
		return fmt.Errorf("unsupported 'ssl.mode': %s", sc.Mode)
	}

	if (sc.ClientCert == "") != (sc.ClientKey == "") {
		return errors.New("'ssl.client_cert' and 'ssl.client_key' must be set together")
	}

	return nil
}

// TLSConfig builds the client side TLS configuration, or nil for disable.
// require encrypts without verifying the broker, verify-ca checks the chain
// against server_ca, verify-full also checks the host name.
func (sc *SSLConfig) TLSConfig() (*tls.Config, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if sc.Mode == SSLModeDisable {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if sc.ClientCert != "" {
		cert, err := tls.X509KeyPair([]byte(sc.ClientCert), []byte(sc.ClientKey))
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %s", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if sc.Mode == SSLModeRequire {
		cfg.InsecureSkipVerify = true // #nosec G402
		return cfg, nil
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM([]byte(sc.ServerCA)) {
		return nil, errors.New("failed to parse 'ssl.server_ca'")
	}

	if sc.Mode == SSLModeVerifyFull {
		cfg.RootCAs = roots
		return cfg, nil
	}

	// verify-ca: the chain is checked by hand so the host name is ignored
	cfg.InsecureSkipVerify = true // #nosec G402
	cfg.VerifyConnection = func(state tls.ConnectionState) error {
		if len(state.PeerCertificates) == 0 {
			return errors.New("broker presented no certificate")
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, intermediate := range state.PeerCertificates[1:] {
			opts.Intermediates.AddCert(intermediate)
		}
		_, err := state.PeerCertificates[0].Verify(opts)
		return err
	}
	return cfg, nil
}
