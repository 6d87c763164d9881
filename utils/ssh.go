package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes the bastion used to reach brokers that are not
// directly routable.
type SSHConfig struct {
	Host                    string `json:"host,omitempty"`
	Port                    int    `json:"port,omitempty"`
	Username                string `json:"username,omitempty"`
	PrivateKey              string `json:"private_key,omitempty"`
	Passphrase              string `json:"passphrase,omitempty"`
	Password                string `json:"password,omitempty"`
	HostKeyVerificationMode string `json:"host_key_verification_mode,omitempty"`
	KnownHostsFilePath      string `json:"known_hosts_file_path,omitempty"`
}

const (
	StrictHostKeyVerification   = "strict"
	InsecureHostKeyVerification = "insecure"
)

// Validate fills the default port and host key mode. Strict mode checks the
// bastion against a known_hosts file.
func (c *SSHConfig) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("ssh host is required")
	case c.Username == "":
		return errors.New("ssh username is required")
	case c.PrivateKey == "" && c.Password == "":
		return errors.New("private key or password is required")
	}

	if c.Port == 0 {
		c.Port = 22
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid ssh port %d: must be between 1 and 65535", c.Port)
	}

	switch c.HostKeyVerificationMode {
	case "":
		c.HostKeyVerificationMode = InsecureHostKeyVerification
	case InsecureHostKeyVerification:
	case StrictHostKeyVerification:
		if c.KnownHostsFilePath == "" {
			return errors.New("known_hosts file path is required for strict verification")
		}
	default:
		return fmt.Errorf("unknown host key verification mode %q", c.HostKeyVerificationMode)
	}
	return nil
}

func (c *SSHConfig) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.HostKeyVerificationMode != StrictHostKeyVerification {
		return ssh.InsecureIgnoreHostKey(), nil // #nosec G106
	}

	if err := CheckIfFilesExists(c.KnownHostsFilePath); err != nil {
		return nil, fmt.Errorf("known_hosts file validation failed: %w", err)
	}
	callback, err := knownhosts.New(c.KnownHostsFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts file: %w", err)
	}
	return callback, nil
}

func (c *SSHConfig) SetupSSHConnection() (*ssh.Client, error) {
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate ssh config: %s", err)
	}
	var authMethods []ssh.AuthMethod

	if c.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.Password))
	}

	if c.PrivateKey != "" {
		signer, err := ParsePrivateKey(c.PrivateKey, c.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH private key: %s", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return nil, fmt.Errorf("failed to get host key callback: %s", err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            c.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}

	bastionAddr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	sshClient, err := ssh.Dial("tcp", bastionAddr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial bastion: %s", err)
	}

	return sshClient, nil
}

// ParsePrivateKey parses a private key from a PEM string
func ParsePrivateKey(pemText, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase([]byte(pemText), []byte(passphrase))
	}

	signer, err := ssh.ParsePrivateKey([]byte(pemText))
	if err == nil {
		return signer, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		return nil, fmt.Errorf("SSH private key appears encrypted, enter the passphrase")
	}
	return nil, err
}

// NoDeadlineConn wraps a net.Conn to suppress "deadline not supported" errors from the crypto/ssh package.
type NoDeadlineConn struct {
	net.Conn
}

func (c *NoDeadlineConn) SetDeadline(_ time.Time) error {
	return nil // Ignore deadline setting
}

func (c *NoDeadlineConn) SetReadDeadline(_ time.Time) error {
	return nil // Ignore read deadline setting
}

func (c *NoDeadlineConn) SetWriteDeadline(_ time.Time) error {
	return nil // Ignore write deadline setting
}

// ConnWithCustomDeadlineSupport wraps a tunnelled connection. The kafka
// client sets read and write deadlines on every request, which ssh channels
// reject.
func ConnWithCustomDeadlineSupport(conn net.Conn) (net.Conn, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	return &NoDeadlineConn{Conn: conn}, nil
}

// TunnelDialer returns a dial function that reaches address through the
// bastion behind client.
func TunnelDialer(client *ssh.Client) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := client.DialContext(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel dial %s: %s", address, err)
		}
		return ConnWithCustomDeadlineSupport(conn)
	}
}
