package schemaregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/kinspect/pkg/avro"
	"github.com/datazip-inc/kinspect/utils"
	"github.com/datazip-inc/kinspect/utils/logger"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3

	schemaTypeAvro = "AVRO"
	retryInterval  = 200 * time.Millisecond
)

// Config describes how to reach one schema registry.
type Config struct {
	Endpoint    string        `json:"endpoint" validate:"required"`
	Username    string        `json:"username,omitempty"`
	Password    string        `json:"password,omitempty"`
	BearerToken string        `json:"bearer_token,omitempty"`
	TimeoutMs   int64         `json:"timeout_ms,omitempty" validate:"gte=0"`
	MaxRetries  int           `json:"max_retries,omitempty" validate:"gte=0"`

	// Timeout overrides TimeoutMs when set.
	Timeout time.Duration `json:"-"`
}

// Client fetches schemas by id from a Confluent compatible registry.
type Client struct {
	config     Config
	baseURL    *url.URL
	baseErr    *DecodeError
	httpClient *http.Client
}

// NewClient builds a client for config. A malformed endpoint does not fail
// here; every fetch reports it as a URLConstruction error.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	}
	config.Timeout = utils.Ternary(config.Timeout <= 0, DefaultTimeout, config.Timeout).(time.Duration)
	config.MaxRetries = max(config.MaxRetries, 0)

	client := &Client{
		config:     config,
		httpClient: &http.Client{},
	}
	baseURL, err := ParseBaseURL(config.Endpoint)
	if err != nil {
		client.baseErr = NewError(URLConstruction, fmt.Sprintf("invalid schema registry url %q", config.Endpoint), err)
	} else {
		client.baseURL = baseURL
	}
	return client
}

// ParseBaseURL normalizes a registry endpoint. Endpoints without a scheme
// are treated as plain http.
func ParseBaseURL(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("schema registry url is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return parsed, nil
}

// FetchSchema resolves id to a parsed avro schema. Network failures and 5xx
// responses are retried within the configured budget; everything else fails
// on the first attempt.
func (c *Client) FetchSchema(ctx context.Context, id uint32) (*avro.Schema, *DecodeError) {
	if c.baseErr != nil {
		return nil, c.baseErr
	}

	target := c.baseURL.JoinPath("schemas", "ids", strconv.FormatUint(uint64(id), 10))
	var body []byte
	err := utils.RetryExec(ctx, func() error {
		resp, derr := c.get(ctx, target)
		if derr != nil {
			if derr.Retriable || derr.Status >= http.StatusInternalServerError {
				return derr
			}
			return utils.Permanent(derr)
		}
		body = resp
		return nil
	}, c.config.MaxRetries, retryInterval)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			return nil, derr
		}
		return nil, NewError(Network, fmt.Sprintf("schema %d lookup interrupted", id), err)
	}

	return parseSchemaResponse(id, body)
}

// Validate checks the registry is reachable and accepts the configured
// credentials using the lightweight subjects listing.
func (c *Client) Validate(ctx context.Context) error {
	if c.baseErr != nil {
		return c.baseErr
	}

	_, derr := c.get(ctx, c.baseURL.JoinPath("subjects"))
	if derr == nil {
		return nil
	}
	switch derr.Status {
	case http.StatusUnauthorized:
		return fmt.Errorf("schema registry authentication failed: invalid credentials")
	case http.StatusForbidden:
		return fmt.Errorf("schema registry authentication failed: access forbidden")
	}
	return fmt.Errorf("failed to connect to schema registry: %w", derr)
}

// get makes an authenticated GET request bounded by the configured timeout
// and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, target *url.URL) ([]byte, *DecodeError) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, NewError(URLConstruction, fmt.Sprintf("failed to create request for %s", target.Redacted()), err)
	}

	// bearer token takes priority over basic auth
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.BearerToken))
	} else if c.config.Username != "" && c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	req.Header.Set("Accept", "application/vnd.schemaregistry.v1+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(Network, fmt.Sprintf("failed to reach schema registry at %s", target.Redacted()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		derr := NewError(UnexpectedStatus, fmt.Sprintf("schema registry returned status %d for %s", resp.StatusCode, target.Path), nil)
		derr.Status = resp.StatusCode
		return nil, derr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(Network, "failed to read schema registry response", err)
	}
	logger.Debugf("fetched %s (%d bytes)", target.Path, len(body))
	return body, nil
}

func parseSchemaResponse(id uint32, body []byte) (*avro.Schema, *DecodeError) {
	if !utf8.Valid(body) {
		return nil, NewError(InvalidResponse, fmt.Sprintf("response for schema %d is not valid utf-8", id), nil)
	}

	var schemaResp struct {
		Schema     *string `json:"schema"`
		SchemaType string  `json:"schemaType"`
	}
	if err := json.Unmarshal(body, &schemaResp); err != nil {
		return nil, NewError(InvalidResponse, fmt.Sprintf("failed to decode response for schema %d", id), err)
	}
	if schemaResp.Schema == nil {
		return nil, NewError(InvalidResponse, fmt.Sprintf("response for schema %d has no schema field", id), nil)
	}

	// a missing schemaType means AVRO
	schemaType := utils.Ternary(schemaResp.SchemaType == "", schemaTypeAvro, schemaResp.SchemaType).(string)
	if schemaType != schemaTypeAvro {
		return nil, NewError(SchemaParse, fmt.Sprintf("schema %d has unsupported type %s", id, schemaType), nil)
	}

	schema, err := avro.ParseSchema(*schemaResp.Schema)
	if err != nil {
		return nil, NewError(SchemaParse, fmt.Sprintf("failed to parse schema %d", id), err)
	}
	return schema, nil
}
