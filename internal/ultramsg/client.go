// Package ultramsg is a thin client for the ultramsg WhatsApp gateway's
// outbound chat-send endpoint.
package ultramsg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public ultramsg API root.
	DefaultBaseURL = "https://api.ultramsg.com"

	// DefaultTimeout bounds a single send call.
	DefaultTimeout = 30 * time.Second

	// maxErrorBodyLen limits gateway error bodies quoted in errors.
	maxErrorBodyLen = 500
)

// Config configures the gateway client.
type Config struct {
	BaseURL    string // defaults to DefaultBaseURL
	InstanceID string
	Token      string
	Timeout    time.Duration

	// HTTPClient overrides the default client (useful for testing).
	HTTPClient *http.Client
}

// Client posts outbound messages to the gateway. It never retries;
// delivery failures are reported to the caller and that is all.
type Client struct {
	baseURL    string
	instanceID string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.InstanceID == "" {
		return nil, fmt.Errorf("ultramsg: instance id is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("ultramsg: token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{} // timeout via context, not client
	}

	return &Client{
		baseURL:    baseURL,
		instanceID: cfg.InstanceID,
		token:      cfg.Token,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// Send posts one form-encoded message to the gateway's chat endpoint.
func (c *Client) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("to", to)
	form.Set("token", c.token)
	form.Set("body", body)

	endpoint := fmt.Sprintf("%s/%s/messages/chat", c.baseURL, c.instanceID)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("ultramsg: create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ultramsg: send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return fmt.Errorf("ultramsg: send returned status %d: %s", resp.StatusCode, string(errBody))
	}
	return nil
}
