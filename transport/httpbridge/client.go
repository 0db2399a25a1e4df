package httpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tomyedwab/sqlbridge/bridge/types"
)

// Client implements client.Invoker against a bridge Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sends token as a bearer token with every command.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for the bridge server at baseURL.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Invoke posts args to /invoke/{command}. A reply carrying an error, or a
// non-2xx status, becomes a *types.HostError.
func (c *Client) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("httpbridge: failed to marshal %s request: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke/"+command, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpbridge: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpbridge: %s request failed: %w", command, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpbridge: failed to read %s response: %w", command, err)
	}

	var reply types.Reply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &types.HostError{Command: command, Message: strings.TrimSpace(string(respBody)), StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("httpbridge: failed to unmarshal %s reply: %w", command, err)
	}
	if reply.Error != "" || resp.StatusCode >= 300 {
		msg := reply.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &types.HostError{Command: command, Message: msg, StatusCode: resp.StatusCode}
	}
	return reply.Result, nil
}
