// Package linear implements core.TrackerClient against the Linear GraphQL
// API using plain net/http.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/retry"
)

// DefaultEndpoint is Linear's public GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// Client is a typed Linear API client using GraphQL over net/http.
type Client struct {
	apiKey       string
	httpClient   *http.Client
	endpoint     string
	teamID       string
	retryBackoff []time.Duration

	statesMu sync.Mutex
	states   map[core.LifecycleState]string
}

var _ core.TrackerClient = (*Client)(nil)

// New creates a new Linear GraphQL client.
// Use WithEndpoint to override the default Linear API URL (useful for testing).
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		endpoint:   DefaultEndpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint URL.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryBackoff overrides the default retry backoff delays.
func WithRetryBackoff(delays ...time.Duration) Option {
	return func(c *Client) { c.retryBackoff = delays }
}

// WithTeamID sets the team whose workflow states and issues the client uses.
func WithTeamID(id string) Option {
	return func(c *Client) { c.teamID = id }
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message    string        `json:"message"`
	Extensions graphqlErrExt `json:"extensions,omitempty"`
}

type graphqlErrExt struct {
	Code        string `json:"code,omitempty"`
	UserMessage string `json:"userPresentableMessage,omitempty"`
}

// execute sends a GraphQL request and returns the raw data payload.
// It retries on transient errors (HTTP 5xx, network errors); GraphQL errors
// and other HTTP failures are permanent.
func (c *Client) execute(ctx context.Context, op, query string, vars map[string]any) (json.RawMessage, error) {
	var opts []retry.Option
	if len(c.retryBackoff) > 0 {
		opts = append(opts, retry.WithBackoff(c.retryBackoff...))
	}
	return retry.DoVal(ctx, func() (json.RawMessage, error) {
		return c.executeOnce(ctx, op, query, vars)
	}, opts...)
}

func (c *Client) executeOnce(ctx context.Context, op, query string, vars map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("linear API returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, retry.Permanent(fmt.Errorf("linear API returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
		}
		return nil, retry.Permanent(fmt.Errorf("decoding response: %w", err))
	}

	// Linear reports validation failures as HTTP 400 with a GraphQL errors body.
	if len(gqlResp.Errors) > 0 {
		trErr := &core.TrackerError{Op: op}
		for _, e := range gqlResp.Errors {
			msg := e.Message
			if e.Extensions.UserMessage != "" {
				msg = e.Extensions.UserMessage
			}
			trErr.Messages = append(trErr.Messages, msg)
			if e.Extensions.Code != "" {
				trErr.Codes = append(trErr.Codes, e.Extensions.Code)
			}
		}
		return nil, retry.Permanent(trErr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Permanent(fmt.Errorf("linear API returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	return gqlResp.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
