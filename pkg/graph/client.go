// Package graph is a minimal GraphQL client for the TalentLayer subgraph.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single subgraph request when no HTTP client is supplied.
	DefaultTimeout = 15 * time.Second

	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	mimeApplicationJSON = "application/json"

	// maxErrorBody limits how much of a failed response is kept in the error
	maxErrorBody = 512
)

// ErrEmptyURL is returned when the client has no endpoint configured.
var ErrEmptyURL = errors.New("graph: subgraph url is empty")

// Config configures a subgraph client.
type Config struct {
	URL        string
	APIKey     string // sent as a bearer token when set
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts GraphQL queries to a subgraph endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// Request is the GraphQL request envelope.
type Request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// Response is the GraphQL response envelope.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is a single GraphQL error entry.
type Error struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// QueryError reports GraphQL errors returned alongside an HTTP 200.
type QueryError struct {
	Errors []Error
}

func (e *QueryError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graph: query failed: " + strings.Join(msgs, "; ")
}

// StatusError reports a non-200 response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph: unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a subgraph client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:        strings.TrimRight(config.URL, "/"),
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

// URL returns the endpoint the client queries.
func (c *Client) URL() string {
	return c.url
}

// Query executes query with variables. GraphQL-level errors are returned as *QueryError
// together with the decoded response.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (*Response, error) {
	if c.url == "" {
		return nil, ErrEmptyURL
	}

	body, err := json.Marshal(Request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("graph: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("graph: failed to create request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)
	if c.apiKey != "" {
		req.Header.Set(headerAuthorization, "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("graph: failed to decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return &out, &QueryError{Errors: out.Errors}
	}
	return &out, nil
}

// Decode unmarshals the data member of a response into v.
func (r *Response) Decode(v interface{}) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return errors.New("graph: response has no data")
	}
	return json.Unmarshal(r.Data, v)
}
