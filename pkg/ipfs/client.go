// Package ipfs stores and fetches JSON documents through an IPFS HTTP API node.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultURL is the public Infura IPFS API endpoint.
const DefaultURL = "https://ipfs.infura.io:5001"

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Config contains configuration for the IPFS client.
type Config struct {
	// URL is the base URL of the IPFS HTTP API.
	// Defaults to DefaultURL if not set.
	URL string
	// ProjectID and ProjectSecret enable basic auth for hosted nodes.
	ProjectID     string
	ProjectSecret string
	// Timeout is the HTTP client timeout.
	// Defaults to 30 seconds if not set.
	Timeout time.Duration
}

// Client talks to the /api/v0 endpoints of an IPFS node.
type Client struct {
	baseURL       string
	projectID     string
	projectSecret string
	httpClient    *http.Client
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// NewClient creates a new IPFS client.
func NewClient(config Config) *Client {
	baseURL := config.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		projectID:     config.ProjectID,
		projectSecret: config.ProjectSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Put pins payload and returns its content identifier.
func (c *Client) Put(ctx context.Context, payload []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "data.json")
	if err != nil {
		return "", fmt.Errorf("ipfs: failed to create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("ipfs: failed to write payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ipfs: failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, "add", url.Values{"pin": {"true"}}, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs: add request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs: add returned status %d", resp.StatusCode)
	}

	var out addResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ipfs: failed to decode add response: %w", err)
	}
	if err := ValidateCID(out.Hash); err != nil {
		return "", fmt.Errorf("ipfs: node returned an invalid cid: %w", err)
	}
	return out.Hash, nil
}

// PutJSON marshals v and pins it.
func (c *Client) PutJSON(ctx context.Context, v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("ipfs: failed to marshal document: %w", err)
	}
	return c.Put(ctx, payload)
}

// Cat fetches the content stored under cid.
func (c *Client) Cat(ctx context.Context, cid string) ([]byte, error) {
	if err := ValidateCID(cid); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, "cat", url.Values{"arg": {cid}}, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs: cat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs: cat returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, command string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/api/v0/%s?%s", c.baseURL, command, query.Encode())
	// the IPFS HTTP API only accepts POST
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("ipfs: failed to create request: %w", err)
	}
	if c.projectID != "" {
		req.SetBasicAuth(c.projectID, c.projectSecret)
	}
	return req, nil
}
