// Package client provides a Go client for the kiln introspection endpoint.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilnworks/kiln/pkg/api"
)

// Client communicates with a factory's embedded introspection server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client pointing at the given base URL
// (e.g. "http://localhost:8001").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get issues a GET and fails on any non-200 status.
func (c *Client) get(path string) (*http.Response, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return resp, nil
}

// Health checks the server and returns its identity.
func (c *Client) Health() (*api.Health, error) {
	resp, err := c.get("/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h api.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &h, nil
}

// Resources lists every interned resource with its reference count.
func (c *Client) Resources() ([]api.ResourceInfo, error) {
	resp, err := c.get("/api/v1/resources")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var resources []api.ResourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resources, nil
}

// Reload asks the factory to reload the named resource. The outcome is
// reported in the daemon's log; a nil return only means the request was
// processed.
func (c *Client) Reload(name string) error {
	resp, err := c.get("/reload/" + name)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
