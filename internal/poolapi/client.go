// Package poolapi locates a coordinator node through the pool's HTTP API.
package poolapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseSize caps the locator response body.
const maxResponseSize = 64 * 1024

// Locator picks the coordinator node to mine against.
type Locator interface {
	GetPool(ctx context.Context) (*Pool, error)
}

// Pool is a coordinator node as advertised by the pool API.
type Pool struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PoolRejectedError is returned when the API answered but did not offer a
// usable node.
type PoolRejectedError struct {
	Reason string
}

func (e *PoolRejectedError) Error() string {
	return "pool rejected: " + e.Reason
}

// Client implements Locator over HTTP.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a locator for the given getPool URL.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// GetPool asks the API for the node to use.
func (c *Client) GetPool(ctx context.Context) (*Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pool request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pool request: status %d (body: %s)", resp.StatusCode, string(body))
	}

	var pool Pool
	if err := json.Unmarshal(body, &pool); err != nil {
		return nil, fmt.Errorf("unmarshal pool: %w (body: %s)", err, string(body))
	}

	if !pool.Success {
		return nil, &PoolRejectedError{Reason: pool.Message}
	}
	if pool.IP == "" || pool.Port <= 0 {
		return nil, &PoolRejectedError{Reason: fmt.Sprintf("incomplete node %q:%d", pool.IP, pool.Port)}
	}

	return &pool, nil
}
